// Package live opens libpcap capture handles for the capture loop.
package live

import (
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"

	"netinspect/internal/capture"
)

// Config holds handle settings shared by every session. Handles are always
// opened in promiscuous mode.
type Config struct {
	Snaplen      int
	PollInterval time.Duration
}

var openLive = pcap.OpenLive

// Opener opens live pcap handles. It satisfies capture.Opener.
type Opener struct {
	cfg Config
}

func NewOpener(cfg Config) *Opener {
	if cfg.Snaplen <= 0 {
		cfg.Snaplen = 65535
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	return &Opener{cfg: cfg}
}

// Open binds a handle to iface. The read timeout equals the poll interval
// so the capture loop observes pause and stop promptly on a quiet link.
func (o *Opener) Open(iface, filter string) (capture.Source, error) {
	handle, err := openLive(iface, int32(o.cfg.Snaplen), true, o.cfg.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("could not open handle: %w", err)
	}

	if filter != "" {
		if err := handle.SetBPFFilter(filter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("could not set BPF filter %q: %w", filter, err)
		}
	}

	if lt := handle.LinkType(); lt != layers.LinkTypeEthernet {
		handle.Close()
		return nil, fmt.Errorf("interface %s has link type %s, only Ethernet is supported", iface, lt)
	}
	return &source{handle: handle}, nil
}

type source struct {
	handle *pcap.Handle
}

func (s *source) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := s.handle.ReadPacketData()
	switch err {
	case nil:
		return data, ci, nil
	case pcap.NextErrorTimeoutExpired:
		return nil, ci, capture.ErrNoFrame
	case pcap.NextErrorNoMorePackets:
		return nil, ci, io.EOF
	default:
		return nil, ci, err
	}
}

func (s *source) Close() {
	s.handle.Close()
}

// CompileFilter compiles filter for an Ethernet link without opening a
// device, for validation and display.
func CompileFilter(filter string, snaplen int) ([]bpf.RawInstruction, error) {
	pcapBpf, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, snaplen, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to compile BPF filter: %w", err)
	}

	raw := make([]bpf.RawInstruction, len(pcapBpf))
	for i, ins := range pcapBpf {
		raw[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return raw, nil
}
