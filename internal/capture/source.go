package capture

import (
	"errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	// ErrAlreadyActive is returned by Start while a session is running or paused.
	ErrAlreadyActive = errors.New("netinspect: capture session already active")
	// ErrNotRunning is returned by Pause and Resume outside their source state.
	ErrNotRunning = errors.New("netinspect: capture session not running")
	// ErrNoFrame is returned by a Source when no frame arrived within its
	// poll interval. The loop treats it as "try again".
	ErrNoFrame = errors.New("netinspect: no frame available")
)

// Source yields raw link-layer frames. ReadPacketData must return within
// one poll interval: ErrNoFrame on timeout, io.EOF when the source is
// exhausted, any other error when the source failed.
type Source interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	Close()
}

// linkTyper is implemented by sources whose framing is not always Ethernet.
type linkTyper interface {
	LinkType() layers.LinkType
}

// Opener opens a Source bound to iface with an optional filter expression.
type Opener interface {
	Open(iface, filter string) (Source, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(iface, filter string) (Source, error)

func (f OpenerFunc) Open(iface, filter string) (Source, error) {
	return f(iface, filter)
}
