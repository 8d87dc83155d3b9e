package capture

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// FileSource replays frames from a pcap or pcapng file.
type FileSource struct {
	path   string
	file   *os.File
	reader packetReader
}

// OpenFile opens path, detecting the pcap or pcapng container from its
// first bytes.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file %s: %w", path, err)
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read capture file %s: %w", path, err)
	}

	var r packetReader
	if magic[0] == 0x0a && magic[1] == 0x0d && magic[2] == 0x0d && magic[3] == 0x0a {
		r, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		r, err = pcapgo.NewReader(br)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to parse capture file %s: %w", path, err)
	}
	if lt := r.LinkType(); lt != layers.LinkTypeEthernet && lt != layers.LinkTypeRaw {
		f.Close()
		return nil, fmt.Errorf("capture file %s: unsupported link type %s", path, lt)
	}

	return &FileSource{path: path, file: f, reader: r}, nil
}

// FileOpener ignores the filter expression: offline files are replayed
// as recorded.
func FileOpener(path, _ string) (Source, error) {
	return OpenFile(path)
}

func (fs *FileSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := fs.reader.ReadPacketData()
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil, ci, io.EOF
	}
	if err != nil {
		return nil, ci, fmt.Errorf("failed to read packet: %w", err)
	}
	return data, ci, nil
}

func (fs *FileSource) LinkType() layers.LinkType {
	return fs.reader.LinkType()
}

func (fs *FileSource) Close() {
	if fs.file != nil {
		fs.file.Close()
		fs.file = nil
	}
}
