// Package archive keeps every captured frame of a session, in capture order,
// and exports them as a classic libpcap file.
package archive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"netinspect/internal/models"
)

// Snaplen is written to the pcap global header.
const Snaplen = 65535

// ErrNotFound is returned for an index outside the archive.
var ErrNotFound = errors.New("archive: no frame at index")

// Archive is an append-only, ordered frame list. It is written by the
// capture worker and read concurrently by the presentation side.
type Archive struct {
	mu     sync.RWMutex
	frames []models.Frame
}

func New() *Archive {
	return &Archive{}
}

// Append stores a copy of f and returns its index.
func (a *Archive) Append(f models.Frame) int {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.frames = append(a.frames, models.Frame{Data: data, Timestamp: f.Timestamp})
	return len(a.frames) - 1
}

// Get returns the frame at index.
func (a *Archive) Get(index int) (models.Frame, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if index < 0 || index >= len(a.frames) {
		return models.Frame{}, fmt.Errorf("%w %d (have %d)", ErrNotFound, index, len(a.frames))
	}
	return a.frames[index], nil
}

func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.frames)
}

// Frames returns a snapshot of the current contents. Frame data is shared
// and must not be modified.
func (a *Archive) Frames() []models.Frame {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]models.Frame, len(a.frames))
	copy(out, a.frames)
	return out
}

// WriteTo writes the archive as a pcap stream: magic a1b2c3d4, version 2.4,
// Ethernet link type, one record per frame with orig_len equal to incl_len.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	return writePcap(w, a.Frames())
}

func writePcap(w io.Writer, frames []models.Frame) (int64, error) {
	cw := &countingWriter{w: w}
	pw := pcapgo.NewWriter(cw)
	if err := pw.WriteFileHeader(Snaplen, layers.LinkTypeEthernet); err != nil {
		return cw.n, fmt.Errorf("write pcap header: %w", err)
	}

	for i, f := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     f.Timestamp,
			CaptureLength: len(f.Data),
			Length:        len(f.Data),
		}
		if err := pw.WritePacket(ci, f.Data); err != nil {
			return cw.n, fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	return cw.n, nil
}

// Export writes the archive to path, replacing any existing file, and
// returns the number of frames written.
func (a *Archive) Export(path string) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}

	frames := a.Frames()
	bw := bufio.NewWriter(file)
	if _, err := writePcap(bw, frames); err != nil {
		file.Close()
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		file.Close()
		return 0, fmt.Errorf("flush %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", path, err)
	}
	return len(frames), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
