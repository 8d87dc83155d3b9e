package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netinspect/internal/models"
)

func frame(data string, ts time.Time) models.Frame {
	return models.Frame{Data: []byte(data), Timestamp: ts}
}

func TestAppendGet(t *testing.T) {
	a := New()
	ts := time.Unix(1700000000, 0)

	assert.Equal(t, 0, a.Append(frame("first", ts)))
	assert.Equal(t, 1, a.Append(frame("second", ts.Add(time.Second))))
	assert.Equal(t, 2, a.Len())

	f, err := a.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "second", string(f.Data))

	_, err = a.Get(2)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = a.Get(-1)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAppendCopiesData(t *testing.T) {
	a := New()
	buf := []byte("reused")
	a.Append(models.Frame{Data: buf})
	copy(buf, "XXXXXX")

	f, err := a.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "reused", string(f.Data))
}

func TestConcurrentAppendAndRead(t *testing.T) {
	a := New()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			a.Append(frame("x", time.Now()))
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if n := a.Len(); n > 0 {
					_, err := a.Get(n - 1)
					assert.NoError(t, err)
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 500, a.Len())
}

func TestWriteToLayout(t *testing.T) {
	a := New()
	ts := time.Unix(1700000000, 250000000)
	sizes := []int{60, 1514, 42}
	for _, n := range sizes {
		a.Append(models.Frame{Data: bytes.Repeat([]byte{0xab}, n), Timestamp: ts})
	}

	var buf bytes.Buffer
	n, err := a.WriteTo(&buf)
	require.NoError(t, err)

	want := 24
	for _, s := range sizes {
		want += 16 + s
	}
	assert.Equal(t, int64(want), n)
	require.Equal(t, want, buf.Len())

	out := buf.Bytes()
	assert.Equal(t, uint32(0xa1b2c3d4), binary.LittleEndian.Uint32(out[0:4]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(out[4:6]))
	assert.Equal(t, uint16(4), binary.LittleEndian.Uint16(out[6:8]))
	assert.Equal(t, uint32(Snaplen), binary.LittleEndian.Uint32(out[16:20]))
	assert.Equal(t, uint32(layers.LinkTypeEthernet), binary.LittleEndian.Uint32(out[20:24]))

	rec := out[24:40]
	assert.Equal(t, uint32(1700000000), binary.LittleEndian.Uint32(rec[0:4]))
	assert.Equal(t, uint32(250000), binary.LittleEndian.Uint32(rec[4:8]))
	assert.Equal(t, uint32(60), binary.LittleEndian.Uint32(rec[8:12]))
	assert.Equal(t, uint32(60), binary.LittleEndian.Uint32(rec[12:16]))
}

func TestExportRoundTrip(t *testing.T) {
	a := New()
	ts := time.Unix(1700000123, 0)
	payloads := []string{"alpha frame", "beta", "gamma gamma gamma"}
	for i, p := range payloads {
		a.Append(frame(p, ts.Add(time.Duration(i)*time.Millisecond)))
	}

	path := filepath.Join(t.TempDir(), "out.pcap")
	n, err := a.Export(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()

	r, err := pcapgo.NewReader(fh)
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeEthernet, r.LinkType())

	for i, p := range payloads {
		data, ci, err := r.ReadPacketData()
		require.NoError(t, err)
		assert.Equal(t, p, string(data))
		assert.Equal(t, len(p), ci.Length)
		assert.True(t, ci.Timestamp.Equal(ts.Add(time.Duration(i)*time.Millisecond)))
	}
	_, _, err = r.ReadPacketData()
	assert.Equal(t, io.EOF, err)
}

func TestExportEmptyArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pcap")
	n, err := New().Export(path)
	require.NoError(t, err)
	assert.Zero(t, n)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(24), info.Size())
}

func TestExportBadPath(t *testing.T) {
	_, err := New().Export(filepath.Join(t.TempDir(), "missing", "dir", "x.pcap"))
	assert.Error(t, err)
}
