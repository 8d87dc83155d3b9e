package dispatch

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netinspect/internal/models"
)

type recordingSink struct {
	mu      sync.Mutex
	events  []int
	notices []string
	gate    chan struct{}
}

func (r *recordingSink) Render(ev models.Event) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev.Index)
}

func (r *recordingSink) Notice(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, msg)
}

func (r *recordingSink) snapshot() ([]int, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.events...), append([]string(nil), r.notices...)
}

func TestDeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := New(sink)
	defer d.Close()

	for i := 0; i < 1000; i++ {
		require.True(t, d.Submit(models.Event{Index: i}))
	}
	d.Post("capture %s", "stopped")
	d.Drain()

	events, notices := sink.snapshot()
	require.Len(t, events, 1000)
	for i, idx := range events {
		assert.Equal(t, i, idx)
	}
	assert.Equal(t, []string{"capture stopped"}, notices)
}

func TestSubmitDoesNotBlockOnSlowSink(t *testing.T) {
	sink := &recordingSink{gate: make(chan struct{})}
	d := New(sink)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.Submit(models.Event{Index: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked while the sink was stalled")
	}
	assert.Eventually(t, func() bool { return d.Pending() == 99 }, time.Second, 5*time.Millisecond)

	close(sink.gate)
	d.Drain()
	events, _ := sink.snapshot()
	assert.Len(t, events, 100)
	d.Close()
}

func TestCloseDropsPending(t *testing.T) {
	sink := &recordingSink{gate: make(chan struct{})}
	d := New(sink)

	for i := 0; i < 10; i++ {
		d.Submit(models.Event{Index: i})
	}
	assert.Eventually(t, func() bool { return d.Pending() == 9 }, time.Second, 5*time.Millisecond)

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()
	// Let the in-flight render finish.
	close(sink.gate)
	<-closed

	assert.False(t, d.Submit(models.Event{Index: 99}))
	assert.False(t, d.Post("late"))

	events, notices := sink.snapshot()
	assert.Equal(t, []int{0}, events)
	assert.Empty(t, notices)

	d.Close()
}

type panickySink struct{ recordingSink }

func (p *panickySink) Render(ev models.Event) {
	if ev.Index == 1 {
		panic("boom")
	}
	p.recordingSink.Render(ev)
}

func TestSinkPanicDoesNotStopDelivery(t *testing.T) {
	sink := &panickySink{}
	d := New(sink)
	defer d.Close()

	for i := 0; i < 3; i++ {
		d.Submit(models.Event{Index: i})
	}
	d.Drain()
	events, _ := sink.snapshot()
	assert.Equal(t, []int{0, 2}, events)
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, false)
	ts := time.Date(2024, 3, 1, 12, 30, 0, 5_000_000, time.UTC)

	sink.Render(models.Event{Index: 0, Timestamp: ts, Source: "10.0.0.1:1", Destination: "10.0.0.2:80", Protocol: "TCP", Length: 60})
	sink.Render(models.Event{Index: 1, Timestamp: ts, Protocol: "UDP",
		Alert: &models.Alert{Pattern: "evil", Kind: "ascii", Severity: "critical"}})
	sink.Notice("capture paused")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "2024-03-01 12:30:00.005")
	assert.Contains(t, lines[0], "10.0.0.1:1")
	assert.NotContains(t, lines[0], "ALERT")
	assert.Contains(t, lines[1], `[ALERT CRITICAL ascii "evil"]`)
	assert.Equal(t, "-- capture paused", lines[2])
}

func TestConsoleSinkAlertsOnly(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, true)
	sink.Render(models.Event{Index: 0})
	assert.Empty(t, buf.String())

	sink.Render(models.Event{Index: 1, Alert: &models.Alert{Pattern: "x"}})
	assert.NotEmpty(t, buf.String())
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	d := New(MultiSink{a, b})
	defer d.Close()

	d.Submit(models.Event{Index: 7})
	d.Post("hello")
	d.Drain()

	for _, s := range []*recordingSink{a, b} {
		events, notices := s.snapshot()
		assert.Equal(t, []int{7}, events)
		assert.Equal(t, []string{"hello"}, notices)
	}
}
