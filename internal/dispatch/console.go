package dispatch

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"netinspect/internal/models"
)

// ConsoleSink prints one line per event, for headless capture and replay.
type ConsoleSink struct {
	mu         sync.Mutex
	w          io.Writer
	alertsOnly bool
}

// NewConsoleSink writes to w. With alertsOnly, unmatched events are skipped.
func NewConsoleSink(w io.Writer, alertsOnly bool) *ConsoleSink {
	return &ConsoleSink{w: w, alertsOnly: alertsOnly}
}

func (c *ConsoleSink) Render(ev models.Event) {
	if c.alertsOnly && !ev.Matched() {
		return
	}
	cols := ev.Columns()
	line := fmt.Sprintf("%6s  %s  %-22s -> %-22s %-8s %5s  %s",
		cols[0], cols[1], cols[2], cols[3], cols[4], cols[5], cols[6])
	if ev.Alert != nil {
		line += fmt.Sprintf("  [ALERT %s %s %q]", strings.ToUpper(ev.Alert.Severity), ev.Alert.Kind, ev.Alert.Pattern)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, line)
}

func (c *ConsoleSink) Notice(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "-- %s\n", msg)
}

// MultiSink fans every delivery out to each sink in order.
type MultiSink []Sink

func (ms MultiSink) Render(ev models.Event) {
	for _, s := range ms {
		s.Render(ev)
	}
}

func (ms MultiSink) Notice(msg string) {
	for _, s := range ms {
		s.Notice(msg)
	}
}
