package models

import (
	"strconv"
	"time"
)

// TimeLayout formats event timestamps in every view.
const TimeLayout = "2006-01-02 15:04:05.000"

// Frame is one captured link-layer frame as received. Data is never
// mutated after capture.
type Frame struct {
	Data      []byte
	Timestamp time.Time
}

// Len returns the captured length of the frame.
func (f Frame) Len() int {
	return len(f.Data)
}

// Alert describes the signature that flagged a frame.
type Alert struct {
	Pattern  string
	Kind     string // "hex", "regex" or "ascii"
	Severity string // "low", "medium" or "critical"
}

// Event is the immutable per-frame record handed to the display side.
// Index addresses the frame in the archive of the session identified by
// Generation.
type Event struct {
	Index       int
	Generation  uint64
	Timestamp   time.Time
	Source      string
	Destination string
	Protocol    string
	Info        string
	Length      int

	// Set when the frame matched a signature.
	Alert *Alert

	// Decoded metadata used by the statistics panel.
	SrcIP      string
	DstIP      string
	SrcPort    int
	DstPort    int
	EthDst     string
	DNSQueries []string
}

// Matched reports whether a signature flagged the frame.
func (e Event) Matched() bool {
	return e.Alert != nil
}

// AlertText is the alert column value: the matched pattern, or empty.
func (e Event) AlertText() string {
	if e.Alert == nil {
		return ""
	}
	return e.Alert.Pattern
}

// Columns returns the packet list row: number, time, source, destination,
// protocol, length, info and alert.
func (e Event) Columns() []string {
	return []string{
		strconv.Itoa(e.Index + 1),
		e.Timestamp.Format(TimeLayout),
		e.Source,
		e.Destination,
		e.Protocol,
		strconv.Itoa(e.Length),
		e.Info,
		e.AlertText(),
	}
}
