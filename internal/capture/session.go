// Package capture runs the capture loop: it pulls frames from a Source,
// decodes and matches them, archives them and publishes one event per frame.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"

	"netinspect/internal/archive"
	"netinspect/internal/decode"
	"netinspect/internal/log"
	"netinspect/internal/metrics"
	"netinspect/internal/models"
	"netinspect/internal/signature"
)

// State of a capture session.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Active reports whether a capture loop owns the session.
func (s State) Active() bool {
	return s == StateRunning || s == StatePaused
}

// Publisher receives events and notices without blocking the caller.
// *dispatch.Dispatcher satisfies it.
type Publisher interface {
	Submit(ev models.Event) bool
	Post(format string, args ...any) bool
}

// SignatureSource supplies the signature set a session captures with.
// *signature.Store satisfies it.
type SignatureSource interface {
	Snapshot() []signature.Signature
}

// Session is the capture control surface. All methods are safe for
// concurrent use; at most one capture loop runs at a time.
type Session struct {
	opener Opener
	sigs   SignatureSource
	out    Publisher

	// serializes Start so a new loop never overlaps the previous one
	startMu sync.Mutex

	mu      sync.Mutex
	cond    *sync.Cond
	state   State
	iface   string
	filter  string
	archive *archive.Archive
	done    chan struct{}
	err     error
	// bumped by every Start that is not rejected as already active
	gen uint64
}

// NewSession creates an idle session.
func NewSession(opener Opener, sigs SignatureSource, out Publisher) *Session {
	s := &Session{
		opener:  opener,
		sigs:    sigs,
		out:     out,
		archive: archive.New(),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start opens iface with filter and launches the capture loop. Each start
// begins a fresh archive. On open failure the session is left Idle.
func (s *Session) Start(iface, filter string) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	if s.state.Active() {
		s.mu.Unlock()
		return ErrAlreadyActive
	}
	s.gen++
	gen := s.gen
	prev := s.done
	s.mu.Unlock()

	// The previous loop must release its handle before the next one opens.
	if prev != nil {
		<-prev
	}

	logger := log.L().WithField("iface", iface)
	src, err := s.opener.Open(iface, filter)
	if err != nil {
		s.mu.Lock()
		s.setState(StateIdle)
		s.err = err
		s.mu.Unlock()

		logger.WithError(err).Error("failed to start capture")
		s.out.Post("capture failed to start on %s: %v", iface, err)
		return fmt.Errorf("start capture on %s: %w", iface, err)
	}

	var sigs []signature.Signature
	if s.sigs != nil {
		sigs = s.sigs.Snapshot()
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.iface, s.filter = iface, filter
	s.archive = archive.New()
	s.done = done
	s.err = nil
	s.setState(StateRunning)
	arc := s.archive
	s.mu.Unlock()

	metrics.ArchivedFrames.Set(0)
	go s.run(src, arc, sigs, iface, gen, done)

	logger.WithFields(logrus.Fields{"filter": filter, "signatures": len(sigs)}).Info("capture started")
	if filter != "" {
		s.out.Post("capture started on %s (filter %q, %d signatures)", iface, filter, len(sigs))
	} else {
		s.out.Post("capture started on %s (%d signatures)", iface, len(sigs))
	}
	return nil
}

// Pause holds the loop. Once Pause returns no frame is archived or
// published until Resume.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return fmt.Errorf("pause: %w (state %s)", ErrNotRunning, s.state)
	}
	s.setState(StatePaused)
	log.L().WithField("iface", s.iface).Info("capture paused")
	s.out.Post("capture paused")
	return nil
}

// Resume continues a paused loop.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return fmt.Errorf("resume: %w (state %s)", ErrNotRunning, s.state)
	}
	s.setState(StateRunning)
	log.L().WithField("iface", s.iface).Info("capture resumed")
	s.out.Post("capture resumed")
	return nil
}

// Stop moves the session to Stopped from any state. It is cooperative:
// the loop notices within one poll interval and releases its source.
// Use Wait to block until that has happened.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return
	}
	wasActive := s.state.Active()
	s.setState(StateStopped)
	if wasActive {
		log.L().WithField("iface", s.iface).Info("capture stopped")
		s.out.Post("capture stopped (%d packets)", s.archive.Len())
	}
}

// Wait blocks until the current loop, if any, has exited and returns the
// error that ended it.
func (s *Session) Wait() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
	return s.Err()
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that ended or prevented the last session.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Interface returns the interface of the current or last session.
func (s *Session) Interface() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iface
}

// Filter returns the capture filter of the current or last session.
func (s *Session) Filter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Generation identifies the most recent Start, including one whose open
// failed. Events carry the generation of the capture that produced them.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Archive returns the archive of the current or last session.
func (s *Session) Archive() *archive.Archive {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archive
}

// Packet returns archived frame index of the current or last session.
func (s *Session) Packet(index int) (models.Frame, error) {
	return s.Archive().Get(index)
}

// Export writes the session archive to path. A failed export is reported
// and leaves the session untouched.
func (s *Session) Export(path string) (int, error) {
	n, err := s.Archive().Export(path)
	logger := log.L().WithField("path", path)
	if err != nil {
		logger.WithError(err).Error("export failed")
		s.out.Post("export to %s failed: %v", path, err)
		return 0, err
	}
	logger.WithField("packets", n).Info("export complete")
	s.out.Post("exported %d packets to %s", n, path)
	return n, nil
}

// setState must be called with mu held.
func (s *Session) setState(st State) {
	s.state = st
	metrics.SessionState.Set(float64(st))
	s.cond.Broadcast()
}

// awaitRunning blocks while paused. It returns false once the loop must exit.
func (s *Session) awaitRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.state == StatePaused {
		s.cond.Wait()
	}
	return s.state == StateRunning
}

func (s *Session) run(src Source, arc *archive.Archive, sigs []signature.Signature, iface string, gen uint64, done chan struct{}) {
	defer close(done)
	defer src.Close()

	link := layers.LinkTypeEthernet
	if l, ok := src.(linkTyper); ok {
		link = l.LinkType()
	}

	logger := log.L().WithField("iface", iface)
	captured := metrics.FramesCapturedTotal.WithLabelValues(iface)

	for s.awaitRunning() {
		data, ci, err := src.ReadPacketData()
		if errors.Is(err, ErrNoFrame) {
			continue
		}
		if err != nil {
			s.finish(err)
			return
		}

		ev := inspect(data, ci, link, sigs)
		ev.Generation = gen

		// Append and publish under the state lock so that Pause and Stop
		// are strict barriers for the archive.
		s.mu.Lock()
		if s.state != StateRunning {
			reason := metrics.ReasonPaused
			if s.state == StateStopped {
				reason = metrics.ReasonStopped
			}
			s.mu.Unlock()
			metrics.FramesDiscardedTotal.WithLabelValues(reason).Inc()
			logger.WithField("reason", reason).Debug("frame discarded")
			continue
		}
		ev.Index = arc.Append(models.Frame{Data: data, Timestamp: ev.Timestamp})
		s.out.Submit(ev)
		s.mu.Unlock()

		captured.Inc()
		metrics.ArchivedFrames.Inc()
		if ev.Alert != nil {
			metrics.SignatureMatchesTotal.WithLabelValues(ev.Alert.Severity).Inc()
		}
	}
}

// finish ends the session after the source reported err. io.EOF is the
// normal end of an offline source.
func (s *Session) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Active() {
		// Stop already ended the session; errors from the closing source are noise.
		return
	}
	logger := log.L().WithField("iface", s.iface)
	if err == io.EOF {
		logger.WithField("packets", s.archive.Len()).Info("capture source exhausted")
		s.out.Post("end of capture (%d packets)", s.archive.Len())
	} else {
		s.err = err
		logger.WithError(err).Error("capture source failed")
		s.out.Post("capture error on %s: %v", s.iface, err)
	}
	s.setState(StateStopped)
}

// inspect decodes and matches one frame. A panic inside either step is
// recovered and the frame is still archived with a placeholder event.
func inspect(data []byte, ci gopacket.CaptureInfo, link layers.LinkType, sigs []signature.Signature) (ev models.Event) {
	ts := ci.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	ev = models.Event{Timestamp: ts, Length: len(data)}

	defer func() {
		if r := recover(); r != nil {
			metrics.FrameErrorsTotal.Inc()
			log.L().WithField("panic", r).Debug("frame processing failed")
			ev = models.Event{
				Timestamp:   ts,
				Length:      len(data),
				Source:      "N/A",
				Destination: "N/A",
				Protocol:    "Unknown",
				Info:        "decode failed",
			}
		}
	}()

	f := decode.DecodeLink(data, link)
	ev.Source = f.Source()
	ev.Destination = f.Destination()
	ev.Protocol = f.Protocol()
	ev.Info = f.Summary()
	if f.HasIP() {
		ev.SrcIP, ev.DstIP = f.SrcIP.String(), f.DstIP.String()
	}
	if f.Transport != decode.TransportNone {
		ev.SrcPort, ev.DstPort = int(f.SrcPort), int(f.DstPort)
	}
	if f.EthDst != nil {
		ev.EthDst = f.EthDst.String()
	}
	if f.DNS != nil {
		ev.DNSQueries = f.DNS.Queries
	}

	if sig, ok := signature.MatchFirst(f.Payload, sigs); ok {
		ev.Alert = &models.Alert{
			Pattern:  sig.Pattern,
			Kind:     sig.Kind.String(),
			Severity: sig.Severity.String(),
		}
	}
	return ev
}
