// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesCapturedTotal counts frames that went through decode and match.
	FramesCapturedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netinspect_frames_captured_total",
			Help: "Total number of frames processed by the capture loop",
		},
		[]string{"interface"},
	)

	// FramesDiscardedTotal counts frames read but never processed.
	FramesDiscardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netinspect_frames_discarded_total",
			Help: "Total number of frames read but discarded",
		},
		[]string{"reason"},
	)

	// FrameErrorsTotal counts frames whose processing panicked and was recovered.
	FrameErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netinspect_frame_errors_total",
			Help: "Total number of frames whose decode or match failed",
		},
	)

	// SignatureMatchesTotal counts flagged frames by severity.
	SignatureMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netinspect_signature_matches_total",
			Help: "Total number of frames matched by a signature",
		},
		[]string{"severity"},
	)

	// SignatureErrorsTotal counts regular expressions that failed to compile.
	SignatureErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netinspect_signature_errors_total",
			Help: "Total number of signature patterns that failed to compile",
		},
	)

	// SessionState tracks the capture session state (0=idle, 1=running, 2=paused, 3=stopped).
	SessionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netinspect_session_state",
			Help: "Current capture session state (0=idle, 1=running, 2=paused, 3=stopped)",
		},
	)

	// ArchivedFrames tracks the number of frames in the session archive.
	ArchivedFrames = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netinspect_archived_frames",
			Help: "Number of frames held in the session archive",
		},
	)
)

// Discard reasons.
const (
	ReasonPaused  = "paused"
	ReasonStopped = "stopped"
)
