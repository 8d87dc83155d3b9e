package analysis

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"netinspect/internal/models"
)

// AnomalyType represents the type of anomaly detected.
type AnomalyType string

const (
	AnomalySignature      AnomalyType = "SIGNATURE_MATCH"
	AnomalyBroadcastStorm AnomalyType = "BROADCAST_STORM"
	AnomalyUnsecure       AnomalyType = "UNSECURE_PROTOCOL"
	AnomalyDoS            AnomalyType = "POSSIBLE_DOS"
)

// Config holds configuration for the anomaly detector.
type Config struct {
	BroadcastThreshold int           // Broadcasts per second
	DoSThreshold       int           // Packets per second per IP
	UnsecureCooldown   time.Duration // Cooldown for unsecure protocol alerts
	SignatureCooldown  time.Duration // Cooldown per (source, pattern) signature alert
	CleanupInterval    time.Duration // Interval for memory cleanup
	DataRetention      time.Duration // How long to keep tracking data
	MaxAlerts          int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BroadcastThreshold: 50,
		DoSThreshold:       500,
		UnsecureCooldown:   10 * time.Second,
		SignatureCooldown:  5 * time.Second,
		CleanupInterval:    1 * time.Minute,
		DataRetention:      5 * time.Minute,
		MaxAlerts:          50,
	}
}

// Alert represents a detected security anomaly.
type Alert struct {
	Type      AnomalyType
	Severity  string // signature severity; "medium" for heuristics
	Source    string // IP or source identifier
	Message   string // Human-readable description
	Timestamp time.Time
}

// AnomalyDetector turns events into operator alerts: signature matches,
// throttled per source and pattern, plus traffic heuristics.
// Windows are measured on capture timestamps so replays behave like live
// captures.
type AnomalyDetector struct {
	mu sync.Mutex

	config Config

	// Signature alerts (throttling)
	signatureAlerts map[string]time.Time // key: "source|pattern" -> last alert time

	// Broadcast Storm Detection
	broadcastCount  int
	broadcastWindow time.Time

	// Unsecure Protocol Detection (throttling)
	unsecureAlerts map[string]time.Time // key: "IP:port" -> last alert time

	// DoS Detection (per-IP packet rate)
	ipPacketCount map[string]int       // IP -> packet count
	ipWindow      map[string]time.Time // IP -> window start time

	// Alert History (circular buffer)
	alerts []Alert

	lastCleanup time.Time
}

// NewAnomalyDetector creates a new anomaly detection engine.
func NewAnomalyDetector(cfg Config) *AnomalyDetector {
	if cfg.MaxAlerts <= 0 {
		cfg.MaxAlerts = 50
	}
	ad := &AnomalyDetector{config: cfg}
	ad.reset()
	return ad
}

// Reset forgets all history and windows.
func (ad *AnomalyDetector) Reset() {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	ad.reset()
}

func (ad *AnomalyDetector) reset() {
	ad.signatureAlerts = make(map[string]time.Time)
	ad.unsecureAlerts = make(map[string]time.Time)
	ad.ipPacketCount = make(map[string]int)
	ad.ipWindow = make(map[string]time.Time)
	ad.alerts = make([]Alert, 0)
	ad.broadcastCount = 0
	ad.broadcastWindow = time.Time{}
	ad.lastCleanup = time.Time{}
}

// ProcessEvent analyzes an event for anomalies.
func (ad *AnomalyDetector) ProcessEvent(ev models.Event) {
	ad.mu.Lock()
	defer ad.mu.Unlock()

	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	// Lazy cleanup
	if ad.lastCleanup.IsZero() {
		ad.lastCleanup = now
	} else if now.Sub(ad.lastCleanup) > ad.config.CleanupInterval {
		ad.cleanup(now)
		ad.lastCleanup = now
	}

	ad.detectSignature(ev, now)
	ad.detectBroadcastStorm(ev, now)
	ad.detectUnsecureProtocol(ev, now)
	ad.detectDoS(ev, now)
}

// cleanup removes old entries to prevent memory leaks.
func (ad *AnomalyDetector) cleanup(now time.Time) {
	for key, lastAlert := range ad.signatureAlerts {
		if now.Sub(lastAlert) > ad.config.DataRetention {
			delete(ad.signatureAlerts, key)
		}
	}

	for key, lastAlert := range ad.unsecureAlerts {
		if now.Sub(lastAlert) > ad.config.DataRetention {
			delete(ad.unsecureAlerts, key)
		}
	}

	for ip, windowStart := range ad.ipWindow {
		if now.Sub(windowStart) > ad.config.DataRetention {
			delete(ad.ipWindow, ip)
			delete(ad.ipPacketCount, ip)
		}
	}
}

// detectSignature raises an alert for a matched frame, at most once per
// source and pattern per cooldown.
func (ad *AnomalyDetector) detectSignature(ev models.Event, now time.Time) {
	if ev.Alert == nil {
		return
	}

	key := ev.Source + "|" + ev.Alert.Pattern
	if last, ok := ad.signatureAlerts[key]; ok && now.Sub(last) <= ad.config.SignatureCooldown {
		return
	}
	ad.signatureAlerts[key] = now

	ad.addAlert(Alert{
		Type:      AnomalySignature,
		Severity:  ev.Alert.Severity,
		Source:    ev.Source,
		Message:   fmt.Sprintf("%s signature %q matched packet #%d (%s -> %s)", strings.ToUpper(ev.Alert.Kind), ev.Alert.Pattern, ev.Index+1, ev.Source, ev.Destination),
		Timestamp: now,
	})
}

// detectBroadcastStorm checks for excessive broadcast packets.
func (ad *AnomalyDetector) detectBroadcastStorm(ev models.Event, now time.Time) {
	if ev.EthDst != "ff:ff:ff:ff:ff:ff" {
		return
	}

	// Reset counter if window expired
	if now.Sub(ad.broadcastWindow) > time.Second {
		ad.broadcastCount = 0
		ad.broadcastWindow = now
	}

	ad.broadcastCount++

	if ad.broadcastCount > ad.config.BroadcastThreshold {
		ad.addAlert(Alert{
			Type:      AnomalyBroadcastStorm,
			Severity:  "medium",
			Source:    "Network",
			Message:   fmt.Sprintf("Broadcast storm detected: %d broadcasts in 1 second", ad.broadcastCount),
			Timestamp: now,
		})
		// Reset to avoid spam
		ad.broadcastCount = 0
		ad.broadcastWindow = now
	}
}

var unsecurePorts = map[int]bool{21: true, 23: true, 80: true}

// detectUnsecureProtocol checks for plaintext protocol usage.
func (ad *AnomalyDetector) detectUnsecureProtocol(ev models.Event, now time.Time) {
	if !unsecurePorts[ev.DstPort] || ev.SrcIP == "" {
		return
	}

	// Throttle alerts: max 1 per IP/port combination per cooldown period
	key := fmt.Sprintf("%s:%d", ev.SrcIP, ev.DstPort)
	if last, ok := ad.unsecureAlerts[key]; ok && now.Sub(last) <= ad.config.UnsecureCooldown {
		return
	}
	ad.unsecureAlerts[key] = now

	ad.addAlert(Alert{
		Type:      AnomalyUnsecure,
		Severity:  "low",
		Source:    ev.SrcIP,
		Message:   fmt.Sprintf("Plaintext %s traffic on port %d from %s", GetServiceName(ev.DstPort), ev.DstPort, ev.SrcIP),
		Timestamp: now,
	})
}

// detectDoS checks for single-source high packet rate.
func (ad *AnomalyDetector) detectDoS(ev models.Event, now time.Time) {
	if ev.SrcIP == "" {
		return
	}

	start, exists := ad.ipWindow[ev.SrcIP]
	if !exists || now.Sub(start) > time.Second {
		ad.ipPacketCount[ev.SrcIP] = 0
		ad.ipWindow[ev.SrcIP] = now
	}

	ad.ipPacketCount[ev.SrcIP]++

	if ad.ipPacketCount[ev.SrcIP] > ad.config.DoSThreshold {
		ad.addAlert(Alert{
			Type:      AnomalyDoS,
			Severity:  "medium",
			Source:    ev.SrcIP,
			Message:   fmt.Sprintf("High packet rate from %s: %d pps", ev.SrcIP, ad.ipPacketCount[ev.SrcIP]),
			Timestamp: now,
		})
		// Reset to avoid spam
		ad.ipPacketCount[ev.SrcIP] = 0
		ad.ipWindow[ev.SrcIP] = now
	}
}

// addAlert adds an alert to the history (circular buffer).
func (ad *AnomalyDetector) addAlert(alert Alert) {
	ad.alerts = append(ad.alerts, alert)

	if len(ad.alerts) > ad.config.MaxAlerts {
		ad.alerts = ad.alerts[len(ad.alerts)-ad.config.MaxAlerts:]
	}
}

// GetRecentAlerts returns the most recent alerts (thread-safe).
func (ad *AnomalyDetector) GetRecentAlerts(limit int) []Alert {
	ad.mu.Lock()
	defer ad.mu.Unlock()

	if len(ad.alerts) == 0 {
		return []Alert{}
	}

	// Return last N alerts (newest last)
	start := 0
	if limit > 0 && len(ad.alerts) > limit {
		start = len(ad.alerts) - limit
	}

	result := make([]Alert, len(ad.alerts)-start)
	copy(result, ad.alerts[start:])

	return result
}
