package analysis

import (
	"sort"
	"sync"
	"time"

	"netinspect/internal/models"
)

// IPStat holds stats for a single IP.
type IPStat struct {
	IP    string
	Bytes int
}

// ProtocolStat holds stats for a single protocol.
type ProtocolStat struct {
	Protocol string
	Count    int64
}

// DomainEntry represents a DNS name seen in a query or response.
type DomainEntry struct {
	Hostname  string
	Timestamp time.Time
	Client    string
}

// Totals summarizes a session.
type Totals struct {
	Packets int64
	Bytes   int64
	Matched int64
	// BySeverity counts matched frames per signature severity.
	BySeverity map[string]int64
}

// TrafficStats tracks statistics for the current capture session. It is a
// display sink, so it sees exactly the events the operator sees.
type TrafficStats struct {
	mu             sync.Mutex
	totalPackets   int64
	totalBytes     int64
	windowBytes    int64
	windowPackets  int64
	lastTick       time.Time
	ipBytes        map[string]int
	protocolCounts map[string]int64
	matched        map[string]int64

	domainLog       []DomainEntry
	maxDomainLog    int
	anomalyDetector *AnomalyDetector
	now             func() time.Time
}

// NewTrafficStats creates a new TrafficStats instance.
func NewTrafficStats() *TrafficStats {
	s := &TrafficStats{
		maxDomainLog:    50, // Keep last 50 domain entries
		anomalyDetector: NewAnomalyDetector(DefaultConfig()),
		now:             time.Now,
	}
	s.reset()
	return s
}

// Reset clears every counter, for a new session.
func (s *TrafficStats) Reset() {
	s.mu.Lock()
	s.reset()
	s.mu.Unlock()
	s.anomalyDetector.Reset()
}

func (s *TrafficStats) reset() {
	s.totalPackets, s.totalBytes = 0, 0
	s.windowBytes, s.windowPackets = 0, 0
	s.lastTick = s.now()
	s.ipBytes = make(map[string]int)
	s.protocolCounts = make(map[string]int64)
	s.matched = make(map[string]int64)
	s.domainLog = make([]DomainEntry, 0)
}

// Render implements dispatch.Sink.
func (s *TrafficStats) Render(ev models.Event) {
	s.ProcessEvent(ev)
}

// Notice implements dispatch.Sink; notices carry no statistics.
func (s *TrafficStats) Notice(string) {}

// ProcessEvent updates stats with a new event.
func (s *TrafficStats) ProcessEvent(ev models.Event) {
	s.mu.Lock()

	s.totalPackets++
	s.totalBytes += int64(ev.Length)
	s.windowBytes += int64(ev.Length)
	s.windowPackets++

	// Update Top Talkers (Source IP)
	if ev.SrcIP != "" {
		s.ipBytes[ev.SrcIP] += ev.Length
	}

	proto := ev.Protocol
	if proto == "" {
		proto = "Unknown"
	}
	s.protocolCounts[proto]++

	if ev.Alert != nil {
		s.matched[ev.Alert.Severity]++
	}

	for _, name := range ev.DNSQueries {
		s.domainLog = append(s.domainLog, DomainEntry{
			Hostname:  name,
			Timestamp: ev.Timestamp,
			Client:    ev.SrcIP,
		})
	}
	// Keep circular buffer (last N entries)
	if len(s.domainLog) > s.maxDomainLog {
		s.domainLog = s.domainLog[len(s.domainLog)-s.maxDomainLog:]
	}

	// Detector has its own mutex
	s.mu.Unlock()
	s.anomalyDetector.ProcessEvent(ev)
}

// GetRates returns the bandwidth (bps) and packet rate (pps) since the last call.
func (s *TrafficStats) GetRates() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	duration := now.Sub(s.lastTick).Seconds()
	if duration <= 0 {
		return 0, 0
	}

	// Bytes * 8 = Bits
	bps := (float64(s.windowBytes) * 8) / duration
	pps := float64(s.windowPackets) / duration

	// Reset window
	s.windowBytes = 0
	s.windowPackets = 0
	s.lastTick = now

	return bps, pps
}

// GetTotals returns session-wide counters.
func (s *TrafficStats) GetTotals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := Totals{
		Packets:    s.totalPackets,
		Bytes:      s.totalBytes,
		BySeverity: make(map[string]int64, len(s.matched)),
	}
	for sev, n := range s.matched {
		t.Matched += n
		t.BySeverity[sev] = n
	}
	return t
}

// GetTopTalkers returns the top N IPs by volume.
func (s *TrafficStats) GetTopTalkers(limit int) []IPStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make([]IPStat, 0, len(s.ipBytes))
	for ip, bytes := range s.ipBytes {
		stats = append(stats, IPStat{IP: ip, Bytes: bytes})
	}

	// Sort descending by bytes, then by IP for a stable view
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Bytes != stats[j].Bytes {
			return stats[i].Bytes > stats[j].Bytes
		}
		return stats[i].IP < stats[j].IP
	})

	if len(stats) > limit {
		return stats[:limit]
	}
	return stats
}

// GetProtocolStats returns the protocol distribution.
func (s *TrafficStats) GetProtocolStats() []ProtocolStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make([]ProtocolStat, 0, len(s.protocolCounts))
	for proto, count := range s.protocolCounts {
		stats = append(stats, ProtocolStat{Protocol: proto, Count: count})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Protocol < stats[j].Protocol
	})

	return stats
}

// GetDomainLog returns the recent domain log entries.
func (s *TrafficStats) GetDomainLog() []DomainEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]DomainEntry, len(s.domainLog))
	copy(result, s.domainLog)
	return result
}

// GetAlerts returns the most recent alerts, newest last.
func (s *TrafficStats) GetAlerts(limit int) []Alert {
	return s.anomalyDetector.GetRecentAlerts(limit)
}
