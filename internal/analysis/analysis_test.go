package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netinspect/internal/models"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func event(i int, src, proto string, length int) models.Event {
	return models.Event{
		Index:     i,
		Timestamp: t0.Add(time.Duration(i) * time.Millisecond),
		Source:    src + ":1000",
		SrcIP:     src,
		Protocol:  proto,
		Length:    length,
	}
}

func TestProcessEventCounters(t *testing.T) {
	s := NewTrafficStats()
	s.ProcessEvent(event(0, "10.0.0.1", "TCP", 100))
	s.ProcessEvent(event(1, "10.0.0.2", "UDP", 300))
	s.ProcessEvent(event(2, "10.0.0.1", "TCP", 50))
	s.ProcessEvent(event(3, "", "", 10))

	totals := s.GetTotals()
	assert.Equal(t, int64(4), totals.Packets)
	assert.Equal(t, int64(460), totals.Bytes)
	assert.Zero(t, totals.Matched)

	talkers := s.GetTopTalkers(5)
	require.Len(t, talkers, 2)
	assert.Equal(t, IPStat{IP: "10.0.0.2", Bytes: 300}, talkers[0])
	assert.Equal(t, IPStat{IP: "10.0.0.1", Bytes: 150}, talkers[1])
	assert.Len(t, s.GetTopTalkers(1), 1)

	protos := s.GetProtocolStats()
	require.Len(t, protos, 3)
	assert.Equal(t, ProtocolStat{Protocol: "TCP", Count: 2}, protos[0])
	assert.Contains(t, protos, ProtocolStat{Protocol: "Unknown", Count: 1})
}

func TestRatesWindow(t *testing.T) {
	s := NewTrafficStats()
	clock := t0
	s.now = func() time.Time { return clock }
	s.Reset()

	s.ProcessEvent(event(0, "10.0.0.1", "TCP", 1000))
	s.ProcessEvent(event(1, "10.0.0.1", "TCP", 1000))
	clock = clock.Add(2 * time.Second)

	bps, pps := s.GetRates()
	assert.InDelta(t, 8000, bps, 0.001)
	assert.InDelta(t, 1, pps, 0.001)

	bps, pps = s.GetRates()
	assert.Zero(t, bps)
	assert.Zero(t, pps)
}

func TestDomainLog(t *testing.T) {
	s := NewTrafficStats()
	for i := 0; i < 60; i++ {
		ev := event(i, "10.0.0.9", "DNS", 80)
		ev.DNSQueries = []string{"host.example"}
		s.ProcessEvent(ev)
	}
	log := s.GetDomainLog()
	assert.Len(t, log, 50)
	assert.Equal(t, "host.example", log[0].Hostname)
	assert.Equal(t, "10.0.0.9", log[0].Client)
}

func TestSignatureAlertsAreThrottled(t *testing.T) {
	s := NewTrafficStats()
	flag := &models.Alert{Pattern: "evil", Kind: "ascii", Severity: "critical"}

	for i := 0; i < 10; i++ {
		ev := event(i, "10.0.0.1", "TCP", 60)
		ev.Alert = flag
		s.ProcessEvent(ev)
	}
	other := event(10, "10.0.0.2", "TCP", 60)
	other.Alert = flag
	s.ProcessEvent(other)

	late := event(11, "10.0.0.1", "TCP", 60)
	late.Timestamp = t0.Add(10 * time.Second)
	late.Alert = flag
	s.ProcessEvent(late)

	alerts := s.GetAlerts(0)
	require.Len(t, alerts, 3)
	for _, a := range alerts {
		assert.Equal(t, AnomalySignature, a.Type)
		assert.Equal(t, "critical", a.Severity)
	}
	assert.Contains(t, alerts[0].Message, `"evil"`)
	assert.Contains(t, alerts[0].Message, "#1")

	totals := s.GetTotals()
	assert.Equal(t, int64(12), totals.Matched)
	assert.Equal(t, int64(12), totals.BySeverity["critical"])
}

func TestUnsecureProtocolAlert(t *testing.T) {
	ad := NewAnomalyDetector(DefaultConfig())
	ev := event(0, "10.0.0.5", "TCP", 60)
	ev.DstPort = 23
	ad.ProcessEvent(ev)
	ad.ProcessEvent(ev)

	alerts := ad.GetRecentAlerts(5)
	require.Len(t, alerts, 1)
	assert.Equal(t, AnomalyUnsecure, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "Telnet")
}

func TestBroadcastStorm(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BroadcastThreshold = 5
	ad := NewAnomalyDetector(cfg)

	for i := 0; i < 6; i++ {
		ev := event(i, "", "ARP", 42)
		ev.EthDst = "ff:ff:ff:ff:ff:ff"
		ad.ProcessEvent(ev)
	}
	alerts := ad.GetRecentAlerts(5)
	require.Len(t, alerts, 1)
	assert.Equal(t, AnomalyBroadcastStorm, alerts[0].Type)
}

func TestDoSDetection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DoSThreshold = 10
	ad := NewAnomalyDetector(cfg)

	for i := 0; i < 11; i++ {
		ad.ProcessEvent(event(i, "10.0.0.66", "UDP", 60))
	}
	alerts := ad.GetRecentAlerts(5)
	require.Len(t, alerts, 1)
	assert.Equal(t, AnomalyDoS, alerts[0].Type)
	assert.Equal(t, "10.0.0.66", alerts[0].Source)
}

func TestAlertHistoryBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAlerts = 3
	cfg.SignatureCooldown = 0
	ad := NewAnomalyDetector(cfg)

	for i := 0; i < 10; i++ {
		ev := event(i, "10.0.0.1", "TCP", 60)
		ev.Alert = &models.Alert{Pattern: "p"}
		ev.Timestamp = t0.Add(time.Duration(i) * time.Second)
		ad.ProcessEvent(ev)
	}
	alerts := ad.GetRecentAlerts(0)
	require.Len(t, alerts, 3)
	assert.Contains(t, alerts[2].Message, "#10")
	assert.Len(t, ad.GetRecentAlerts(2), 2)
}

func TestResetClearsSession(t *testing.T) {
	s := NewTrafficStats()
	ev := event(0, "10.0.0.1", "TCP", 60)
	ev.Alert = &models.Alert{Pattern: "x", Severity: "low"}
	s.ProcessEvent(ev)

	s.Reset()
	assert.Zero(t, s.GetTotals().Packets)
	assert.Empty(t, s.GetAlerts(5))
	assert.Empty(t, s.GetTopTalkers(5))
}

func TestServiceNames(t *testing.T) {
	assert.Equal(t, "HTTPS", GetServiceName(443))
	assert.Equal(t, "31337", GetServiceName(31337))
	assert.Equal(t, "HTTP", ServiceLabel(51000, 80))
	assert.Equal(t, "HTTP", ServiceLabel(80, 51000))
	assert.Equal(t, "DNS", ServiceLabel(53, 53))
	assert.Equal(t, "", ServiceLabel(0, 0))
}
