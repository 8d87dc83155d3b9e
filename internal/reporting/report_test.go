package reporting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netinspect/internal/analysis"
	"netinspect/internal/models"
)

func TestGenerateSessionReport(t *testing.T) {
	stats := analysis.NewTrafficStats()
	ts := time.Now()

	stats.ProcessEvent(models.Event{
		Index:     0,
		Timestamp: ts,
		Source:    "192.168.1.10:40000",
		SrcIP:     "192.168.1.10",
		DstIP:     "8.8.8.8",
		Length:    300,
		Protocol:  "DNS",
		DNSQueries: []string{
			"example.com",
		},
	})
	stats.ProcessEvent(models.Event{
		Index:     1,
		Timestamp: ts.Add(time.Millisecond),
		Source:    "192.168.1.10:40001",
		SrcIP:     "192.168.1.10",
		Length:    500,
		Protocol:  "TCP",
		Alert:     &models.Alert{Pattern: "<script>", Kind: "ascii", Severity: "critical"},
	})

	dir := t.TempDir()
	filename, err := GenerateSessionReport(dir, Session{Interface: "eth0", Filter: "port 53 or port 80", Archived: 2}, stats, "html")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(filename))

	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	html := string(content)

	assert.Contains(t, html, "netinspect Session Report")
	assert.Contains(t, html, "example.com")
	assert.Contains(t, html, "192.168.1.10")
	assert.Contains(t, html, "eth0")
	assert.Contains(t, html, "port 53 or port 80")
	assert.Contains(t, html, `<td class="critical">critical</td>`)
	assert.Contains(t, html, "&lt;script&gt;", "alert text is escaped")
	assert.NotContains(t, html, `"<script>"`)
}

func TestGenerateSessionReportEmpty(t *testing.T) {
	filename, err := GenerateSessionReport(t.TempDir(), Session{}, analysis.NewTrafficStats(), "html")
	require.NoError(t, err)

	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Contains(t, string(content), "No alerts triggered during this session.")
	assert.Contains(t, string(content), "No domains captured.")
	assert.Contains(t, string(content), "(none)")
}

func TestGenerateSessionReportUnsupportedFormat(t *testing.T) {
	_, err := GenerateSessionReport(t.TempDir(), Session{}, analysis.NewTrafficStats(), "pdf")
	assert.Error(t, err)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2*1024*1024))
}
