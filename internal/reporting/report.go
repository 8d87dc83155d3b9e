package reporting

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"netinspect/internal/analysis"
)

// Session describes the capture the report is about.
type Session struct {
	Interface string
	Filter    string
	Archived  int
}

// GenerateSessionReport writes a report of the session's activity into dir
// and returns the file path. Currently supports "html" format.
func GenerateSessionReport(dir string, session Session, stats *analysis.TrafficStats, format string) (string, error) {
	if format != "html" {
		return "", fmt.Errorf("unsupported format: %s", format)
	}

	now := time.Now()
	timestamp := now.Format("20060102_150405")
	filename := filepath.Join(dir, fmt.Sprintf("report_%s.html", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := file.WriteString(renderHTML(now, session, stats)); err != nil {
		return "", err
	}
	return filename, nil
}

func renderHTML(now time.Time, session Session, stats *analysis.TrafficStats) string {
	totals := stats.GetTotals()
	domains := uniqueDomains(stats.GetDomainLog())
	alerts := stats.GetAlerts(0)
	topTalkers := stats.GetTopTalkers(10)
	protocols := stats.GetProtocolStats()

	filter := session.Filter
	if filter == "" {
		filter = "(none)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>netinspect Session Report - %s</title>
    <style>
        body { font-family: sans-serif; margin: 20px; color: #333; }
        h1, h2 { color: #2c3e50; }
        table { width: 100%%; border-collapse: collapse; margin-bottom: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f2f2f2; }
        tr:nth-child(even) { background-color: #f9f9f9; }
        .summary { background: #eef; padding: 15px; border-radius: 5px; margin-bottom: 20px; }
        .critical { color: #d9534f; font-weight: bold; }
        .medium { color: #f0ad4e; font-weight: bold; }
        .low { color: #5bc0de; }
    </style>
</head>
<body>
    <h1>netinspect Session Report</h1>
    <div class="summary">
        <p><strong>Date:</strong> %s</p>
        <p><strong>Interface:</strong> %s</p>
        <p><strong>Capture filter:</strong> %s</p>
        <p><strong>Packets:</strong> %d (%d archived)</p>
        <p><strong>Total Data Transferred:</strong> %s</p>
        <p><strong>Matched packets:</strong> %d</p>
    </div>
`, now.Format("20060102_150405"), now.Format(time.RFC1123),
		html.EscapeString(session.Interface), html.EscapeString(filter),
		totals.Packets, session.Archived, formatBytes(totals.Bytes), totals.Matched)

	b.WriteString(tableStart("Signature Matches by Severity", "Severity", "Packets"))
	if totals.Matched == 0 {
		b.WriteString(emptyRow(2, "No packet matched a signature."))
	} else {
		for _, sev := range []string{"critical", "medium", "low"} {
			if n := totals.BySeverity[sev]; n > 0 {
				fmt.Fprintf(&b, "            <tr><td class=\"%s\">%s</td><td>%d</td></tr>\n", sev, sev, n)
			}
		}
	}
	b.WriteString(tableEnd)

	b.WriteString(tableStart("Protocols", "Protocol", "Packets"))
	for _, p := range protocols {
		fmt.Fprintf(&b, "            <tr><td>%s</td><td>%d</td></tr>\n", html.EscapeString(p.Protocol), p.Count)
	}
	b.WriteString(tableEnd)

	b.WriteString(tableStart("Top 10 Talkers", "IP Address", "Data Transferred (Bytes)"))
	for _, talker := range topTalkers {
		fmt.Fprintf(&b, "            <tr><td>%s</td><td>%d</td></tr>\n", html.EscapeString(talker.IP), talker.Bytes)
	}
	b.WriteString(tableEnd)

	b.WriteString(tableStart("Security Alerts", "Time", "Type", "Severity", "Source", "Message"))
	if len(alerts) == 0 {
		b.WriteString(emptyRow(5, "No alerts triggered during this session."))
	} else {
		for _, alert := range alerts {
			fmt.Fprintf(&b, "            <tr><td>%s</td><td>%s</td><td class=\"%s\">%s</td><td>%s</td><td>%s</td></tr>\n",
				alert.Timestamp.Format("15:04:05"), alert.Type,
				html.EscapeString(alert.Severity), html.EscapeString(alert.Severity),
				html.EscapeString(alert.Source), html.EscapeString(alert.Message))
		}
	}
	b.WriteString(tableEnd)

	b.WriteString(tableStart("Domain History (Unique Domains)", "Time First Seen", "Hostname", "Client"))
	if len(domains) == 0 {
		b.WriteString(emptyRow(3, "No domains captured."))
	} else {
		for _, domain := range domains {
			fmt.Fprintf(&b, "            <tr><td>%s</td><td>%s</td><td>%s</td></tr>\n",
				domain.Timestamp.Format("15:04:05"), html.EscapeString(domain.Hostname), html.EscapeString(domain.Client))
		}
	}
	b.WriteString(tableEnd)

	b.WriteString("</body>\n</html>\n")
	return b.String()
}

const tableEnd = `        </tbody>
    </table>
`

func tableStart(title string, headers ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n    <h2>%s</h2>\n    <table>\n        <thead>\n            <tr>\n", title)
	for _, h := range headers {
		fmt.Fprintf(&b, "                <th>%s</th>\n", h)
	}
	b.WriteString("            </tr>\n        </thead>\n        <tbody>\n")
	return b.String()
}

func emptyRow(cols int, msg string) string {
	return fmt.Sprintf("            <tr><td colspan=\"%d\">%s</td></tr>\n", cols, msg)
}

// uniqueDomains keeps the first sighting of each hostname, oldest first.
func uniqueDomains(log []analysis.DomainEntry) []analysis.DomainEntry {
	seen := make(map[string]bool, len(log))
	out := make([]analysis.DomainEntry, 0, len(log))
	for _, d := range log {
		if seen[d.Hostname] {
			continue
		}
		seen[d.Hostname] = true
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
