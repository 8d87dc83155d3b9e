package tui

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"netinspect/internal/analysis"
	"netinspect/internal/capture"
	"netinspect/internal/decode"
	"netinspect/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	alertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var stateColors = map[capture.State]lipgloss.Color{
	capture.StateIdle:    lipgloss.Color("241"),
	capture.StateRunning: lipgloss.Color("#04B575"),
	capture.StatePaused:  lipgloss.Color("#FFB000"),
	capture.StateStopped: lipgloss.Color("#FF5F5F"),
}

func (m Model) View() string {
	header := fmt.Sprintf("netinspect - %s", m.opts.Interface)
	if m.opts.Filter != "" {
		header += fmt.Sprintf(" [%s]", m.opts.Filter)
	}
	state := lipgloss.NewStyle().Bold(true).Foreground(stateColors[m.state]).Render(strings.ToUpper(m.state.String()))
	title := lipgloss.JoinHorizontal(lipgloss.Center, titleStyle.Render(header), " ", state)
	if m.err != nil {
		title = lipgloss.JoinHorizontal(lipgloss.Center, title, " ", alertStyle.Render(m.err.Error()))
	}

	if m.focus == paneDetail {
		return lipgloss.JoinVertical(lipgloss.Left,
			title,
			infoStyle.Render(m.detail.View()),
			helpStyle.Render("up/down scroll - esc back"),
		)
	}

	// QoS Panel
	qos := fmt.Sprintf("Bandwidth: %s\nPacket Rate: %.2f PPS\nPackets: %d", formatBps(m.bps), m.pps, len(m.events))
	qosBox := infoStyle.Render(qos)

	protoBox := infoStyle.Render("Protocols:\n" + protocolLines(m.protocols, 3))
	alertBox := infoStyle.Render("Alerts:\n" + alertLines(m.alerts, 3))
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, qosBox, protoBox, alertBox)

	list := m.table.View()
	if m.focus == paneFilter || m.filter.Value() != "" {
		list = m.filter.View() + "\n" + list
	}
	if m.focus == paneCaptureFilter {
		list = m.bpf.View() + "\n" + list
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		row1,
		list,
		m.noticeLines(2),
		helpStyle.Render("s start/stop - p pause/resume - f capture filter - / display filter - enter details - e export - r report - q quit"),
	)
}

func protocolLines(protocols []analysis.ProtocolStat, limit int) string {
	if len(protocols) == 0 {
		return "Waiting for data..."
	}
	if len(protocols) < limit {
		limit = len(protocols)
	}
	lines := make([]string, 0, limit)
	for _, p := range protocols[:limit] {
		lines = append(lines, fmt.Sprintf("%s: %d", p.Protocol, p.Count))
	}
	return strings.Join(lines, "\n")
}

func alertLines(alerts []analysis.Alert, limit int) string {
	if len(alerts) == 0 {
		return "None"
	}
	if len(alerts) > limit {
		alerts = alerts[len(alerts)-limit:]
	}
	lines := make([]string, 0, len(alerts))
	for _, a := range alerts {
		lines = append(lines, alertStyle.Render(fmt.Sprintf("%s %s", a.Timestamp.Format("15:04:05"), a.Message)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) noticeLines(n int) string {
	notices := m.notices
	if len(notices) > n {
		notices = notices[len(notices)-n:]
	}
	return helpStyle.Render(strings.Join(notices, "\n"))
}

// detailText renders the layer breakdown and hex dump of one frame.
func detailText(ev models.Event, frame models.Frame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Packet #%d  %s  %d bytes\n", ev.Index+1, frame.Timestamp.Format(models.TimeLayout), frame.Len())
	if ev.Alert != nil {
		b.WriteString(alertStyle.Render(fmt.Sprintf("ALERT %s %s signature %q",
			strings.ToUpper(ev.Alert.Severity), ev.Alert.Kind, ev.Alert.Pattern)))
		b.WriteByte('\n')
	}
	if svc := analysis.ServiceLabel(ev.SrcPort, ev.DstPort); svc != "" {
		fmt.Fprintf(&b, "Service   %s\n", svc)
	}
	b.WriteByte('\n')
	b.WriteString(decode.Decode(frame.Data).Describe())
	b.WriteString("\n\n")
	b.WriteString(hex.Dump(frame.Data))
	return b.String()
}

func formatBps(bps float64) string {
	if bps >= 1e6 {
		return fmt.Sprintf("%.2f Mbps", bps/1e6)
	}
	if bps >= 1e3 {
		return fmt.Sprintf("%.2f Kbps", bps/1e3)
	}
	return fmt.Sprintf("%.2f bps", bps)
}
