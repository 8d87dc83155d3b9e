// Package tui is the interactive front end: a live packet list with a
// display filter, a detail pane, traffic panels and the capture controls.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"netinspect/internal/analysis"
	"netinspect/internal/capture"
	"netinspect/internal/models"
)

// Controller is the capture control surface the UI drives.
// *capture.Session satisfies it.
type Controller interface {
	Start(iface, filter string) error
	Pause() error
	Resume() error
	Stop()
	State() capture.State
	Generation() uint64
	Packet(index int) (models.Frame, error)
	Export(path string) (int, error)
}

// ReportFunc writes a session report and returns its path.
type ReportFunc func() (string, error)

// Options configure a Model.
type Options struct {
	Interface  string
	Filter     string // BPF filter used on start
	ExportPath string
	Report     ReportFunc
	AutoStart  bool
}

const (
	maxRows    = 10000
	maxNotices = 200
)

type pane int

const (
	paneList pane = iota
	paneFilter
	paneCaptureFilter
	paneDetail
)

// Model is the bubbletea model.
type Model struct {
	ctl   Controller
	stats *analysis.TrafficStats
	opts  Options

	events  []models.Event
	rows    []table.Row
	table   table.Model
	filter  textinput.Model
	bpf     textinput.Model
	detail  viewport.Model
	focus   pane
	notices []string

	// generation of the capture the list belongs to
	gen uint64
	// last failed start or export, shown next to the state
	err error

	state     capture.State
	bps       float64
	pps       float64
	protocols []analysis.ProtocolStat
	alerts    []analysis.Alert

	width  int
	height int
}

// New builds the UI around ctl. Every event the UI receives is also fed to
// stats, which is reset on every start.
func New(ctl Controller, stats *analysis.TrafficStats, opts Options) Model {
	t := table.New(
		table.WithColumns(columns(100)),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	fi := textinput.New()
	fi.Prompt = "filter> "
	fi.Placeholder = "protocol, address or text"
	fi.CharLimit = 128

	bi := textinput.New()
	bi.Prompt = "capture filter> "
	bi.Placeholder = "BPF expression, applies on next start"
	bi.CharLimit = 256
	bi.SetValue(opts.Filter)

	return Model{
		ctl:    ctl,
		stats:  stats,
		opts:   opts,
		table:  t,
		filter: fi,
		bpf:    bi,
		detail: viewport.New(100, 12),
		state:  ctl.State(),
	}
}

// columns sizes the packet list for a terminal of the given width.
func columns(width int) []table.Column {
	info := width - (7 + 23 + 22 + 22 + 9 + 6 + 10) - 16
	if info < 20 {
		info = 20
	}
	return []table.Column{
		{Title: "No.", Width: 7},
		{Title: "Time", Width: 23},
		{Title: "Source", Width: 22},
		{Title: "Destination", Width: 22},
		{Title: "Protocol", Width: 9},
		{Title: "Len", Width: 6},
		{Title: "Info", Width: info},
		{Title: "Alert", Width: 10},
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd()}
	if m.opts.AutoStart {
		cmds = append(cmds, func() tea.Msg { return startMsg{} })
	}
	return tea.Batch(cmds...)
}

// TickMsg refreshes the statistics panels.
type TickMsg time.Time

// EventMsg carries one published packet event.
type EventMsg models.Event

// NoticeMsg carries a status notice.
type NoticeMsg string

type startMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// ProgramSink forwards dispatched events into a running program.
type ProgramSink struct {
	P *tea.Program
}

func (s ProgramSink) Render(ev models.Event) { s.P.Send(EventMsg(ev)) }

func (s ProgramSink) Notice(msg string) { s.P.Send(NoticeMsg(msg)) }
