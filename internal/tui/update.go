package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"netinspect/internal/capture"
	"netinspect/internal/models"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case TickMsg:
		m.refreshStats()
		return m, tickCmd()

	case EventMsg:
		m.addEvent(models.Event(msg))
		return m, nil

	case NoticeMsg:
		m.notify(string(msg))
		m.state = m.ctl.State()
		return m, nil

	case startMsg:
		m.start()
		return m, nil

	case tea.KeyMsg:
		switch m.focus {
		case paneFilter:
			return m.updateFilter(msg)
		case paneCaptureFilter:
			return m.updateCaptureFilter(msg)
		case paneDetail:
			switch msg.String() {
			case "esc", "enter", "backspace", "q":
				m.focus = paneList
				return m, nil
			}
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "q", "ctrl+c":
			m.ctl.Stop()
			return m, tea.Quit
		case "s":
			if m.ctl.State().Active() {
				m.ctl.Stop()
				m.state = m.ctl.State()
			} else {
				m.start()
			}
			return m, nil
		case "p":
			m.togglePause()
			return m, nil
		case "e":
			if _, err := m.ctl.Export(m.opts.ExportPath); err != nil {
				m.err = fmt.Errorf("export failed: %w", err)
			} else {
				m.err = nil
			}
			return m, nil
		case "r":
			m.writeReport()
			return m, nil
		case "/":
			m.focus = paneFilter
			cmd = m.filter.Focus()
			return m, cmd
		case "f":
			m.focus = paneCaptureFilter
			m.bpf.SetValue(m.opts.Filter)
			m.bpf.CursorEnd()
			cmd = m.bpf.Focus()
			return m, cmd
		case "enter":
			m.openDetail()
			return m, nil
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.filter.Blur()
		m.focus = paneList
		return *m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.rebuildRows()
	return *m, cmd
}

// updateCaptureFilter edits the filter handed to the next Start. Esc
// discards the edit.
func (m *Model) updateCaptureFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.opts.Filter = strings.TrimSpace(m.bpf.Value())
		if m.opts.Filter == "" {
			m.notify("capture filter cleared")
		} else {
			m.notify(fmt.Sprintf("capture filter %q applies on next start", m.opts.Filter))
		}
		fallthrough
	case "esc":
		m.bpf.Blur()
		m.focus = paneList
		return *m, nil
	}
	var cmd tea.Cmd
	m.bpf, cmd = m.bpf.Update(msg)
	return *m, cmd
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	m.table.SetColumns(columns(w))
	if th := h - 16; th > 3 {
		m.table.SetHeight(th)
	}
	m.detail.Width = w - 4
	if dh := h - 8; dh > 3 {
		m.detail.Height = dh
	}
}

// start clears the list and statistics and starts a new capture. Events
// still queued from an earlier capture are dropped by generation.
func (m *Model) start() {
	m.events = nil
	m.rows = nil
	m.table.SetRows(nil)
	m.table.SetCursor(0)
	m.stats.Reset()
	m.protocols, m.alerts = nil, nil
	m.err = m.ctl.Start(m.opts.Interface, m.opts.Filter)
	m.gen = m.ctl.Generation()
	m.state = m.ctl.State()
}

func (m *Model) togglePause() {
	var err error
	switch m.ctl.State() {
	case capture.StateRunning:
		err = m.ctl.Pause()
	case capture.StatePaused:
		err = m.ctl.Resume()
	default:
		m.notify("no capture running")
		return
	}
	if err != nil {
		m.notify(err.Error())
	}
	m.state = m.ctl.State()
}

func (m *Model) writeReport() {
	if m.opts.Report == nil {
		m.notify("reports are not available")
		return
	}
	path, err := m.opts.Report()
	if err != nil {
		m.notify(fmt.Sprintf("report failed: %v", err))
		return
	}
	m.notify("report written to " + path)
}

func (m *Model) notify(msg string) {
	m.notices = append(m.notices, msg)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

func (m *Model) refreshStats() {
	m.state = m.ctl.State()
	m.bps, m.pps = m.stats.GetRates()
	m.protocols = m.stats.GetProtocolStats()
	m.alerts = m.stats.GetAlerts(5)
}

func (m *Model) addEvent(ev models.Event) {
	if ev.Generation != m.gen {
		return
	}
	m.stats.ProcessEvent(ev)

	m.events = append(m.events, ev)
	if len(m.events) > maxRows {
		m.events = append([]models.Event(nil), m.events[maxRows/10:]...)
		m.rebuildRows()
		return
	}
	if !m.visible(ev) {
		return
	}

	follow := len(m.rows) == 0 || m.table.Cursor() >= len(m.rows)-1
	m.rows = append(m.rows, table.Row(ev.Columns()))
	m.table.SetRows(m.rows)
	if follow {
		m.table.GotoBottom()
	}
}

// visible applies the display filter: every whitespace separated term must
// occur, case-insensitively, in one of the row's columns.
func (m *Model) visible(ev models.Event) bool {
	terms := strings.Fields(strings.ToLower(m.filter.Value()))
	if len(terms) == 0 {
		return true
	}
	row := strings.ToLower(strings.Join(ev.Columns(), " "))
	for _, t := range terms {
		if !strings.Contains(row, t) {
			return false
		}
	}
	return true
}

func (m *Model) rebuildRows() {
	rows := make([]table.Row, 0, len(m.events))
	for _, ev := range m.events {
		if m.visible(ev) {
			rows = append(rows, table.Row(ev.Columns()))
		}
	}
	m.rows = rows
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.GotoBottom()
	}
}

// selected returns the event under the cursor.
func (m *Model) selected() (models.Event, bool) {
	row := m.table.SelectedRow()
	if row == nil {
		return models.Event{}, false
	}
	n, err := strconv.Atoi(row[0])
	if err != nil {
		return models.Event{}, false
	}
	idx := n - 1
	i := sort.Search(len(m.events), func(i int) bool { return m.events[i].Index >= idx })
	if i == len(m.events) || m.events[i].Index != idx {
		return models.Event{}, false
	}
	return m.events[i], true
}

func (m *Model) openDetail() {
	ev, ok := m.selected()
	if !ok {
		return
	}
	frame, err := m.ctl.Packet(ev.Index)
	if err != nil {
		m.notify(err.Error())
		return
	}
	m.detail.SetContent(detailText(ev, frame))
	m.detail.GotoTop()
	m.focus = paneDetail
}
