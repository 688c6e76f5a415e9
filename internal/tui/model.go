package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agbru/procmon/internal/cli"
	"github.com/agbru/procmon/internal/sysmon"
	"github.com/agbru/procmon/internal/ui"
)

const (
	defaultHistory = 120
	chartRows      = 6
	minWidth       = 40
	clockInterval  = time.Second
)

// Session describes what the dashboard is watching.
type Session struct {
	PID      int
	Process  string
	Output   string
	Interval time.Duration
	Version  string
}

// SampleMsg carries a persisted sample into the program.
type SampleMsg struct{ Sample sysmon.Sample }

// SessionEndMsg reports that the monitor loop returned.
type SessionEndMsg struct{ Err error }

type clockMsg time.Time

// Model is the bubbletea model of the dashboard.
type Model struct {
	session Session
	keymap  KeyMap
	styles  styles
	stop    func()
	now     func() time.Time

	started time.Time
	ended   time.Time
	cpu     *RingBuffer
	memory  *RingBuffer
	last    sysmon.Sample
	samples int
	paused  bool
	done    bool
	err     error
	width   int
	height  int
}

// NewModel creates a dashboard model. stop is called when the user quits.
func NewModel(s Session, stop func()) Model {
	if stop == nil {
		stop = func() {}
	}
	return Model{
		session: s,
		keymap:  DefaultKeyMap(),
		styles:  newStyles(ui.Current()),
		stop:    stop,
		now:     time.Now,
		started: time.Now(),
		cpu:     NewRingBuffer(defaultHistory),
		memory:  NewRingBuffer(defaultHistory),
	}
}

// Init starts the elapsed-time clock.
func (m Model) Init() tea.Cmd { return clockCmd() }

func clockCmd() tea.Cmd {
	return tea.Tick(clockInterval, func(t time.Time) tea.Msg { return clockMsg(t) })
}

// Update handles keys, resizes, samples and the end of the session.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		history := max(m.chartWidth()*2, 1)
		m.cpu.Resize(history)
		m.memory.Resize(history)
		return m, nil

	case SampleMsg:
		m.samples++
		if !m.paused {
			m.last = msg.Sample
			m.cpu.Push(msg.Sample.CPUPercent)
			m.memory.Push(float64(msg.Sample.RSSBytes))
		}
		return m, nil

	case SessionEndMsg:
		m.done = true
		m.err = msg.Err
		m.ended = m.now()
		return m, nil

	case clockMsg:
		if m.done {
			return m, nil
		}
		return m, clockCmd()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.stop()
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Pause):
		m.paused = !m.paused
	case key.Matches(msg, m.keymap.Reset):
		m.cpu.Reset()
		m.memory.Reset()
	}
	return m, nil
}

func (m Model) chartWidth() int {
	// panel border and padding take four columns
	return max(m.width, minWidth) - 4
}

func (m Model) elapsed() time.Duration {
	end := m.ended
	if end.IsZero() {
		end = m.now()
	}
	return end.Sub(m.started)
}

// View renders the dashboard.
func (m Model) View() string {
	if m.width == 0 {
		return "Waiting for terminal size..."
	}
	width := max(m.width, minWidth)
	inner := m.chartWidth()
	st := m.styles

	header := st.header.Width(width).Render(fmt.Sprintf("procmon %s %s (pid %d)  %s  every %s",
		m.session.Version, m.session.Process, m.session.PID,
		cli.FormatDuration(m.elapsed()), m.session.Interval))

	level := lipgloss.NewStyle().Foreground(st.palette.Level(m.last.CPUPercent)).Bold(true)
	memLevel := lipgloss.NewStyle().Foreground(st.palette.Level(m.last.MemoryPercent)).Bold(true)
	current := strings.Join([]string{
		st.label.Render("cpu") + level.Render(fmt.Sprintf("%6.2f%%", m.last.CPUPercent)),
		st.label.Render("memory") + memLevel.Render(fmt.Sprintf("%6.2f%%", m.last.MemoryPercent)),
		st.label.Render("rss") + st.value.Render(cli.FormatBytes(m.last.RSSBytes)),
		st.label.Render("vms") + st.value.Render(cli.FormatBytes(m.last.VMSBytes)),
		st.label.Render("samples") + st.value.Render(fmt.Sprintf("%d", m.samples)),
		st.label.Render("log") + st.dim.Render(m.session.Output),
	}, "\n")

	cpuLines := RenderBrailleChart(m.cpu.Slice(), inner, chartRows)
	cpuChart := st.title.Render("CPU %") + "\n" + st.chart.Render(strings.Join(cpuLines, "\n"))

	memLine := RenderSparkline(m.memory.Slice(), m.memory.Max())
	memChart := st.title.Render("RSS "+cli.FormatBytes(m.last.RSSBytes)) + "\n" + st.memory.Render(memLine)

	body := st.panel.Width(width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, current, "", cpuChart, "", memChart))

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.footer())
}

func (m Model) footer() string {
	st := m.styles
	var status string
	switch {
	case m.done && m.err != nil && !errors.Is(m.err, context.Canceled):
		status = st.failed.Render("failed: " + m.err.Error())
	case m.done:
		status = st.done.Render("session ended")
	case m.paused:
		status = st.paused.Render("paused")
	default:
		status = st.running.Render("monitoring")
	}

	keys := make([]string, 0, 3)
	for _, b := range m.keymap.ShortHelp() {
		h := b.Help()
		keys = append(keys, st.key.Render(h.Key)+" "+st.dim.Render(h.Desc))
	}
	return " " + status + "  " + strings.Join(keys, "  ")
}
