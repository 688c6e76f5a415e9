package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/agbru/procmon/internal/sysmon"
	"github.com/agbru/procmon/internal/ui"
)

// Tally records how many samples a session persisted and the latest one.
type Tally struct {
	Samples int
	First   time.Time
	Latest  sysmon.Sample
}

// SessionTally keeps a Tally up to date from observed samples. It satisfies
// monitor.Observer and is safe for concurrent use.
type SessionTally struct {
	mu    sync.Mutex
	tally Tally
}

// Observe counts s and keeps it as the latest sample.
func (a *SessionTally) Observe(s sysmon.Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tally.Samples == 0 {
		a.tally.First = s.Timestamp
	}
	a.tally.Samples++
	a.tally.Latest = s
}

// Snapshot returns the tally so far.
func (a *SessionTally) Snapshot() Tally {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tally
}

// Summary is what the user sees when a session ends.
type Summary struct {
	PID     int
	Process string
	Output  string
	Elapsed time.Duration
	Outcome string
	Tally   Tally
}

// FormatSummary renders sum as a bordered block using palette p.
func FormatSummary(sum Summary, p ui.Palette) string {
	label := lipgloss.NewStyle().Foreground(p.Dim).Width(14)
	value := lipgloss.NewStyle().Foreground(p.Text)
	title := lipgloss.NewStyle().Foreground(p.Accent).Bold(true)

	row := func(name, v string, color lipgloss.TerminalColor) string {
		style := value
		if color != nil {
			style = style.Foreground(color)
		}
		return label.Render(name) + style.Render(v)
	}

	t := sum.Tally
	lines := []string{
		title.Render(fmt.Sprintf("%s (pid %d)", sum.Process, sum.PID)),
		"",
		row("outcome", sum.Outcome, nil),
		row("log", sum.Output, nil),
		row("samples", fmt.Sprintf("%d", t.Samples), nil),
		row("elapsed", FormatDuration(sum.Elapsed), nil),
	}
	if t.Samples > 0 {
		last := t.Latest
		lines = append(lines,
			row("last sample", last.Timestamp.Format(time.TimeOnly), nil),
			row("cpu", fmt.Sprintf("%.2f%%", last.CPUPercent), p.Level(last.CPUPercent)),
			row("memory", fmt.Sprintf("%.2f%%", last.MemoryPercent), p.Level(last.MemoryPercent)),
			row("rss", FormatBytes(last.RSSBytes), nil),
			row("vms", FormatBytes(last.VMSBytes), nil),
		)
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Border).
		Padding(0, 1)
	return box.Render(strings.Join(lines, "\n"))
}

// DisplaySummary writes the summary with the active palette.
func DisplaySummary(out io.Writer, sum Summary) {
	fmt.Fprintln(out, FormatSummary(sum, ui.Current()))
}
