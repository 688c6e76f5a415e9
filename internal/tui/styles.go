package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/agbru/procmon/internal/ui"
)

// styles are rebuilt from the active ui palette when a dashboard is created.
type styles struct {
	panel   lipgloss.Style
	header  lipgloss.Style
	title   lipgloss.Style
	dim     lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	chart   lipgloss.Style
	memory  lipgloss.Style
	key     lipgloss.Style
	running lipgloss.Style
	paused  lipgloss.Style
	done    lipgloss.Style
	failed  lipgloss.Style
	palette ui.Palette
}

func newStyles(p ui.Palette) styles {
	bold := func(c lipgloss.TerminalColor) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c).Bold(true)
	}
	return styles{
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border).
			Foreground(p.Text).
			Padding(0, 1),
		header:  lipgloss.NewStyle().Foreground(p.Accent).Bold(true).Padding(0, 1),
		title:   bold(p.Accent),
		dim:     lipgloss.NewStyle().Foreground(p.Dim),
		label:   lipgloss.NewStyle().Foreground(p.Dim).Width(10),
		value:   bold(p.Text),
		chart:   lipgloss.NewStyle().Foreground(p.Accent),
		memory:  lipgloss.NewStyle().Foreground(p.Info),
		key:     bold(p.Accent),
		running: bold(p.Good),
		paused:  bold(p.Warn),
		done:    bold(p.Accent),
		failed:  bold(p.Bad),
		palette: p,
	}
}
