package ui

import (
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Palette is a named set of lipgloss colors.
type Palette struct {
	Name   string
	Text   lipgloss.TerminalColor
	Border lipgloss.TerminalColor
	Accent lipgloss.TerminalColor
	Good   lipgloss.TerminalColor
	Warn   lipgloss.TerminalColor
	Bad    lipgloss.TerminalColor
	Dim    lipgloss.TerminalColor
	Info   lipgloss.TerminalColor
}

var (
	// Dark is the default orange-on-black palette.
	Dark = Palette{
		Name:   "dark",
		Text:   lipgloss.Color("#E0E0E0"),
		Border: lipgloss.Color("#FF6600"),
		Accent: lipgloss.Color("#FF8C00"),
		Good:   lipgloss.Color("#9ece6a"),
		Warn:   lipgloss.Color("#FFB347"),
		Bad:    lipgloss.Color("#FF4444"),
		Dim:    lipgloss.Color("#666666"),
		Info:   lipgloss.Color("#4488FF"),
	}

	// Light darkens every color for light terminal backgrounds.
	Light = Palette{
		Name:   "light",
		Text:   lipgloss.Color("#202020"),
		Border: lipgloss.Color("#B34700"),
		Accent: lipgloss.Color("#CC5500"),
		Good:   lipgloss.Color("#2E7D32"),
		Warn:   lipgloss.Color("#A15C00"),
		Bad:    lipgloss.Color("#B71C1C"),
		Dim:    lipgloss.Color("#808080"),
		Info:   lipgloss.Color("#1A4FB3"),
	}

	// Monochrome renders everything in the terminal's default colors.
	Monochrome = Palette{
		Name:   "none",
		Text:   lipgloss.NoColor{},
		Border: lipgloss.NoColor{},
		Accent: lipgloss.NoColor{},
		Good:   lipgloss.NoColor{},
		Warn:   lipgloss.NoColor{},
		Bad:    lipgloss.NoColor{},
		Dim:    lipgloss.NoColor{},
		Info:   lipgloss.NoColor{},
	}

	mu      sync.RWMutex
	current = Dark
)

// Thresholds used by Level, in percent.
const (
	WarnPercent = 50.0
	BadPercent  = 80.0
)

// Colored reports whether p emits any color.
func (p Palette) Colored() bool { return p.Name != Monochrome.Name }

// Level picks Good, Warn or Bad for a utilization percentage.
func (p Palette) Level(percent float64) lipgloss.TerminalColor {
	switch {
	case percent >= BadPercent:
		return p.Bad
	case percent >= WarnPercent:
		return p.Warn
	default:
		return p.Good
	}
}

// Current returns the active palette.
func Current() Palette {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Use makes p the active palette.
func Use(p Palette) {
	mu.Lock()
	defer mu.Unlock()
	current = p
}

// ByName returns the palette called name ("dark", "light", "none").
// Unknown names fall back to Dark.
func ByName(name string) Palette {
	switch name {
	case Light.Name:
		return Light
	case Monochrome.Name:
		return Monochrome
	default:
		return Dark
	}
}

// Init selects Monochrome when noColor is set or NO_COLOR is present in the
// environment, and Dark otherwise.
func Init(noColor bool) {
	if _, set := os.LookupEnv("NO_COLOR"); noColor || set {
		Use(Monochrome)
		return
	}
	Use(Dark)
}
