package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/agbru/procmon/internal/sysmon"
)

// Dashboard runs the bubbletea program and forwards monitor events to it.
// It satisfies monitor.Observer.
type Dashboard struct {
	ref   *programRef
	model Model
	opts  []tea.ProgramOption
}

// New creates a dashboard for s. stop is called when the user quits.
func New(s Session, stop func(), opts ...tea.ProgramOption) *Dashboard {
	return &Dashboard{
		ref:   &programRef{},
		model: NewModel(s, stop),
		opts:  opts,
	}
}

// Observe forwards a persisted sample to the dashboard.
func (d *Dashboard) Observe(s sysmon.Sample) { d.ref.send(SampleMsg{Sample: s}) }

// End tells the dashboard that the session is over.
func (d *Dashboard) End(err error) { d.ref.send(SessionEndMsg{Err: err}) }

// Run blocks until the user quits or ctx is canceled.
func (d *Dashboard) Run(ctx context.Context) error {
	opts := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, d.opts...)
	p := tea.NewProgram(d.model, opts...)
	d.ref.set(p)
	defer d.ref.set(nil)

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
