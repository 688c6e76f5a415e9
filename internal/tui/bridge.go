package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// programRef lets observers on other goroutines reach the running program.
// The model is copied on every Update, so the pointer lives outside it.
type programRef struct {
	mu      sync.RWMutex
	program *tea.Program
}

func (r *programRef) set(p *tea.Program) {
	r.mu.Lock()
	r.program = p
	r.mu.Unlock()
}

// send delivers msg if a program is attached. It returns immediately once
// the program has exited.
func (r *programRef) send(msg tea.Msg) {
	r.mu.RLock()
	p := r.program
	r.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}
