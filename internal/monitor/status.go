package monitor

import (
	"time"

	"github.com/agbru/procmon/internal/sysmon"
)

// State is the lifecycle state of a Monitor.
type State int

// Lifecycle states. Stopped re-enters Running on the next Start.
const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Status is a point-in-time copy of the monitor's session state.
type Status struct {
	State          State          `json:"state"`
	SessionID      string         `json:"session_id"`
	PID            int            `json:"pid"`
	Name           string         `json:"process"`
	Output         string         `json:"output"`
	Interval       time.Duration  `json:"interval_ns"`
	SamplesWritten uint64         `json:"samples_written"`
	LastSample     *sysmon.Sample `json:"last_sample,omitempty"`
	TargetExited   bool           `json:"target_exited"`
	Err            string         `json:"error,omitempty"`
}

// Status returns a copy of the current session state.
func (m *Monitor) Status() Status {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	st := m.status
	if st.LastSample != nil {
		last := *st.LastSample
		st.LastSample = &last
	}
	return st
}

func (m *Monitor) setState(s State) {
	m.statusMu.Lock()
	m.status.State = s
	if s == StateRunning {
		m.status.TargetExited = false
		m.status.Err = ""
	}
	m.statusMu.Unlock()
}

func (m *Monitor) recordSample(s sysmon.Sample) {
	m.statusMu.Lock()
	m.status.SamplesWritten++
	m.status.LastSample = &s
	m.statusMu.Unlock()
}

// finish records the end of the session owning stopCh. A newer session
// started in the meantime keeps its own state.
func (m *Monitor) finish(stopCh chan struct{}, err error) {
	m.mu.Lock()
	current := m.stopCh == stopCh
	m.mu.Unlock()
	if !current {
		return
	}
	m.statusMu.Lock()
	m.status.State = StateStopped
	if err != nil {
		m.status.Err = err.Error()
	}
	m.statusMu.Unlock()
}

func (m *Monitor) markExited() {
	m.statusMu.Lock()
	m.status.TargetExited = true
	m.statusMu.Unlock()
}

