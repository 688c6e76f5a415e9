package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"

	"github.com/agbru/procmon/internal/sysmon"
)

// SpinnerRefreshRate is the animation period of the status spinner.
const SpinnerRefreshRate = 200 * time.Millisecond

// Spinner abstracts the terminal spinner so the status line can be tested.
type Spinner interface {
	Start()
	Stop()
	UpdateSuffix(suffix string)
}

type realSpinner struct {
	s *spinner.Spinner
}

func (rs *realSpinner) Start() { rs.s.Start() }
func (rs *realSpinner) Stop()  { rs.s.Stop() }

func (rs *realSpinner) UpdateSuffix(suffix string) {
	rs.s.Lock()
	rs.s.Suffix = suffix
	rs.s.Unlock()
}

var newSpinner = func(options ...spinner.Option) Spinner {
	s := spinner.New(spinner.CharSets[11], SpinnerRefreshRate, options...)
	return &realSpinner{s}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// StatusReporter keeps a one-line live view of the latest sample on a
// terminal. It satisfies monitor.Observer.
type StatusReporter struct {
	prefix string
	sp     Spinner

	mu      sync.Mutex
	running bool
}

// NewStatusReporter creates a reporter writing to out. prefix identifies the
// target, for example "worker (1234)".
func NewStatusReporter(out io.Writer, prefix string) *StatusReporter {
	return &StatusReporter{
		prefix: prefix,
		sp:     newSpinner(spinner.WithWriter(out), spinner.WithHiddenCursor(true)),
	}
}

// Begin starts the spinner. Repeated calls are ignored.
func (r *StatusReporter) Begin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.sp.UpdateSuffix(" " + r.prefix + " waiting for first sample")
	r.sp.Start()
	r.running = true
}

// Observe replaces the status line with s.
func (r *StatusReporter) Observe(s sysmon.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.sp.UpdateSuffix(" " + r.prefix + "  " + FormatStatusLine(s))
}

// End stops the spinner and clears the line.
func (r *StatusReporter) End() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.sp.Stop()
	r.running = false
}

// FormatStatusLine renders a sample the way it appears on the status line.
func FormatStatusLine(s sysmon.Sample) string {
	return fmt.Sprintf("cpu %6.2f%%  mem %6.2f%%  rss %s  vms %s",
		s.CPUPercent, s.MemoryPercent, FormatBytes(s.RSSBytes), FormatBytes(s.VMSBytes))
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

// FormatDuration shows microseconds below a millisecond, milliseconds below
// a second, and seconds rounded to the millisecond otherwise.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return d.Round(time.Millisecond).String()
	}
}
