// Package sysmon attaches to a single live process and samples its CPU and
// memory usage. A Handle is resolved eagerly by Attach and reports a
// TargetExitedError once the process is gone.
package sysmon

import (
	"context"
	"errors"
	"math"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	apperrors "github.com/agbru/procmon/internal/errors"
)

const bytesPerMegabyte = 1024 * 1024

var errInvalidPID = errors.New("pid out of range")

// Sample is one measurement of the target process.
type Sample struct {
	Timestamp     time.Time
	CPUPercent    float64 // 0.0 .. 100.0, normalized by logical CPU count
	MemoryPercent float64 // 0.0 .. 100.0 of total system memory
	RSSBytes      uint64
	VMSBytes      uint64
}

// RSSMegabytes returns the resident set size in MiB.
func (s Sample) RSSMegabytes() float64 { return float64(s.RSSBytes) / bytesPerMegabyte }

// VMSMegabytes returns the virtual memory size in MiB.
func (s Sample) VMSMegabytes() float64 { return float64(s.VMSBytes) / bytesPerMegabyte }

// rawSnapshot is what the platform layer reads in one OS query.
type rawSnapshot struct {
	CPUSeconds float64 // cumulative user+system time
	RSS        uint64
	VMS        uint64
	Zombie     bool
}

type snapshotter interface {
	snapshot(ctx context.Context) (rawSnapshot, error)
}

// Handle is an attached process.
type Handle struct {
	pid      int
	name     string
	numCPU   int
	totalMem uint64
	snap     snapshotter
	now      func() time.Time

	mu       sync.Mutex
	lastCPU  float64
	lastWall time.Time
}

// Attach resolves pid to a live process. It fails with
// apperrors.TargetNotFoundError or apperrors.TargetAccessDeniedError before
// any sampling starts. Attach takes the first snapshot as the CPU baseline,
// so the first Sample reports utilization since attach.
func Attach(ctx context.Context, pid int) (*Handle, error) {
	if pid <= 0 || pid > math.MaxInt32 {
		return nil, apperrors.TargetNotFoundError{PID: pid, Cause: errInvalidPID}
	}

	proc, err := process.NewProcessWithContext(ctx, int32(pid)) // #nosec G115 -- range checked above
	if err != nil {
		return nil, classifyAttachErr(pid, err)
	}
	name, err := proc.NameWithContext(ctx)
	if err != nil {
		return nil, classifyAttachErr(pid, err)
	}
	snap, err := newSnapshotter(ctx, proc)
	if err != nil {
		return nil, classifyAttachErr(pid, err)
	}

	numCPU, err := cpu.CountsWithContext(ctx, true)
	if err != nil || numCPU < 1 {
		numCPU = runtime.NumCPU()
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, apperrors.MeasurementError{PID: pid, Cause: err}
	}

	h := newHandle(pid, name, numCPU, vm.Total, snap, time.Now)
	if err := h.prime(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

func newHandle(pid int, name string, numCPU int, totalMem uint64, snap snapshotter, now func() time.Time) *Handle {
	if numCPU < 1 {
		numCPU = 1
	}
	return &Handle{
		pid:      pid,
		name:     name,
		numCPU:   numCPU,
		totalMem: totalMem,
		snap:     snap,
		now:      now,
	}
}

func (h *Handle) prime(ctx context.Context) error {
	raw, err := h.snap.snapshot(ctx)
	if err != nil {
		return classifyAttachErr(h.pid, err)
	}
	if raw.Zombie {
		return apperrors.TargetNotFoundError{PID: h.pid, Cause: errZombie}
	}
	h.mu.Lock()
	h.lastCPU = raw.CPUSeconds
	h.lastWall = h.now()
	h.mu.Unlock()
	return nil
}

// PID returns the process identifier.
func (h *Handle) PID() int { return h.pid }

// Name returns the process name captured at attach time.
func (h *Handle) Name() string { return h.name }

// NumCPU returns the logical CPU count used to normalize CPU percent.
func (h *Handle) NumCPU() int { return h.numCPU }

// Sample reads CPU and memory from a single snapshot. CPUPercent covers the
// time since the previous Sample (or since Attach for the first call).
func (h *Handle) Sample(ctx context.Context) (Sample, error) {
	raw, err := h.snap.snapshot(ctx)
	if err != nil {
		return Sample{}, h.classifySampleErr(ctx, err)
	}
	if raw.Zombie {
		return Sample{}, apperrors.TargetExitedError{PID: h.pid, Cause: errZombie}
	}

	now := h.now()
	h.mu.Lock()
	cpuPct := h.cpuPercentLocked(raw.CPUSeconds, now)
	h.mu.Unlock()

	return Sample{
		Timestamp:     now,
		CPUPercent:    cpuPct,
		MemoryPercent: memoryPercent(raw.RSS, h.totalMem),
		RSSBytes:      raw.RSS,
		VMSBytes:      raw.VMS,
	}, nil
}

func (h *Handle) cpuPercentLocked(cpuSeconds float64, now time.Time) float64 {
	wall := now.Sub(h.lastWall).Seconds()
	delta := cpuSeconds - h.lastCPU
	h.lastCPU = cpuSeconds
	h.lastWall = now
	if wall <= 0 || delta <= 0 {
		return 0
	}
	pct := delta / wall * 100 / float64(h.numCPU)
	return math.Min(pct, 100)
}

func memoryPercent(rss, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(rss) / float64(total) * 100
}

var errZombie = errors.New("process is a zombie")

func isGone(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, process.ErrorProcessNotRunning)
}

func isPermission(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, process.ErrorNotPermitted)
}

// classifyAttachErr maps an attach-time failure onto the two attach errors.
func classifyAttachErr(pid int, err error) error {
	if isPermission(err) {
		return apperrors.TargetAccessDeniedError{PID: pid, Cause: err}
	}
	return apperrors.TargetNotFoundError{PID: pid, Cause: err}
}

// classifySampleErr separates a vanished process from a genuine query failure.
func (h *Handle) classifySampleErr(ctx context.Context, err error) error {
	if isGone(err) || !alive(ctx, h.pid) {
		return apperrors.TargetExitedError{PID: h.pid, Cause: err}
	}
	return apperrors.MeasurementError{PID: h.pid, Cause: err}
}
