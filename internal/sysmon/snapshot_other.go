//go:build !linux

package sysmon

import (
	"context"
	"slices"

	"github.com/shirou/gopsutil/v4/process"
)

// gopsutilSnapshotter queries times and memory back to back where no single
// OS call returns both.
type gopsutilSnapshotter struct {
	proc *process.Process
}

func newSnapshotter(_ context.Context, p *process.Process) (snapshotter, error) {
	return gopsutilSnapshotter{proc: p}, nil
}

func (s gopsutilSnapshotter) snapshot(ctx context.Context) (rawSnapshot, error) {
	times, err := s.proc.TimesWithContext(ctx)
	if err != nil {
		return rawSnapshot{}, err
	}
	info, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return rawSnapshot{}, err
	}
	status, _ := s.proc.StatusWithContext(ctx)
	return rawSnapshot{
		CPUSeconds: times.User + times.System,
		RSS:        info.RSS,
		VMS:        info.VMS,
		Zombie:     slices.Contains(status, process.Zombie),
	}, nil
}
