//go:build linux

package sysmon

import (
	"context"

	"github.com/prometheus/procfs"
	"github.com/shirou/gopsutil/v4/process"
)

// procStatSnapshotter reads /proc/<pid>/stat once per sample, which carries
// CPU times, RSS, VMS and state together.
type procStatSnapshotter struct {
	proc procfs.Proc
}

func newSnapshotter(_ context.Context, p *process.Process) (snapshotter, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	proc, err := fs.Proc(int(p.Pid))
	if err != nil {
		return nil, err
	}
	return procStatSnapshotter{proc: proc}, nil
}

func (s procStatSnapshotter) snapshot(_ context.Context) (rawSnapshot, error) {
	stat, err := s.proc.Stat()
	if err != nil {
		return rawSnapshot{}, err
	}
	return rawSnapshot{
		CPUSeconds: stat.CPUTime(),
		RSS:        uint64(max(stat.ResidentMemory(), 0)),
		VMS:        uint64(stat.VirtualMemory()),
		Zombie:     stat.State == "Z" || stat.State == "X",
	}, nil
}
