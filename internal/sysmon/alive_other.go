//go:build !unix

package sysmon

import (
	"context"

	"github.com/shirou/gopsutil/v4/process"
)

func alive(ctx context.Context, pid int) bool {
	ok, err := process.PidExistsWithContext(ctx, int32(pid)) // #nosec G115 -- validated by Attach
	return err != nil || ok
}
