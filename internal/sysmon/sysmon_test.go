package sysmon

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"testing"
	"time"

	apperrors "github.com/agbru/procmon/internal/errors"
)

// fakeSnapshotter returns scripted snapshots in order.
type fakeSnapshotter struct {
	snaps []rawSnapshot
	errs  []error
	calls int
}

func (f *fakeSnapshotter) snapshot(context.Context) (rawSnapshot, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return rawSnapshot{}, f.errs[i]
	}
	return f.snaps[i], nil
}

// fakeClock advances by step on every call.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	now := start
	return func() time.Time {
		t := now
		now = now.Add(step)
		return t
	}
}

func TestAttach_CurrentProcess(t *testing.T) {
	h, err := Attach(context.Background(), os.Getpid())
	if err != nil {
		t.Fatalf("Attach(self) failed: %v", err)
	}
	if h.PID() != os.Getpid() {
		t.Errorf("PID() = %d, want %d", h.PID(), os.Getpid())
	}
	if h.Name() == "" {
		t.Error("expected a non-empty process name")
	}
	if h.NumCPU() < 1 {
		t.Errorf("NumCPU() = %d, want >= 1", h.NumCPU())
	}
}

func TestSample_CurrentProcess_ValidRanges(t *testing.T) {
	h, err := Attach(context.Background(), os.Getpid())
	if err != nil {
		t.Fatalf("Attach(self) failed: %v", err)
	}

	// Burn some CPU so the delta is non-trivial.
	deadline := time.Now().Add(50 * time.Millisecond)
	x := 0
	for time.Now().Before(deadline) {
		x++
	}
	_ = x

	s, err := h.Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if s.CPUPercent < 0 || s.CPUPercent > 100 {
		t.Errorf("CPUPercent out of range: %f", s.CPUPercent)
	}
	if s.MemoryPercent <= 0 || s.MemoryPercent > 100 {
		t.Errorf("MemoryPercent out of range: %f", s.MemoryPercent)
	}
	if s.RSSBytes == 0 || s.VMSBytes == 0 {
		t.Errorf("expected positive RSS/VMS, got %d/%d", s.RSSBytes, s.VMSBytes)
	}
	if s.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
}

func TestAttach_InvalidPID(t *testing.T) {
	for _, pid := range []int{0, -1, 1 << 40} {
		_, err := Attach(context.Background(), pid)
		var notFound apperrors.TargetNotFoundError
		if !errors.As(err, &notFound) {
			t.Errorf("Attach(%d) error = %v, want TargetNotFoundError", pid, err)
		}
	}
}

func TestAttach_DeadProcess(t *testing.T) {
	// Re-run the test binary with no tests selected; it exits immediately.
	cmd := exec.Command(os.Args[0], "-test.run=^$")
	if err := cmd.Run(); err != nil {
		t.Fatalf("helper process failed: %v", err)
	}
	pid := cmd.ProcessState.Pid()

	_, err := Attach(context.Background(), pid)
	var notFound apperrors.TargetNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Attach(dead pid %d) error = %v, want TargetNotFoundError", pid, err)
	}
	if notFound.PID != pid {
		t.Errorf("error PID = %d, want %d", notFound.PID, pid)
	}
}

func TestHandle_CPUPercentNormalized(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)
	snap := &fakeSnapshotter{snaps: []rawSnapshot{
		{CPUSeconds: 10.0, RSS: 100, VMS: 200},
		{CPUSeconds: 10.5, RSS: 100, VMS: 200},   // 0.5s CPU over 1s wall on 2 CPUs
		{CPUSeconds: 12.5, RSS: 100, VMS: 200},   // 2s CPU over 1s wall: clamped
		{CPUSeconds: 12.5, RSS: 1000, VMS: 2000}, // idle
	}}
	h := newHandle(42, "fake", 2, 1000, snap, fakeClock(start, time.Second))
	if err := h.prime(context.Background()); err != nil {
		t.Fatalf("prime failed: %v", err)
	}

	want := []float64{25, 100, 0}
	for i, w := range want {
		s, err := h.Sample(context.Background())
		if err != nil {
			t.Fatalf("sample %d: %v", i, err)
		}
		if s.CPUPercent != w {
			t.Errorf("sample %d: CPUPercent = %f, want %f", i, s.CPUPercent, w)
		}
	}
}

func TestHandle_MemoryFromSameSnapshot(t *testing.T) {
	snap := &fakeSnapshotter{snaps: []rawSnapshot{
		{CPUSeconds: 1},
		{CPUSeconds: 1, RSS: 256 * bytesPerMegabyte, VMS: 1024 * bytesPerMegabyte},
	}}
	h := newHandle(1, "fake", 1, 1024*bytesPerMegabyte, snap, fakeClock(time.Now(), time.Second))
	if err := h.prime(context.Background()); err != nil {
		t.Fatal(err)
	}
	s, err := h.Sample(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.MemoryPercent != 25 {
		t.Errorf("MemoryPercent = %f, want 25", s.MemoryPercent)
	}
	if s.RSSMegabytes() != 256 || s.VMSMegabytes() != 1024 {
		t.Errorf("RSS/VMS MB = %f/%f, want 256/1024", s.RSSMegabytes(), s.VMSMegabytes())
	}
}

func TestHandle_SampleErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		snap       rawSnapshot
		err        error
		wantExited bool
	}{
		{name: "not exist", err: os.ErrNotExist, wantExited: true},
		{name: "zombie", snap: rawSnapshot{Zombie: true}, wantExited: true},
		{name: "other failure on live pid", err: errors.New("read failed"), wantExited: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &fakeSnapshotter{
				snaps: []rawSnapshot{{}, tt.snap},
				errs:  []error{nil, tt.err},
			}
			// The live pid keeps the liveness probe honest.
			h := newHandle(os.Getpid(), "fake", 1, 1, snap, time.Now)
			if err := h.prime(context.Background()); err != nil {
				t.Fatal(err)
			}

			_, err := h.Sample(context.Background())
			if got := apperrors.IsTargetExited(err); got != tt.wantExited {
				t.Fatalf("IsTargetExited(%v) = %v, want %v", err, got, tt.wantExited)
			}
			if !tt.wantExited {
				var measurement apperrors.MeasurementError
				if !errors.As(err, &measurement) {
					t.Errorf("expected MeasurementError, got %T", err)
				}
			}
		})
	}
}

func TestClassifyAttachErr(t *testing.T) {
	var denied apperrors.TargetAccessDeniedError
	if !errors.As(classifyAttachErr(5, os.ErrPermission), &denied) {
		t.Error("permission error should map to TargetAccessDeniedError")
	}
	var notFound apperrors.TargetNotFoundError
	if !errors.As(classifyAttachErr(5, os.ErrNotExist), &notFound) {
		t.Error("not-exist error should map to TargetNotFoundError")
	}
}
