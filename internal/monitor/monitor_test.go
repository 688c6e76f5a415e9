package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	apperrors "github.com/agbru/procmon/internal/errors"
	"github.com/agbru/procmon/internal/monitor/mocks"
	"github.com/agbru/procmon/internal/sysmon"
)

func newMocks(t *testing.T) (*mocks.MockTarget, *mocks.MockSampleWriter) {
	t.Helper()
	ctrl := gomock.NewController(t)
	target := mocks.NewMockTarget(ctrl)
	writer := mocks.NewMockSampleWriter(ctrl)
	target.EXPECT().PID().Return(4242).AnyTimes()
	target.EXPECT().Name().Return("worker").AnyTimes()
	writer.EXPECT().Path().Return("/tmp/resource_log.csv").AnyTimes()
	return target, writer
}

func okSample() sysmon.Sample {
	return sysmon.Sample{CPUPercent: 1.5, MemoryPercent: 2.5, RSSBytes: 1 << 20, VMSBytes: 1 << 24}
}

func TestNew_Validation(t *testing.T) {
	target, writer := newMocks(t)

	tests := []struct {
		name   string
		target Target
		writer SampleWriter
		opts   []Option
		field  string
	}{
		{"nil target", nil, writer, nil, "target"},
		{"nil writer", target, nil, nil, "writer"},
		{"zero interval", target, writer, []Option{WithInterval(0)}, "interval"},
		{"negative interval", target, writer, []Option{WithInterval(-time.Second)}, "interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.target, tt.writer, tt.opts...)
			var validationErr apperrors.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if validationErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", validationErr.Field, tt.field)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	target, writer := newMocks(t)
	m, err := New(target, writer)
	if err != nil {
		t.Fatal(err)
	}
	if m.Interval() != DefaultInterval {
		t.Errorf("Interval() = %v, want %v", m.Interval(), DefaultInterval)
	}
	if m.SessionID() == "" {
		t.Error("expected a generated session id")
	}
	st := m.Status()
	if st.State != StateIdle || st.PID != 4242 || st.Name != "worker" {
		t.Errorf("unexpected initial status: %+v", st)
	}
}

func TestStart_TargetExitedIsNotAnError(t *testing.T) {
	target, writer := newMocks(t)
	target.EXPECT().Sample(gomock.Any()).Return(sysmon.Sample{}, apperrors.TargetExitedError{PID: 4242})
	writer.EXPECT().Append(gomock.Any()).Times(0)

	m, err := New(target, writer, WithInterval(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start returned %v, want nil", err)
	}

	st := m.Status()
	if st.State != StateStopped || !st.TargetExited {
		t.Errorf("unexpected final status: %+v", st)
	}
	if m.Running() {
		t.Error("monitor should not be running after the target exited")
	}
}

func TestStart_MeasurementFailureIsSurfaced(t *testing.T) {
	target, writer := newMocks(t)
	cause := errors.New("query failed")
	target.EXPECT().Sample(gomock.Any()).Return(sysmon.Sample{}, cause).Times(1)
	writer.EXPECT().Append(gomock.Any()).Times(0)

	m, err := New(target, writer, WithInterval(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	err = m.Start(context.Background())

	var measurement apperrors.MeasurementError
	if !errors.As(err, &measurement) {
		t.Fatalf("expected MeasurementError, got %v", err)
	}
	if measurement.PID != 4242 || !errors.Is(err, cause) {
		t.Errorf("unexpected error: %+v", measurement)
	}
	if m.Status().Err == "" {
		t.Error("status should record the error")
	}
}

func TestStart_PersistenceFailureStopsAfterOneAttempt(t *testing.T) {
	target, writer := newMocks(t)
	cause := errors.New("disk full")
	gomock.InOrder(
		target.EXPECT().Sample(gomock.Any()).Return(okSample(), nil).Times(1),
		writer.EXPECT().Append(gomock.Any()).Return(cause).Times(1),
	)

	m, err := New(target, writer, WithInterval(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	err = m.Start(context.Background())

	var persistence apperrors.PersistenceError
	if !errors.As(err, &persistence) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if persistence.Path != "/tmp/resource_log.csv" || !errors.Is(err, cause) {
		t.Errorf("unexpected error: %+v", persistence)
	}
}

func TestStart_TypedPersistenceErrorIsKept(t *testing.T) {
	target, writer := newMocks(t)
	typed := apperrors.PersistenceError{Path: "x.csv", Op: "sync", Cause: errors.New("eio")}
	target.EXPECT().Sample(gomock.Any()).Return(okSample(), nil)
	writer.EXPECT().Append(gomock.Any()).Return(typed)

	m, _ := New(target, writer, WithInterval(time.Millisecond))
	err := m.Start(context.Background())

	var persistence apperrors.PersistenceError
	if !errors.As(err, &persistence) || persistence.Op != "sync" {
		t.Fatalf("expected the writer's PersistenceError, got %v", err)
	}
}

func TestStart_TicksUntilTargetExits(t *testing.T) {
	target, writer := newMocks(t)
	ctrl := gomock.NewController(t)
	observer := mocks.NewMockObserver(ctrl)

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	var written []sysmon.Sample
	gomock.InOrder(
		target.EXPECT().Sample(gomock.Any()).Return(okSample(), nil),
		writer.EXPECT().Append(gomock.Any()).DoAndReturn(func(s sysmon.Sample) error {
			written = append(written, s)
			return nil
		}),
		observer.EXPECT().Observe(gomock.Any()),
		target.EXPECT().Sample(gomock.Any()).Return(okSample(), nil),
		writer.EXPECT().Append(gomock.Any()).DoAndReturn(func(s sysmon.Sample) error {
			written = append(written, s)
			return nil
		}),
		observer.EXPECT().Observe(gomock.Any()),
		target.EXPECT().Sample(gomock.Any()).Return(sysmon.Sample{}, apperrors.TargetExitedError{PID: 4242}),
	)

	m, err := New(target, writer,
		WithInterval(time.Millisecond),
		WithClock(clock),
		WithObserver(observer))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start returned %v", err)
	}

	if len(written) != 2 {
		t.Fatalf("expected 2 persisted samples, got %d", len(written))
	}
	for i, s := range written {
		want := base.Add(time.Duration(i+1) * time.Second)
		if !s.Timestamp.Equal(want) {
			t.Errorf("sample %d timestamp = %v, want tick start %v", i, s.Timestamp, want)
		}
	}
	if got := m.Status().SamplesWritten; got != 2 {
		t.Errorf("SamplesWritten = %d, want 2", got)
	}
}
