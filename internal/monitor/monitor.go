//go:generate mockgen -source=monitor.go -destination=mocks/mock_monitor.go -package=mocks

package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/agbru/procmon/internal/errors"
	"github.com/agbru/procmon/internal/logging"
	"github.com/agbru/procmon/internal/sysmon"
)

// DefaultInterval is the sampling interval used when none is configured.
const DefaultInterval = time.Second

const tracerName = "github.com/agbru/procmon/internal/monitor"

// Target is the process being sampled.
type Target interface {
	PID() int
	Name() string
	Sample(ctx context.Context) (sysmon.Sample, error)
}

// SampleWriter persists samples.
type SampleWriter interface {
	Path() string
	Append(s sysmon.Sample) error
}

// Observer is notified after each sample has been persisted.
// Implementations must return quickly; they run on the tick goroutine.
type Observer interface {
	Observe(s sysmon.Sample)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(s sysmon.Sample)

// Observe calls f(s).
func (f ObserverFunc) Observe(s sysmon.Sample) { f(s) }

// Monitor samples one target at a fixed interval.
type Monitor struct {
	target    Target
	writer    SampleWriter
	interval  time.Duration
	logger    logging.Logger
	observers []Observer
	tracer    trace.Tracer
	now       func() time.Time
	sessionID string

	mu      sync.Mutex // guards transitions of running together with stopCh
	running atomic.Bool
	stopCh  chan struct{}
	loopMu  sync.Mutex // held by the active loop

	statusMu sync.RWMutex
	status   Status
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the wait between the end of one tick and the start of the next.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithObserver registers an observer. May be given several times.
func WithObserver(o Observer) Option {
	return func(m *Monitor) { m.observers = append(m.observers, o) }
}

// WithTracer overrides the OpenTelemetry tracer (the global one by default).
func WithTracer(t trace.Tracer) Option {
	return func(m *Monitor) { m.tracer = t }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) Option {
	return func(m *Monitor) { m.sessionID = id }
}

// New creates a monitor for an already attached target.
func New(target Target, writer SampleWriter, opts ...Option) (*Monitor, error) {
	if target == nil {
		return nil, apperrors.ValidationError{Field: "target", Message: "must not be nil"}
	}
	if writer == nil {
		return nil, apperrors.ValidationError{Field: "writer", Message: "must not be nil"}
	}

	m := &Monitor{
		target:   target,
		writer:   writer,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.interval <= 0 {
		return nil, apperrors.ValidationError{Field: "interval", Message: "must be positive"}
	}
	if m.logger == nil {
		m.logger = logging.Nop()
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer(tracerName)
	}
	if m.sessionID == "" {
		m.sessionID = uuid.NewString()
	}
	m.status = Status{
		State:     StateIdle,
		SessionID: m.sessionID,
		PID:       target.PID(),
		Name:      target.Name(),
		Output:    writer.Path(),
		Interval:  m.interval,
	}
	return m, nil
}

// Interval returns the configured interval.
func (m *Monitor) Interval() time.Duration { return m.interval }

// SessionID returns the identifier attached to this monitor's log entries.
func (m *Monitor) SessionID() string { return m.sessionID }

// Running reports whether the tick loop is active.
func (m *Monitor) Running() bool { return m.running.Load() }

// Start runs the tick loop on the calling goroutine and returns when it ends.
// It returns nil when stopped, canceled, or when the target exits, and the
// classified error when a tick fails. Calling Start on a running monitor
// logs the status and returns nil immediately.
func (m *Monitor) Start(ctx context.Context) error {
	stopCh, ok := m.begin()
	if !ok {
		return nil
	}
	return m.loop(ctx, stopCh)
}

// Go starts the tick loop on a new goroutine. The monitor is Running when Go
// returns, so a following Stop always takes effect. The channel receives the
// loop's result and is then closed. On an already running monitor the
// channel yields nil immediately.
func (m *Monitor) Go(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	stopCh, ok := m.begin()
	if !ok {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		done <- m.loop(ctx, stopCh)
	}()
	return done
}

// Stop asks the loop to exit after the in-flight tick. It is safe to call
// from any goroutine, any number of times.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stopCh := m.stopCh
	m.mu.Unlock()
	if !m.halt(stopCh) {
		m.logger.Info("monitor not running", logging.String("session", m.sessionID))
		return
	}
	m.logger.Info("stopping monitor", logging.String("session", m.sessionID))
}

func (m *Monitor) begin() (chan struct{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running.Load() {
		m.logger.Info("monitor already running",
			logging.String("session", m.sessionID),
			logging.Int("pid", m.target.PID()))
		return nil, false
	}
	m.stopCh = make(chan struct{})
	m.running.Store(true)
	m.setState(StateRunning)
	return m.stopCh, true
}

// halt ends the session owning stopCh. It reports whether this call
// performed the Running to Stopped transition.
func (m *Monitor) halt(stopCh chan struct{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running.Load() || stopCh == nil || m.stopCh != stopCh {
		return false
	}
	m.running.Store(false)
	close(stopCh)
	return true
}

func (m *Monitor) loop(ctx context.Context, stopCh chan struct{}) (err error) {
	// A loop from a previous session may still be finishing its last tick.
	m.loopMu.Lock()
	defer m.loopMu.Unlock()

	defer func() {
		m.finish(stopCh, err)
		m.halt(stopCh)
	}()

	m.logger.Info("monitoring started",
		logging.String("session", m.sessionID),
		logging.Int("pid", m.target.PID()),
		logging.String("process", m.target.Name()),
		logging.String("output", m.writer.Path()),
		logging.Duration("interval", m.interval))

	for {
		if m.stopped(ctx, stopCh) {
			return nil
		}

		done, err := m.tick(ctx)
		if err != nil {
			m.logger.Error("monitoring failed", err, logging.String("session", m.sessionID))
			return err
		}
		if done {
			return nil
		}

		if !m.wait(ctx, stopCh) {
			return nil
		}
	}
}

// stopped is the per-iteration check of the running flag.
func (m *Monitor) stopped(ctx context.Context, stopCh <-chan struct{}) bool {
	select {
	case <-stopCh:
		return true
	case <-ctx.Done():
		m.logger.Info("monitoring canceled", logging.String("session", m.sessionID))
		return true
	default:
		return false
	}
}

// wait sleeps for the interval. It returns false as soon as the session is
// stopped or the context is canceled.
func (m *Monitor) wait(ctx context.Context, stopCh <-chan struct{}) bool {
	timer := time.NewTimer(m.interval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stopCh:
		return false
	case <-ctx.Done():
		m.logger.Info("monitoring canceled", logging.String("session", m.sessionID))
		return false
	}
}

// tick measures, persists and notifies once. done is true when the target
// has exited.
func (m *Monitor) tick(ctx context.Context) (done bool, err error) {
	// An in-flight tick is never aborted by cancellation.
	work := context.WithoutCancel(ctx)
	work, span := m.tracer.Start(work, "monitor.tick", trace.WithAttributes(
		attribute.Int("process.pid", m.target.PID()),
		attribute.String("procmon.session", m.sessionID),
	))
	defer span.End()

	ts := m.now()
	s, err := m.target.Sample(work)
	if err != nil {
		if apperrors.IsTargetExited(err) {
			span.SetAttributes(attribute.Bool("procmon.target_exited", true))
			m.markExited()
			m.logger.Info("target process exited, stopping",
				logging.String("session", m.sessionID),
				logging.Int("pid", m.target.PID()))
			return true, nil
		}
		err = asMeasurementError(m.target.PID(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "measurement failed")
		return false, err
	}
	s.Timestamp = ts

	if err := m.writer.Append(s); err != nil {
		err = asPersistenceError(m.writer.Path(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return false, err
	}

	m.recordSample(s)
	for _, o := range m.observers {
		o.Observe(s)
	}
	m.logger.Debug("sample persisted",
		logging.Float64("cpu_percent", s.CPUPercent),
		logging.Float64("memory_percent", s.MemoryPercent),
		logging.Uint64("rss_bytes", s.RSSBytes))
	return false, nil
}

func asMeasurementError(pid int, err error) error {
	var measurement apperrors.MeasurementError
	if errors.As(err, &measurement) {
		return err
	}
	return apperrors.MeasurementError{PID: pid, Cause: err}
}

func asPersistenceError(path string, err error) error {
	var persistence apperrors.PersistenceError
	if errors.As(err, &persistence) {
		return err
	}
	return apperrors.PersistenceError{Path: path, Op: "append", Cause: err}
}
