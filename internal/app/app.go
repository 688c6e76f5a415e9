package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agbru/procmon/internal/cli"
	"github.com/agbru/procmon/internal/config"
	"github.com/agbru/procmon/internal/csvlog"
	apperrors "github.com/agbru/procmon/internal/errors"
	"github.com/agbru/procmon/internal/logging"
	"github.com/agbru/procmon/internal/metrics"
	"github.com/agbru/procmon/internal/monitor"
	"github.com/agbru/procmon/internal/server"
	"github.com/agbru/procmon/internal/sysmon"
	"github.com/agbru/procmon/internal/tui"
	"github.com/agbru/procmon/internal/ui"
)

// Application represents the procmon application instance.
type Application struct {
	Config    config.AppConfig
	ErrWriter io.Writer
}

// New creates a new Application instance by parsing command-line arguments.
// args[0] is the program name.
func New(args []string, errWriter io.Writer) (*Application, error) {
	programName := "procmon"
	var cmdArgs []string
	if len(args) > 0 {
		programName = args[0]
		cmdArgs = args[1:]
	}

	cfg, err := config.ParseConfig(programName, cmdArgs, errWriter)
	if err != nil {
		if !IsHelpError(err) {
			fmt.Fprintf(errWriter, "Argument parsing error: %v\n", err)
		}
		return nil, err
	}
	return &Application{Config: cfg, ErrWriter: errWriter}, nil
}

// IsHelpError checks if the error is a help flag error (--help was used).
func IsHelpError(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}

// Run executes the application and returns the process exit code.
func (a *Application) Run(ctx context.Context, out io.Writer) int {
	if a.Config.Completion != "" {
		return a.runCompletion(out)
	}

	ui.Init(a.Config.NoColor)
	logger := a.newLogger()

	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	err := a.runSession(ctx, out, logger)
	code := apperrors.ExitCodeFor(err)
	if code != apperrors.ExitSuccess {
		logger.Error("monitoring failed", err, logging.Int("exit_code", code))
	}
	return code
}

// runCompletion generates shell completion scripts.
func (a *Application) runCompletion(out io.Writer) int {
	if err := cli.GenerateCompletion(out, "procmon", a.Config.Completion); err != nil {
		fmt.Fprintf(a.ErrWriter, "Error generating completion: %v\n", err)
		return apperrors.ExitErrorConfig
	}
	return apperrors.ExitSuccess
}

// newLogger builds the session logger. The dashboard owns the terminal, so
// only errors are logged while it runs.
func (a *Application) newLogger() logging.Logger {
	var base *logging.ZerologAdapter
	if a.Config.LogFormat == "json" {
		base = logging.NewLogger(a.ErrWriter, "procmon")
	} else {
		base = logging.NewConsoleLogger(a.ErrWriter, "procmon", !ui.Current().Colored())
	}

	level := zerolog.InfoLevel
	switch {
	case a.Config.TUI:
		level = zerolog.ErrorLevel
	case a.Config.Quiet:
		level = zerolog.WarnLevel
	case a.Config.Verbose:
		level = zerolog.DebugLevel
	}
	return base.WithLevel(level)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && cli.IsTerminal(f)
}

// runSession attaches to the target, then supervises the sampling loop, the
// optional HTTP server and the optional dashboard until the loop ends.
func (a *Application) runSession(ctx context.Context, out io.Writer, logger logging.Logger) error {
	cfg := a.Config

	// Attach first: a bad pid must fail before the log file is touched.
	handle, err := sysmon.Attach(ctx, cfg.PID)
	if err != nil {
		return err
	}

	writer, err := openLog(cfg)
	if err != nil {
		return err
	}
	tally := &cli.SessionTally{}
	opts := []monitor.Option{
		monitor.WithInterval(cfg.Interval),
		monitor.WithLogger(logger),
		monitor.WithObserver(tally),
	}

	var exporter *metrics.Exporter
	if cfg.MetricsAddr != "" {
		exporter = metrics.NewExporter(handle.PID(), handle.Name())
		opts = append(opts, monitor.WithObserver(exporter))
	}

	useTUI := cfg.TUI
	if useTUI && !isTerminal(out) {
		logger.Warn("output is not a terminal, dashboard disabled")
		useTUI = false
	}

	var reporter *cli.StatusReporter
	if !useTUI && !cfg.Quiet && isTerminal(out) {
		reporter = cli.NewStatusReporter(out, fmt.Sprintf("%s (%d)", handle.Name(), handle.PID()))
		opts = append(opts, monitor.WithObserver(reporter))
	}

	var (
		mon  *monitor.Monitor
		dash *tui.Dashboard
	)
	if useTUI {
		dash = tui.New(tui.Session{
			PID:      handle.PID(),
			Process:  handle.Name(),
			Output:   writer.Path(),
			Interval: cfg.Interval,
			Version:  resolvedVersion(),
		}, func() { mon.Stop() }, tea.WithOutput(out))
		opts = append(opts, monitor.WithObserver(dash))
	}

	mon, err = monitor.New(handle, writer, opts...)
	if err != nil {
		return err
	}

	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	// The server outlives the loop only until the loop returns.
	auxCtx, stopAux := context.WithCancel(gctx)
	defer stopAux()

	if reporter != nil {
		reporter.Begin()
	}

	g.Go(func() error {
		defer stopAux()
		err := mon.Start(gctx)
		if reporter != nil {
			reporter.End()
		}
		if dash != nil {
			dash.End(err)
		}
		return err
	})

	if exporter != nil {
		srv := server.New(cfg.MetricsAddr, exporter.Handler(), mon, server.WithLogger(logger))
		g.Go(func() error { return srv.Run(auxCtx) })
	}

	if dash != nil {
		g.Go(func() error {
			err := dash.Run(gctx)
			mon.Stop()
			return err
		})
	}

	err = g.Wait()

	if !cfg.Quiet {
		cli.DisplaySummary(out, cli.Summary{
			PID:     handle.PID(),
			Process: handle.Name(),
			Output:  writer.Path(),
			Elapsed: time.Since(started),
			Outcome: outcome(mon.Status(), err),
			Tally:   tally.Snapshot(),
		})
	}
	return err
}

// openLog prepares the sample log so that it carries its header even when
// the target exits before the first row.
func openLog(cfg config.AppConfig) (*csvlog.Writer, error) {
	writer := csvlog.NewWriter(cfg.Output, csvlog.WithSync(cfg.Fsync))
	if err := writer.EnsureHeader(); err != nil {
		return nil, err
	}
	return writer, nil
}

// outcome describes how a session ended.
func outcome(st monitor.Status, err error) string {
	switch {
	case err != nil && !apperrors.IsContextError(err):
		return "failed: " + err.Error()
	case st.TargetExited:
		return "target exited"
	default:
		return "stopped"
	}
}
