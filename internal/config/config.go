// Package config turns command-line arguments, PROCMON_* environment
// variables and an optional YAML file into an AppConfig.
// Priority: flags > environment > file > defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/agbru/procmon/internal/errors"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "PROCMON_"

// Defaults.
const (
	DefaultOutput    = "resource_log.csv"
	DefaultInterval  = time.Second
	DefaultLogFormat = "console"
)

// AppConfig is the fully resolved configuration of one run.
type AppConfig struct {
	PID         int
	Interval    time.Duration
	Output      string
	Fsync       bool
	MetricsAddr string
	TUI         bool
	Quiet       bool
	Verbose     bool
	LogFormat   string
	NoColor     bool
	ConfigFile  string
	Completion  string
}

// Defaults returns the configuration used when nothing else is given.
func Defaults() AppConfig {
	return AppConfig{
		Interval:  DefaultInterval,
		Output:    DefaultOutput,
		Fsync:     true,
		LogFormat: DefaultLogFormat,
	}
}

// intervalValue is a flag.Value accepting a Go duration ("500ms") or a
// number of seconds ("0.5").
type intervalValue struct{ d *time.Duration }

func (v intervalValue) String() string {
	if v.d == nil {
		return ""
	}
	return v.d.String()
}

func (v intervalValue) Set(s string) error {
	d, err := ParseInterval(s)
	if err != nil {
		return err
	}
	*v.d = d
	return nil
}

// ParseInterval accepts a Go duration or a positive number of seconds.
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("interval must be positive, got %s", s)
		}
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: want a duration like 500ms or a number of seconds", s)
	}
	if secs <= 0 || math.IsInf(secs, 0) || math.IsNaN(secs) {
		return 0, fmt.Errorf("interval must be positive, got %s", s)
	}
	d := time.Duration(secs * float64(time.Second))
	if d <= 0 {
		return 0, fmt.Errorf("interval %s is below one nanosecond", s)
	}
	return d, nil
}

const usageText = `Usage: %[1]s [flags] PID [INTERVAL_SECONDS]

Samples the CPU and memory usage of process PID and appends one CSV row per
interval to the output file until the process exits or %[1]s is stopped.

Flags:
  -o, --output PATH        CSV destination (default %[2]s)
  -i, --interval DURATION  sampling interval, Go duration or seconds (default %[3]s)
      --fsync              flush each row to stable storage (default true)
      --metrics-addr ADDR  serve /metrics, /health and /status on ADDR
      --tui                show the live dashboard
  -q, --quiet              only log warnings and errors
  -v, --verbose            log every sample
      --log-format FORMAT  console or json (default %[4]s)
      --no-color           disable colored output
      --config PATH        YAML configuration file
      --completion SHELL   print a completion script (bash, zsh, fish)
  -V, --version            print version information
  -h, --help               show this message

Every flag can also be set through a %[5]s<NAME> environment variable,
for example %[5]sINTERVAL=250ms.
`

// ParseConfig parses args (without the program name) into an AppConfig.
// It returns flag.ErrHelp when help was requested, and a ConfigError or
// ValidationError for invalid input.
func ParseConfig(programName string, args []string, errWriter io.Writer) (AppConfig, error) {
	cfg := Defaults()

	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(errWriter)
	fs.Usage = func() {
		fmt.Fprintf(errWriter, usageText, programName, DefaultOutput, DefaultInterval, DefaultLogFormat, EnvPrefix)
	}

	for _, name := range []string{"output", "o"} {
		fs.StringVar(&cfg.Output, name, cfg.Output, "CSV destination")
	}
	for _, name := range []string{"interval", "i"} {
		fs.Var(intervalValue{&cfg.Interval}, name, "sampling interval")
	}
	fs.BoolVar(&cfg.Fsync, "fsync", cfg.Fsync, "flush each row to stable storage")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "HTTP listen address")
	fs.BoolVar(&cfg.TUI, "tui", cfg.TUI, "live dashboard")
	for _, name := range []string{"quiet", "q"} {
		fs.BoolVar(&cfg.Quiet, name, cfg.Quiet, "only warnings and errors")
	}
	for _, name := range []string{"verbose", "v"} {
		fs.BoolVar(&cfg.Verbose, name, cfg.Verbose, "debug logging")
	}
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "console or json")
	fs.BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "disable colors")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML configuration file")
	fs.StringVar(&cfg.Completion, "completion", cfg.Completion, "completion script shell")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cfg, err
		}
		return cfg, apperrors.NewConfigError("%v", err)
	}

	if cfg.Completion != "" {
		return cfg, nil
	}

	if !isFlagSet(fs, "config") {
		cfg.ConfigFile = getEnvString("CONFIG", cfg.ConfigFile)
	}
	if cfg.ConfigFile != "" {
		file, err := LoadFile(cfg.ConfigFile)
		if err != nil {
			return cfg, err
		}
		file.apply(&cfg, fs)
	}

	applyEnvOverrides(&cfg, fs)

	if err := applyPositionals(&cfg, fs); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyPositionals(cfg *AppConfig, fs *flag.FlagSet) error {
	rest := fs.Args()
	switch {
	case len(rest) == 0:
		return apperrors.NewConfigError("missing PID argument (see -h)")
	case len(rest) > 2:
		return apperrors.NewConfigError("unexpected arguments: %s", strings.Join(rest[2:], " "))
	}

	pid, err := strconv.Atoi(rest[0])
	if err != nil {
		return apperrors.NewConfigError("invalid PID %q: not an integer", rest[0])
	}
	cfg.PID = pid

	if len(rest) == 2 {
		if isFlagSetAny(fs, "interval", "i") {
			return apperrors.NewConfigError("interval given both as --interval and as INTERVAL_SECONDS")
		}
		secs, err := strconv.ParseFloat(rest[1], 64)
		if err != nil || secs <= 0 || math.IsInf(secs, 0) || math.IsNaN(secs) {
			return apperrors.NewConfigError("invalid INTERVAL_SECONDS %q: want a positive number", rest[1])
		}
		cfg.Interval = time.Duration(secs * float64(time.Second))
	}
	return nil
}

// Validate checks cross-field constraints.
func (c AppConfig) Validate() error {
	switch {
	case c.PID <= 0 || c.PID > math.MaxInt32:
		return apperrors.ValidationError{Field: "pid", Message: fmt.Sprintf("must be a positive process id, got %d", c.PID)}
	case c.Interval <= 0:
		return apperrors.ValidationError{Field: "interval", Message: "must be positive"}
	case strings.TrimSpace(c.Output) == "":
		return apperrors.ValidationError{Field: "output", Message: "must not be empty"}
	case c.LogFormat != "console" && c.LogFormat != "json":
		return apperrors.ValidationError{Field: "log-format", Message: fmt.Sprintf("must be console or json, got %q", c.LogFormat)}
	case c.Quiet && c.Verbose:
		return apperrors.ValidationError{Field: "quiet", Message: "cannot be combined with --verbose"}
	}
	return nil
}
