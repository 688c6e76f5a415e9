package config

import (
	"bytes"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/agbru/procmon/internal/errors"
)

// clearEnv unsets every PROCMON_ variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if k, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, EnvPrefix) {
			t.Setenv(k, "")
			os.Unsetenv(k)
		}
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "procmon.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseConfig_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := ParseConfig("procmon", []string{"1234"}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	want := Defaults()
	want.PID = 1234
	if cfg != want {
		t.Errorf("got %+v\nwant %+v", cfg, want)
	}
}

func TestParseConfig_Arguments(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, c AppConfig)
	}{
		{"positional interval", []string{"42", "0.5"}, func(t *testing.T, c AppConfig) {
			if c.PID != 42 || c.Interval != 500*time.Millisecond {
				t.Errorf("pid=%d interval=%v", c.PID, c.Interval)
			}
		}},
		{"interval as duration", []string{"--interval", "250ms", "42"}, func(t *testing.T, c AppConfig) {
			if c.Interval != 250*time.Millisecond {
				t.Errorf("interval=%v", c.Interval)
			}
		}},
		{"interval as seconds", []string{"-i", "2", "42"}, func(t *testing.T, c AppConfig) {
			if c.Interval != 2*time.Second {
				t.Errorf("interval=%v", c.Interval)
			}
		}},
		{"short and long aliases", []string{"-o", "out.csv", "-q", "--tui", "--fsync=false", "--metrics-addr", ":9090", "42"}, func(t *testing.T, c AppConfig) {
			if c.Output != "out.csv" || !c.Quiet || !c.TUI || c.Fsync || c.MetricsAddr != ":9090" {
				t.Errorf("unexpected config %+v", c)
			}
		}},
		{"json logs", []string{"--log-format", "json", "--no-color", "-v", "42"}, func(t *testing.T, c AppConfig) {
			if c.LogFormat != "json" || !c.NoColor || !c.Verbose {
				t.Errorf("unexpected config %+v", c)
			}
		}},
		{"completion needs no pid", []string{"--completion", "zsh"}, func(t *testing.T, c AppConfig) {
			if c.Completion != "zsh" || c.PID != 0 {
				t.Errorf("unexpected config %+v", c)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig("procmon", tt.args, &bytes.Buffer{})
			if err != nil {
				t.Fatalf("ParseConfig(%v): %v", tt.args, err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestParseConfig_Errors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name  string
		args  []string
		field string // ValidationError field, empty for ConfigError
	}{
		{"missing pid", nil, ""},
		{"pid not a number", []string{"abc"}, ""},
		{"too many arguments", []string{"1", "2", "3"}, ""},
		{"zero interval", []string{"1", "0"}, ""},
		{"negative interval", []string{"1", "-1"}, ""},
		{"NaN interval", []string{"1", "NaN"}, ""},
		{"infinite interval", []string{"1", "+Inf"}, ""},
		{"interval twice", []string{"-i", "1s", "1", "2"}, ""},
		{"bad interval flag", []string{"--interval", "soon", "1"}, ""},
		{"unknown flag", []string{"--bogus", "1"}, ""},
		{"zero pid", []string{"0"}, "pid"},
		{"negative pid", []string{"-5"}, ""},
		{"bad log format", []string{"--log-format", "xml", "1"}, "log-format"},
		{"quiet and verbose", []string{"-q", "-v", "1"}, "quiet"},
		{"empty output", []string{"-o", "", "1"}, "output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig("procmon", tt.args, &bytes.Buffer{})
			if err == nil {
				t.Fatal("expected an error")
			}
			if apperrors.ExitCodeFor(err) != apperrors.ExitErrorConfig {
				t.Errorf("error %v should map to the config exit code", err)
			}
			if tt.field != "" {
				var v apperrors.ValidationError
				if !errors.As(err, &v) || v.Field != tt.field {
					t.Errorf("expected ValidationError on %q, got %v", tt.field, err)
				}
			}
		})
	}
}

func TestParseConfig_Help(t *testing.T) {
	clearEnv(t)
	var buf bytes.Buffer
	_, err := ParseConfig("procmon", []string{"-h"}, &buf)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
	for _, want := range []string{"Usage: procmon [flags] PID [INTERVAL_SECONDS]", "--metrics-addr", "PROCMON_INTERVAL"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("usage should contain %q", want)
		}
	}
}

func TestParseConfig_Precedence(t *testing.T) {
	file := writeFile(t, "output: file.csv\ninterval: 3s\nlog_format: json\nfsync: false\n")

	tests := []struct {
		name         string
		env          map[string]string
		args         []string
		wantOutput   string
		wantInterval time.Duration
	}{
		{"file over defaults", nil, []string{"--config", file, "1"}, "file.csv", 3 * time.Second},
		{"env over file", map[string]string{"PROCMON_OUTPUT": "env.csv", "PROCMON_INTERVAL": "2"}, []string{"--config", file, "1"}, "env.csv", 2 * time.Second},
		{"flag over env", map[string]string{"PROCMON_OUTPUT": "env.csv"}, []string{"--config", file, "-o", "flag.csv", "1"}, "flag.csv", 3 * time.Second},
		{"positional interval over env", map[string]string{"PROCMON_INTERVAL": "2s"}, []string{"1", "0.25"}, DefaultOutput, 250 * time.Millisecond},
		{"config path from env", map[string]string{"PROCMON_CONFIG": file}, []string{"1"}, "file.csv", 3 * time.Second},
		{"invalid env ignored", map[string]string{"PROCMON_INTERVAL": "later"}, []string{"1"}, DefaultOutput, DefaultInterval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := ParseConfig("procmon", tt.args, &bytes.Buffer{})
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Output != tt.wantOutput || cfg.Interval != tt.wantInterval {
				t.Errorf("output=%q interval=%v, want %q %v", cfg.Output, cfg.Interval, tt.wantOutput, tt.wantInterval)
			}
		})
	}
}

func TestParseConfig_EnvBooleans(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROCMON_FSYNC", "no")
	t.Setenv("PROCMON_TUI", "yes")
	t.Setenv("PROCMON_NO_COLOR", "1")
	t.Setenv("PROCMON_QUIET", "maybe")

	cfg, err := ParseConfig("procmon", []string{"1"}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Fsync || !cfg.TUI || !cfg.NoColor || cfg.Quiet {
		t.Errorf("unexpected booleans: %+v", cfg)
	}

	cfg, err = ParseConfig("procmon", []string{"--tui=false", "1"}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TUI {
		t.Error("an explicit flag must beat the environment")
	}
}

func TestLoadFile(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		fc, err := LoadFile(writeFile(t, "interval: 0.5\nmetrics_addr: \":9090\"\ntui: true\n"))
		if err != nil {
			t.Fatal(err)
		}
		if fc.Interval == nil || time.Duration(*fc.Interval) != 500*time.Millisecond {
			t.Errorf("interval = %v", fc.Interval)
		}
		if fc.MetricsAddr == nil || *fc.MetricsAddr != ":9090" || fc.TUI == nil || !*fc.TUI {
			t.Errorf("unexpected file config %+v", fc)
		}
		if fc.Output != nil {
			t.Error("absent keys must stay nil")
		}
	})

	t.Run("empty", func(t *testing.T) {
		if _, err := LoadFile(writeFile(t, "")); err != nil {
			t.Errorf("empty file should be accepted, got %v", err)
		}
	})

	errCases := map[string]string{
		"unknown key":  "outptu: x.csv\n",
		"bad interval": "interval: -1\n",
		"not yaml":     "output: [unterminated\n",
	}
	for name, content := range errCases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFile(writeFile(t, content))
			var cfgErr apperrors.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected ConfigError, got %v", err)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		if apperrors.ExitCodeFor(err) != apperrors.ExitErrorConfig {
			t.Errorf("missing file should be a config error, got %v", err)
		}
	})
}

func TestParseInterval(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"1s", time.Second, false},
		{"250ms", 250 * time.Millisecond, false},
		{"1.5", 1500 * time.Millisecond, false},
		{" 2 ", 2 * time.Second, false},
		{"0", 0, true},
		{"0s", 0, true},
		{"-1s", 0, true},
		{"Inf", 0, true},
		{"NaN", 0, true},
		{"1e-12", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseInterval(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseInterval(%q) = %v, %v; want %v, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}
