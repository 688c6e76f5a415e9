package config

import (
	"bytes"
	"errors"
	"flag"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/agbru/procmon/internal/errors"
)

// FileConfig is the YAML configuration file. Absent keys leave the
// corresponding setting untouched.
//
//	output: /var/log/procmon/app.csv
//	interval: 500ms
//	fsync: false
//	metrics_addr: 127.0.0.1:9090
//	log_format: json
type FileConfig struct {
	Output      *string       `yaml:"output"`
	Interval    *yamlInterval `yaml:"interval"`
	Fsync       *bool         `yaml:"fsync"`
	MetricsAddr *string       `yaml:"metrics_addr"`
	TUI         *bool         `yaml:"tui"`
	Quiet       *bool         `yaml:"quiet"`
	Verbose     *bool         `yaml:"verbose"`
	LogFormat   *string       `yaml:"log_format"`
	NoColor     *bool         `yaml:"no_color"`
}

// yamlInterval accepts the same forms as the --interval flag.
type yamlInterval time.Duration

func (y *yamlInterval) UnmarshalYAML(node *yaml.Node) error {
	d, err := ParseInterval(node.Value)
	if err != nil {
		return err
	}
	*y = yamlInterval(d)
	return nil
}

// LoadFile reads and strictly decodes the YAML file at path. Unknown keys
// are rejected.
func LoadFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, apperrors.NewConfigError("read config file: %v", err)
	}
	return parseFile(path, data)
}

func parseFile(path string, data []byte) (FileConfig, error) {
	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return FileConfig{}, apperrors.NewConfigError("parse config file %s: %v", path, err)
	}
	return fc, nil
}

// apply copies every present key whose flag was not given on the command line.
func (f FileConfig) apply(c *AppConfig, fs *flag.FlagSet) {
	setString := func(dst *string, src *string, flags ...string) {
		if src != nil && !isFlagSetAny(fs, flags...) {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool, flags ...string) {
		if src != nil && !isFlagSetAny(fs, flags...) {
			*dst = *src
		}
	}

	setString(&c.Output, f.Output, "output", "o")
	setString(&c.MetricsAddr, f.MetricsAddr, "metrics-addr")
	setString(&c.LogFormat, f.LogFormat, "log-format")
	setBool(&c.Fsync, f.Fsync, "fsync")
	setBool(&c.TUI, f.TUI, "tui")
	setBool(&c.Quiet, f.Quiet, "quiet", "q")
	setBool(&c.Verbose, f.Verbose, "verbose", "v")
	setBool(&c.NoColor, f.NoColor, "no-color")
	if f.Interval != nil && !isFlagSetAny(fs, "interval", "i") {
		c.Interval = time.Duration(*f.Interval)
	}
}
