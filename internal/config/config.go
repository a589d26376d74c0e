// Package config loads simulator settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NETEXPANSE_"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the simulator configuration.
type Config struct {
	// TickInterval is both the wall-clock pace and the simulated time per tick.
	TickInterval time.Duration `yaml:"tick_interval"`
	// Seed drives every random draw; 0 derives one from the clock.
	Seed uint64 `yaml:"seed"`
	// SavePath is the save file; empty selects the default location.
	SavePath         string        `yaml:"save_path"`
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
	MaxLogs          int           `yaml:"max_logs"`
	// MetricsAddr and GRPCAddr disable their listeners when empty.
	MetricsAddr string `yaml:"metrics_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`

	Log     LogConfig     `yaml:"log"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LogConfig selects the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig selects the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // stdout or otlp
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
	ServiceName string  `yaml:"service_name"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		TickInterval:     200 * time.Millisecond,
		AutosaveInterval: 5 * time.Second,
		MaxLogs:          100,
		MetricsAddr:      ":9090",
		GRPCAddr:         ":50061",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Exporter:    "stdout",
			Endpoint:    "localhost:4317",
			SampleRatio: 1,
			ServiceName: "netexpanse-sim",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults;
// an empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from NETEXPANSE_* environment variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	num := func(name string, parse func(string) error) {
		if v, ok := lookup(EnvPrefix + name); ok {
			if err := parse(strings.TrimSpace(v)); err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			}
		}
	}

	dur("TICK_INTERVAL", &c.TickInterval)
	dur("AUTOSAVE_INTERVAL", &c.AutosaveInterval)
	num("SEED", func(v string) (err error) {
		c.Seed, err = strconv.ParseUint(v, 10, 64)
		return err
	})
	num("MAX_LOGS", func(v string) (err error) {
		c.MaxLogs, err = strconv.Atoi(v)
		return err
	})
	str("SAVE_PATH", &c.SavePath)
	str("METRICS_ADDR", &c.MetricsAddr)
	str("GRPC_ADDR", &c.GRPCAddr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	num("TRACING_ENABLED", func(v string) (err error) {
		c.Tracing.Enabled, err = strconv.ParseBool(v)
		return err
	})
	str("TRACING_EXPORTER", &c.Tracing.Exporter)
	str("TRACING_ENDPOINT", &c.Tracing.Endpoint)
	num("TRACING_SAMPLE_RATIO", func(v string) (err error) {
		c.Tracing.SampleRatio, err = strconv.ParseFloat(v, 64)
		return err
	})
	return errors.Join(errs...)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: tick_interval must be positive, got %s", ErrInvalid, c.TickInterval))
	}
	if c.AutosaveInterval < 0 {
		errs = append(errs, fmt.Errorf("%w: autosave_interval must not be negative", ErrInvalid))
	}
	if c.MaxLogs < 1 {
		errs = append(errs, fmt.Errorf("%w: max_logs must be at least 1, got %d", ErrInvalid, c.MaxLogs))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("%w: tracing.sample_ratio %v outside [0,1]", ErrInvalid, c.Tracing.SampleRatio))
	}
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "stdout", "otlp":
		default:
			errs = append(errs, fmt.Errorf("%w: tracing.exporter %q", ErrInvalid, c.Tracing.Exporter))
		}
	}
	return errors.Join(errs...)
}
