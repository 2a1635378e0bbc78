// Package config loads the server configuration from embedded defaults, an
// optional YAML file, and environment overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"flyxion/internal/observability"
	"flyxion/internal/solver"
	"flyxion/logging"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid")

// Config holds every tunable of the server.
type Config struct {
	Server           ServerConfig         `yaml:"server"`
	Simulation       SimulationConfig     `yaml:"simulation"`
	Broadcast        BroadcastConfig      `yaml:"broadcast"`
	Logging          LoggingConfig        `yaml:"logging"`
	Metrics          MetricsConfig        `yaml:"metrics"`
	Observability    observability.Config `yaml:"observability"`
	InitialStatePath string               `yaml:"initial_state_path"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// StaticDir is served at "/" when it resolves to a directory.
	StaticDir string `yaml:"static_dir"`
}

// SimulationConfig holds the solver parameters and stepping cadence.
type SimulationConfig struct {
	solver.Params `yaml:",inline"`
	StepInterval  time.Duration `yaml:"step_interval"`
}

// BroadcastConfig holds per-subscriber delivery settings.
type BroadcastConfig struct {
	Interval  time.Duration `yaml:"interval"`
	WriteWait time.Duration `yaml:"write_wait"`
}

// LoggingConfig selects structured event sinks.
type LoggingConfig struct {
	MinimumSeverity string `yaml:"minimum_severity"`
	Console         bool   `yaml:"console"`
	JSONPath        string `yaml:"json_path"`
}

// MetricsConfig controls CSV export. An empty OutputDir disables it.
type MetricsConfig struct {
	OutputDir   string `yaml:"output_dir"`
	RecordEvery int    `yaml:"record_every"`
}

// Default returns the embedded defaults.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	return cfg, nil
}

// Load merges the embedded defaults, the YAML file at path (if any) and the
// environment, then validates the result.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only fields present in the file are overwritten.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"RSVP_W", &c.Simulation.Width},
		{"RSVP_H", &c.Simulation.Height},
		{"RSVP_TILES_X", &c.Simulation.TilesX},
		{"RSVP_TILES_Y", &c.Simulation.TilesY},
	}
	for _, entry := range ints {
		raw, ok := lookup(entry.key)
		if !ok || raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, entry.key, raw, err)
		}
		*entry.dst = value
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"RSVP_SEED", &c.Simulation.Seed},
		{"RSVP_ADDR", &c.Server.Addr},
		{"RSVP_STATIC_DIR", &c.Server.StaticDir},
		{"RSVP_METRICS_DIR", &c.Metrics.OutputDir},
		{"RSVP_INITIAL_STATE", &c.InitialStatePath},
	}
	for _, entry := range strs {
		if raw, ok := lookup(entry.key); ok {
			*entry.dst = raw
		}
	}

	if raw, ok := lookup("ENABLE_PPROF_TRACE"); ok && raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%w: ENABLE_PPROF_TRACE=%q: %v", ErrInvalidConfig, raw, err)
		}
		c.Observability.EnablePprofTrace = value
	}
	return nil
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if err := c.Simulation.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Simulation.StepInterval <= 0 {
		return fmt.Errorf("%w: simulation.step_interval must be positive", ErrInvalidConfig)
	}
	if c.Broadcast.Interval <= 0 {
		return fmt.Errorf("%w: broadcast.interval must be positive", ErrInvalidConfig)
	}
	if c.Broadcast.WriteWait <= 0 {
		return fmt.Errorf("%w: broadcast.write_wait must be positive", ErrInvalidConfig)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalidConfig)
	}
	if c.Metrics.RecordEvery < 0 {
		return fmt.Errorf("%w: metrics.record_every must not be negative", ErrInvalidConfig)
	}
	if _, err := logging.ParseSeverity(c.Logging.MinimumSeverity); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// RouterConfig translates the logging section into a router configuration.
func (c *Config) RouterConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = nil
	if c.Logging.Console {
		cfg.EnabledSinks = append(cfg.EnabledSinks, "console")
	}
	if c.Logging.JSONPath != "" {
		cfg.EnabledSinks = append(cfg.EnabledSinks, "json")
		cfg.JSON.FilePath = c.Logging.JSONPath
	}
	if severity, err := logging.ParseSeverity(c.Logging.MinimumSeverity); err == nil {
		cfg.MinimumSeverity = severity
	}
	return cfg
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
