// Package models - Service configuration and run records.
// This file defines the configuration structures for every chatlimit component.
//
// Configuration is grouped by component (limiter, simulation, journal,
// logging, metrics, observability). Defaults work out of the box and reproduce
// the classic chat anti-spam policy: one message per user per ten seconds.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Limiter algorithm constants
const (
	AlgorithmSlidingWindow = "sliding_window"
	AlgorithmThrottle      = "throttle"
	AlgorithmTokenBucket   = "token_bucket"
)

// Journal type constants
const (
	JournalTypeMemory   = "memory"
	JournalTypeJSON     = "json"
	JournalTypeSQLite   = "sqlite"
	JournalTypePostgres = "postgres"
)

// Config is the root configuration structure.
type Config struct {
	Limiter       LimiterConfig       `yaml:"limiter" json:"limiter"`             // Admission policy
	Simulation    SimulationConfig    `yaml:"simulation" json:"simulation"`       // Generated traffic shape
	Journal       JournalConfig       `yaml:"journal" json:"journal"`             // Where run results are kept
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`             // Logging and output configuration
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`             // Prometheus endpoint
	Observability ObservabilityConfig `yaml:"observability" json:"observability"` // Tracing
}

// LimiterConfig selects an algorithm and its parameters. Only the fields of the
// selected algorithm are validated.
type LimiterConfig struct {
	Algorithm     string        `yaml:"algorithm" json:"algorithm"`
	WindowSize    time.Duration `yaml:"window_size" json:"window_size"`
	MaxRequests   int           `yaml:"max_requests" json:"max_requests"`
	MinInterval   time.Duration `yaml:"min_interval" json:"min_interval"`
	Rate          float64       `yaml:"rate" json:"rate"`
	Burst         int           `yaml:"burst" json:"burst"`
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

// SimulationConfig describes generated traffic. Message i (1-based) of a round
// is sent by user i%Users+1; gaps between messages are drawn uniformly from
// [MinGap, MaxGap] and rounds are separated by Pause.
type SimulationConfig struct {
	Users    int           `yaml:"users" json:"users"`
	Messages int           `yaml:"messages" json:"messages"`
	Rounds   int           `yaml:"rounds" json:"rounds"`
	MinGap   time.Duration `yaml:"min_gap" json:"min_gap"`
	MaxGap   time.Duration `yaml:"max_gap" json:"max_gap"`
	Pause    time.Duration `yaml:"pause" json:"pause"`
	Seed     uint64        `yaml:"seed" json:"seed"`
}

type JournalConfig struct {
	Type string `yaml:"type" json:"type"`
	Path string `yaml:"path" json:"path"`
	DSN  string `yaml:"dsn" json:"dsn"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration that runs without any external
// service: sliding window of one message per ten seconds, in-memory journal,
// text logs on stdout, metrics and tracing off.
func NewDefaultConfig() *Config {
	return &Config{
		Limiter: LimiterConfig{
			Algorithm:   AlgorithmSlidingWindow,
			WindowSize:  10 * time.Second,
			MaxRequests: 1,
			MinInterval: 10 * time.Second,
			Rate:        0.1,
			Burst:       1,
		},
		Simulation: SimulationConfig{
			Users:    5,
			Messages: 10,
			Rounds:   2,
			MinGap:   100 * time.Millisecond,
			MaxGap:   time.Second,
			Pause:    4 * time.Second,
			Seed:     1,
		},
		Journal: JournalConfig{
			Type: JournalTypeMemory,
			Path: "./data/runs.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "chatlimit",
			Tracing: TracingConfig{
				Enabled:      false,
				Exporter:     "stdout",
				OTLPEndpoint: "localhost:4317",
				SampleRate:   1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Limiter.Validate(); err != nil {
		return fmt.Errorf("invalid limiter config: %w", err)
	}

	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("invalid simulation config: %w", err)
	}

	if err := c.Journal.Validate(); err != nil {
		return fmt.Errorf("invalid journal config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

func (lc *LimiterConfig) Validate() error {
	switch lc.Algorithm {
	case AlgorithmSlidingWindow:
		if lc.WindowSize <= 0 {
			return errors.New("window size must be positive")
		}
		if lc.MaxRequests < 1 {
			return errors.New("max requests must be at least 1")
		}
	case AlgorithmThrottle:
		if lc.MinInterval <= 0 {
			return errors.New("min interval must be positive")
		}
	case AlgorithmTokenBucket:
		if lc.Rate <= 0 {
			return errors.New("rate must be positive")
		}
		if lc.Burst < 1 {
			return errors.New("burst must be at least 1")
		}
	default:
		return fmt.Errorf("invalid algorithm: %s", lc.Algorithm)
	}

	if lc.SweepInterval < 0 {
		return errors.New("sweep interval cannot be negative")
	}

	return nil
}

func (sc *SimulationConfig) Validate() error {
	if sc.Users < 1 {
		return errors.New("users must be at least 1")
	}

	if sc.Messages < 0 {
		return errors.New("messages cannot be negative")
	}

	if sc.Rounds < 1 {
		return errors.New("rounds must be at least 1")
	}

	if sc.MinGap < 0 || sc.MaxGap < 0 || sc.Pause < 0 {
		return errors.New("gaps and pause cannot be negative")
	}

	if sc.MaxGap < sc.MinGap {
		return errors.New("max gap cannot be less than min gap")
	}

	return nil
}

func (jc *JournalConfig) Validate() error {
	switch jc.Type {
	case JournalTypeMemory:
		return nil
	case JournalTypeJSON:
		if jc.Path == "" {
			return errors.New("path is required for JSON journal")
		}
	case JournalTypeSQLite, JournalTypePostgres:
		if jc.DSN == "" {
			return fmt.Errorf("DSN is required for %s journal", jc.Type)
		}
	default:
		return fmt.Errorf("invalid journal type: %s", jc.Type)
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	if !oneOf(lc.Level, "debug", "info", "warn", "error") {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	if !oneOf(lc.Format, "json", "text") {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	if !oneOf(lc.Output, "stdout", "stderr", "file") {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}

	if !oc.Tracing.Enabled {
		return nil
	}

	if !oneOf(oc.Tracing.Exporter, "stdout", "otlp") {
		return fmt.Errorf("invalid trace exporter: %s", oc.Tracing.Exporter)
	}

	if oc.Tracing.Exporter == "otlp" && oc.Tracing.OTLPEndpoint == "" {
		return errors.New("OTLP endpoint is required when exporter is otlp")
	}

	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("sample rate must be between 0 and 1")
	}

	return nil
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
