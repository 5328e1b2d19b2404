// Package config loads the analyzer's YAML configuration and layers
// it over built-in defaults. The core engines never read this package;
// they receive an explicit core.Config assembled here.
package config

import (
	"fmt"
	"os"

	"github.com/signalsfoundry/fronthaul-optimizer/core"
	"gopkg.in/yaml.v3"
)

// Config is the top-level analyzer configuration.
type Config struct {
	// DataDir is the directory holding the telemetry .dat files.
	DataDir string `yaml:"data_dir"`

	// HTTPAddr is the listen address of the analysis API server.
	HTTPAddr string `yaml:"http_addr"`

	// MetricsAddr is the listen address for Prometheus /metrics.
	MetricsAddr string `yaml:"metrics_addr"`

	// Concurrency bounds the number of links optimized in parallel.
	// Zero means one worker per CPU.
	Concurrency int `yaml:"concurrency"`

	Analysis Analysis `yaml:"analysis"`
}

// Analysis mirrors the core engine knobs. Zero values fall back to the
// core defaults so a config file only has to name what it changes.
type Analysis struct {
	SymbolDurationSec      float64 `yaml:"symbol_duration_sec"`
	SymbolsPerSlot         int     `yaml:"symbols_per_slot"`
	CorrelationThreshold   float64 `yaml:"correlation_threshold"`
	BurstWindowSlots       int     `yaml:"burst_window_slots"`
	BurstFactor            float64 `yaml:"burst_factor"`
	PAPRLow                float64 `yaml:"papr_low"`
	PAPRMedium             float64 `yaml:"papr_medium"`
	BufferMinimalMicros    float64 `yaml:"buffer_minimal_us"`
	BufferModerateMicros   float64 `yaml:"buffer_moderate_us"`
	BufferAggressiveMicros float64 `yaml:"buffer_aggressive_us"`
	LossLimit              float64 `yaml:"loss_limit"`
	PrecisionGbps          float64 `yaml:"precision_gbps"`
	MaxIterations          int     `yaml:"max_iterations"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		DataDir:     "data",
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
	}
}

// Load reads a YAML config file and merges it over the defaults. An
// empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	coreCfg := cfg.CoreConfig()
	if err := coreCfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	return cfg, nil
}

// CoreConfig assembles the engine configuration, filling unset fields
// with the core defaults.
func (c *Config) CoreConfig() core.Config {
	out := core.DefaultConfig()
	a := c.Analysis

	if a.SymbolDurationSec > 0 {
		out.SymbolDurationSec = a.SymbolDurationSec
	}
	if a.SymbolsPerSlot > 0 {
		out.SymbolsPerSlot = a.SymbolsPerSlot
	}
	if a.CorrelationThreshold != 0 {
		out.CorrelationThreshold = a.CorrelationThreshold
	}
	if a.BurstWindowSlots > 0 {
		out.BurstWindowSlots = a.BurstWindowSlots
	}
	if a.BurstFactor > 0 {
		out.BurstFactor = a.BurstFactor
	}
	if a.PAPRLow > 0 {
		out.PAPRLow = a.PAPRLow
	}
	if a.PAPRMedium > 0 {
		out.PAPRMedium = a.PAPRMedium
	}
	if a.BufferMinimalMicros > 0 {
		out.BufferMinimalMicros = a.BufferMinimalMicros
	}
	if a.BufferModerateMicros > 0 {
		out.BufferModerateMicros = a.BufferModerateMicros
	}
	if a.BufferAggressiveMicros > 0 {
		out.BufferAggressiveMicros = a.BufferAggressiveMicros
	}
	if a.LossLimit > 0 {
		out.LossLimit = a.LossLimit
	}
	if a.PrecisionGbps > 0 {
		out.PrecisionGbps = a.PrecisionGbps
	}
	if a.MaxIterations > 0 {
		out.MaxIterations = a.MaxIterations
	}
	return out
}
