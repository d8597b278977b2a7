// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"prose-scan/internal/core"
	"prose-scan/internal/detector"
	"prose-scan/internal/leak"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the config file
const (
	EnvFixThreshold      = "PROSE_SCAN_FIX_THRESHOLD"
	EnvLeakMinConfidence = "PROSE_SCAN_LEAK_MIN_CONFIDENCE"
	EnvWorkers           = "PROSE_SCAN_WORKERS"
	EnvFormat            = "PROSE_SCAN_FORMAT"
)

// Config represents the application configuration
type Config struct {
	Engine struct {
		FixThreshold         float64      `yaml:"fix_threshold"`
		LeakMinConfidence    float64      `yaml:"leak_min_confidence"`
		LeakFactorWeights    leak.Weights `yaml:"leak_factor_weights"`
		EchoConfidenceBoost  float64      `yaml:"echo_confidence_boost"`
		LeakContextWindow    int          `yaml:"leak_context_window"`
		UseSourceReference   bool         `yaml:"use_source_reference"`
		SourceAbsentFactor   float64      `yaml:"source_absent_factor"`
		LeakSeveritySequence string       `yaml:"leak_severity_sequence"`
		// Detectors is a comma-separated list of kinds to run, or "all"
		Detectors string `yaml:"detectors"`
	} `yaml:"engine"`

	// Auxiliary configures the optional external confidence signal
	Auxiliary struct {
		Enabled    bool          `yaml:"enabled"`
		URL        string        `yaml:"url"`
		TokenEnv   string        `yaml:"token_env"`
		Timeout    time.Duration `yaml:"timeout"`
		MaxRetries int           `yaml:"max_retries"`
		Weight     float64       `yaml:"weight"`
	} `yaml:"auxiliary"`

	Batch struct {
		Workers int `yaml:"workers"`
	} `yaml:"batch"`

	Library struct {
		Path string `yaml:"path"`
	} `yaml:"library"`

	Scripts struct {
		Profile string `yaml:"profile"`
	} `yaml:"scripts"`

	Suppressions struct {
		Path string `yaml:"path"`
	} `yaml:"suppressions"`

	Output struct {
		Format string `yaml:"format"`
		// Priorities filters the review queue, e.g. "critical,high"
		Priorities string `yaml:"priorities"`
		NoColor    bool   `yaml:"no_color"`
	} `yaml:"output"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	config := &Config{}

	config.Engine.FixThreshold = 0.9
	config.Engine.LeakMinConfidence = 0.7
	config.Engine.LeakFactorWeights = leak.DefaultWeights()
	config.Engine.EchoConfidenceBoost = 0.1
	config.Engine.LeakContextWindow = 4
	config.Engine.UseSourceReference = true
	config.Engine.SourceAbsentFactor = 0.5
	config.Engine.LeakSeveritySequence = "critical"
	config.Engine.Detectors = "all"

	config.Auxiliary.Enabled = false
	config.Auxiliary.TokenEnv = "PROSE_SCAN_AUXILIARY_TOKEN"
	config.Auxiliary.Timeout = 2 * time.Second
	config.Auxiliary.MaxRetries = 1
	config.Auxiliary.Weight = 0.2

	config.Batch.Workers = 4
	config.Library.Path = "patterns.yaml"
	config.Scripts.Profile = "zh-ja"

	config.Output.Format = "text"
	config.Output.Priorities = "all"

	return config
}

// LoadConfig loads configuration from the specified file path. Defaults are
// applied first, then the file, then environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(filepath.Clean(configPath))
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		// Unmarshaling into the defaulted struct keeps every field the file omits
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if !fileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := lookupEnv(EnvFixThreshold); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvFixThreshold, err)
		}
		c.Engine.FixThreshold = f
	}
	if v, ok := lookupEnv(EnvLeakMinConfidence); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLeakMinConfidence, err)
		}
		c.Engine.LeakMinConfidence = f
	}
	if v, ok := lookupEnv(EnvWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Batch.Workers = n
	}
	if v, ok := lookupEnv(EnvFormat); ok {
		c.Output.Format = v
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Validate checks value ranges
func (c *Config) Validate() error {
	inUnit := func(name string, v float64) error {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
		return nil
	}

	if err := inUnit("engine.fix_threshold", c.Engine.FixThreshold); err != nil {
		return err
	}
	if err := inUnit("engine.leak_min_confidence", c.Engine.LeakMinConfidence); err != nil {
		return err
	}
	if err := inUnit("engine.source_absent_factor", c.Engine.SourceAbsentFactor); err != nil {
		return err
	}
	if err := inUnit("auxiliary.weight", c.Auxiliary.Weight); err != nil {
		return err
	}
	if err := c.Engine.LeakFactorWeights.Validate(); err != nil {
		return fmt.Errorf("engine.leak_factor_weights: %w", err)
	}
	if c.Engine.EchoConfidenceBoost < 0 {
		return fmt.Errorf("engine.echo_confidence_boost must not be negative")
	}
	if c.Engine.LeakContextWindow <= 0 {
		return fmt.Errorf("engine.leak_context_window must be positive")
	}
	if _, err := detector.ParseSeverity(c.Engine.LeakSeveritySequence); err != nil {
		return fmt.Errorf("engine.leak_severity_sequence: %w", err)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("batch.workers must be positive")
	}
	if c.Auxiliary.Enabled && c.Auxiliary.URL == "" {
		return fmt.Errorf("auxiliary.url is required when auxiliary.enabled is set")
	}
	if c.Auxiliary.Timeout <= 0 {
		return fmt.Errorf("auxiliary.timeout must be positive")
	}
	if c.Auxiliary.MaxRetries < 0 {
		return fmt.Errorf("auxiliary.max_retries must not be negative")
	}
	if _, err := leak.Profile(c.Scripts.Profile); err != nil {
		return fmt.Errorf("scripts.profile: %w", err)
	}
	return nil
}

// EngineOptions converts the configuration into engine options. The
// auxiliary signal, suppressor and observer are left for the caller to set.
func (c *Config) EngineOptions() core.Options {
	opts := core.DefaultOptions()
	opts.FixThreshold = c.Engine.FixThreshold
	opts.LeakMinConfidence = c.Engine.LeakMinConfidence
	opts.LeakWeights = c.Engine.LeakFactorWeights
	opts.EchoConfidenceBoost = c.Engine.EchoConfidenceBoost
	opts.LeakContextWindow = c.Engine.LeakContextWindow
	opts.UseSourceReference = c.Engine.UseSourceReference
	opts.SourceAbsentFactor = c.Engine.SourceAbsentFactor
	if sev, err := detector.ParseSeverity(c.Engine.LeakSeveritySequence); err == nil {
		opts.LeakSequenceSeverity = sev
	}
	opts.ScriptProfile = c.Scripts.Profile
	opts.Kinds = core.ParseKinds(splitList(c.Engine.Detectors))
	opts.AuxiliaryWeight = c.Auxiliary.Weight
	opts.AuxiliaryTimeout = c.Auxiliary.Timeout
	opts.AuxiliaryRetries = c.Auxiliary.MaxRetries
	opts.Workers = c.Batch.Workers
	return opts
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// FindConfigFile looks for a configuration file in standard locations
func FindConfigFile() string {
	for _, name := range []string{"prose-scan.yaml", "prose-scan.yml", ".prose-scan.yaml", ".prose-scan.yml"} {
		if fileExists(name) {
			return name
		}
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		xdgConfig = filepath.Join(home, ".config")
	}
	for _, name := range []string{"config.yaml", "config.yml"} {
		configFile := filepath.Join(xdgConfig, "prose-scan", name)
		if fileExists(configFile) {
			return configFile
		}
	}

	return ""
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// LoadConfigOrDefault loads configuration from configFile (or searches standard locations
// when configFile is empty). If loading fails, it returns a default configuration.
func LoadConfigOrDefault(configFile string) *Config {
	configPath := configFile
	if configPath == "" {
		configPath = FindConfigFile()
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		cfg = Default()
	}
	return cfg
}
