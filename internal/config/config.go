// Package config loads the YAML file the CLI uses to override the
// coordinator's Options defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk override surface for a compile run.
type Config struct {
	Concurrency                int  `yaml:"concurrency"`
	LongCompilationThresholdMs int  `yaml:"long_compilation_threshold_ms"`
	WarningsAsErrors           bool `yaml:"warnings_as_errors"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
}

// Load reads and parses path. A missing file is an error like any other
// read failure; the returned error wraps fs.ErrNotExist in that case.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}
	return &cfg, nil
}
