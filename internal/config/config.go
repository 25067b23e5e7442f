// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the tool configuration, loaded from a YAML file next to the
// program being stepped. Zero values mean defaults.
type Config struct {
	// Entry names the function execution starts from; empty prefers main.
	Entry string `yaml:"entry,omitempty"`
	// StepDelayMs throttles continuous running, in milliseconds per step.
	StepDelayMs int `yaml:"step_delay_ms,omitempty"`
	// MaxSteps bounds a run; 0 uses the built-in limit.
	MaxSteps int `yaml:"max_steps,omitempty"`
	// TracePath is the SQLite file step traces are recorded to; empty
	// disables recording.
	TracePath string `yaml:"trace_path,omitempty"`
	// ServeAddr is the listen address of the state server.
	ServeAddr string `yaml:"serve_addr,omitempty"`
}

// DefaultMaxSteps bounds runs that never terminate on their own.
const DefaultMaxSteps = 100000

func Default() Config {
	return Config{
		ServeAddr: "localhost:8080",
	}
}

// Load reads a config file. A missing file is not an error; defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ServeAddr == "" {
		cfg.ServeAddr = Default().ServeAddr
	}
	return cfg, nil
}

// Save writes the config back out as YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Steps returns the effective step bound.
func (c Config) Steps() int {
	if c.MaxSteps > 0 {
		return c.MaxSteps
	}
	return DefaultMaxSteps
}
