// Package config provides configuration loading and management for mdr.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Signal model parameters
	Model struct {
		// Name selects the registered signal model (e.g. "monoexponential", "t1")
		Name string `yaml:"name"`

		// Values are the per-frame acquisition parameters in frame order
		// (b-values for diffusion, inversion times for T1 mapping)
		Values []float64 `yaml:"values"`
	} `yaml:"model"`

	// Registration parameters
	Registration struct {
		// Tolerance is the convergence threshold in pixels
		Tolerance float64 `yaml:"tolerance"`

		// MaxIterations caps the fit/register alternation
		MaxIterations int `yaml:"maxIterations"`

		// Engine holds the opaque engine options forwarded verbatim
		// (e.g. MaximumNumberOfIterations, GridSpacing, SearchRadius)
		Engine map[string]interface{} `yaml:"engine"`
	} `yaml:"registration"`

	// Processing parameters
	Processing struct {
		// Workers specifies how many goroutines to use for per-pixel fits
		Workers int `yaml:"workers"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Directory is where registered images, maps and diagnostics are written
		Directory string `yaml:"directory"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default model parameters
	cfg.Model.Name = "monoexponential"

	// Set default registration parameters
	cfg.Registration.Tolerance = 1.0
	cfg.Registration.MaxIterations = 10
	cfg.Registration.Engine = map[string]interface{}{
		"MaximumNumberOfIterations": 256,
		"GridSpacing":               8,
		"SearchRadius":              4,
	}

	// Set default processing parameters
	cfg.Processing.Workers = runtime.NumCPU() // Use all available cores by default

	// Set default output parameters
	cfg.Output.Directory = "mdr_output"
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
