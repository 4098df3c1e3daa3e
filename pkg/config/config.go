// Package config provides configuration loading and management for the
// vertebrae post-processing toolkit. It handles loading configuration from
// YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/cleaning"
	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/components"
	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/morphology"
	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/smoothing"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Cleaning parameters for the per-vertebra pipeline
	Cleaning struct {
		// ClosingSize is the cubic structuring element side for
		// morphological closing
		ClosingSize int `yaml:"closingSize"`

		// OpeningSize is the cubic structuring element side for
		// morphological opening
		OpeningSize int `yaml:"openingSize"`

		// Sigma is the Gaussian smoothing standard deviation in voxels
		Sigma float64 `yaml:"sigma"`

		// Connectivity selects component adjacency: 6, 18 or 26
		Connectivity int `yaml:"connectivity"`

		// Workers bounds the per-label worker pool (0 = all CPUs)
		Workers int `yaml:"workers"`
	} `yaml:"cleaning"`

	// Mesh export parameters
	Mesh struct {
		// SmoothIterations is the Laplacian smoothing iteration count
		// applied to exported display meshes (0 disables)
		SmoothIterations int `yaml:"smoothIterations"`

		// SmoothRelaxation is the per-iteration relaxation factor
		SmoothRelaxation float64 `yaml:"smoothRelaxation"`
	} `yaml:"mesh"`

	// Output parameters
	Output struct {
		// CleanedSuffix names the post-processed mirror of a patient
		// directory
		CleanedSuffix string `yaml:"cleanedSuffix"`

		// WebDataDir is where exported meshes and metadata land
		WebDataDir string `yaml:"webDataDir"`

		// Verbose enables debug-level logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Cleaning.ClosingSize = morphology.DefaultClosingSize
	cfg.Cleaning.OpeningSize = morphology.DefaultOpeningSize
	cfg.Cleaning.Sigma = smoothing.DefaultSigma
	cfg.Cleaning.Connectivity = int(components.Full)
	cfg.Cleaning.Workers = runtime.NumCPU()

	cfg.Mesh.SmoothIterations = 50
	cfg.Mesh.SmoothRelaxation = 0.1

	cfg.Output.CleanedSuffix = "_post_processed"
	cfg.Output.WebDataDir = "web_data"
	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Pipeline builds the cleaning pipeline the configuration describes.
func (c *Config) Pipeline() (*cleaning.Pipeline, error) {
	conn, err := components.ParseConnectivity(c.Cleaning.Connectivity)
	if err != nil {
		return nil, err
	}
	if c.Cleaning.ClosingSize < 1 || c.Cleaning.OpeningSize < 1 {
		return nil, fmt.Errorf("structuring element sizes must be >= 1 (closing %d, opening %d)",
			c.Cleaning.ClosingSize, c.Cleaning.OpeningSize)
	}
	return &cleaning.Pipeline{
		ClosingSize:  c.Cleaning.ClosingSize,
		OpeningSize:  c.Cleaning.OpeningSize,
		Sigma:        c.Cleaning.Sigma,
		Connectivity: conn,
	}, nil
}
