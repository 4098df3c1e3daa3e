package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/components"
)

// TestDefaultConfig verifies the clinical default parameters
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Cleaning.ClosingSize != 3 {
		t.Errorf("Expected closing size 3, got %d", cfg.Cleaning.ClosingSize)
	}
	if cfg.Cleaning.OpeningSize != 2 {
		t.Errorf("Expected opening size 2, got %d", cfg.Cleaning.OpeningSize)
	}
	if cfg.Cleaning.Sigma != 1.5 {
		t.Errorf("Expected sigma 1.5, got %f", cfg.Cleaning.Sigma)
	}
	if cfg.Cleaning.Connectivity != 26 {
		t.Errorf("Expected 26-connectivity, got %d", cfg.Cleaning.Connectivity)
	}
	if cfg.Mesh.SmoothIterations != 50 || cfg.Mesh.SmoothRelaxation != 0.1 {
		t.Errorf("Unexpected mesh smoothing defaults: %+v", cfg.Mesh)
	}
	if cfg.Output.CleanedSuffix != "_post_processed" {
		t.Errorf("Unexpected cleaned suffix: %s", cfg.Output.CleanedSuffix)
	}
}

// TestLoadConfigMissingFile verifies a missing config file yields defaults
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Expected defaults for missing file, got error: %v", err)
	}
	if cfg.Cleaning.ClosingSize != 3 {
		t.Errorf("Expected default closing size, got %d", cfg.Cleaning.ClosingSize)
	}
}

// TestSaveLoadRoundTrip verifies YAML serialization round-trips
func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cleaning.Sigma = 2.0
	cfg.Cleaning.Connectivity = 6
	cfg.Output.WebDataDir = "elsewhere"

	path := filepath.Join(t.TempDir(), "vertseg.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig returned error: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if loaded.Cleaning.Sigma != 2.0 {
		t.Errorf("Expected sigma 2.0, got %f", loaded.Cleaning.Sigma)
	}
	if loaded.Cleaning.Connectivity != 6 {
		t.Errorf("Expected connectivity 6, got %d", loaded.Cleaning.Connectivity)
	}
	if loaded.Output.WebDataDir != "elsewhere" {
		t.Errorf("Expected web data dir to round-trip, got %s", loaded.Output.WebDataDir)
	}
}

// TestLoadConfigPartialFile verifies fields absent from the YAML keep
// their defaults
func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("cleaning:\n  sigma: 0.8\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Cleaning.Sigma != 0.8 {
		t.Errorf("Expected sigma 0.8 from file, got %f", cfg.Cleaning.Sigma)
	}
	if cfg.Cleaning.ClosingSize != 3 {
		t.Errorf("Expected default closing size to survive, got %d", cfg.Cleaning.ClosingSize)
	}
}

// TestPipelineBuilder verifies config-to-pipeline conversion and its
// validation
func TestPipelineBuilder(t *testing.T) {
	cfg := DefaultConfig()

	p, err := cfg.Pipeline()
	if err != nil {
		t.Fatalf("Pipeline returned error: %v", err)
	}
	if p.ClosingSize != 3 || p.OpeningSize != 2 || p.Sigma != 1.5 {
		t.Errorf("Unexpected pipeline parameters: %+v", p)
	}
	if p.Connectivity != components.Full {
		t.Errorf("Expected full connectivity, got %d", p.Connectivity)
	}

	cfg.Cleaning.Connectivity = 11
	if _, err := cfg.Pipeline(); err == nil {
		t.Error("Expected error for invalid connectivity")
	}

	cfg = DefaultConfig()
	cfg.Cleaning.ClosingSize = 0
	if _, err := cfg.Pipeline(); err == nil {
		t.Error("Expected error for zero structuring element size")
	}
}
