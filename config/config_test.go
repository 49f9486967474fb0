package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestDefaultTrainingKnobs(t *testing.T) {
	cfg := Default()
	if cfg.BatchSize != 64 {
		t.Errorf("batch size = %d, want 64", cfg.BatchSize)
	}
	if cfg.TestBatchSize != 1000 {
		t.Errorf("test batch size = %d, want 1000", cfg.TestBatchSize)
	}
	if cfg.Epochs != 4 {
		t.Errorf("epochs = %d, want 4", cfg.Epochs)
	}
	if cfg.LearningRate != 3e-4 {
		t.Errorf("lr = %v, want 3e-4", cfg.LearningRate)
	}
	if cfg.Gamma != 0.7 {
		t.Errorf("gamma = %v, want 0.7", cfg.Gamma)
	}
	if cfg.Seed != 1 {
		t.Errorf("seed = %d, want 1", cfg.Seed)
	}
	if cfg.LogInterval != 10 {
		t.Errorf("log interval = %d, want 10", cfg.LogInterval)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	content := "batch_size: 128\nepochs: 2\nenable_amp: true\nopt_level: O1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BatchSize != 128 || cfg.Epochs != 2 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if !cfg.EnableAMP || cfg.OptLevel != "O1" {
		t.Errorf("amp settings not applied: %+v", cfg)
	}
	// Untouched keys keep their defaults.
	if cfg.TestBatchSize != 1000 || cfg.Gamma != 0.7 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	if err := os.WriteFile(path, []byte("batchsize: 12\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"zero epochs", func(c *Config) { c.Epochs = 0 }},
		{"negative lr", func(c *Config) { c.LearningRate = -1 }},
		{"gamma above one", func(c *Config) { c.Gamma = 1.5 }},
		{"bad opt level", func(c *Config) { c.EnableAMP = true; c.OptLevel = "O3" }},
		{"negative prefetch", func(c *Config) { c.Prefetch = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
