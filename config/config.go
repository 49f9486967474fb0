// Package config defines the training configuration, its defaults, and
// loading from a YAML file.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config collects every knob of a training run.
type Config struct {
	BatchSize     int     `yaml:"batch_size"`
	TestBatchSize int     `yaml:"test_batch_size"`
	Epochs        int     `yaml:"epochs"`
	LearningRate  float32 `yaml:"lr"`
	Gamma         float32 `yaml:"gamma"`
	Seed          int64   `yaml:"seed"`
	LogInterval   int     `yaml:"log_interval"`
	DataDir       string  `yaml:"data_dir"`
	Prefetch      int     `yaml:"prefetch"`

	NoAccel   bool   `yaml:"no_accel"`
	DryRun    bool   `yaml:"dry_run"`
	SaveModel bool   `yaml:"save_model"`
	SavePath  string `yaml:"save_path"`

	EnableAMP bool   `yaml:"enable_amp"`
	OptLevel  string `yaml:"opt_level"`
}

// Default returns the stock configuration for MNIST training.
func Default() Config {
	return Config{
		BatchSize:     64,
		TestBatchSize: 1000,
		Epochs:        4,
		LearningRate:  3e-4,
		Gamma:         0.7,
		Seed:          1,
		LogInterval:   10,
		DataDir:       "data",
		Prefetch:      2,
		SavePath:      "mnist_cnn.ckpt",
		OptLevel:      "O2",
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the run cannot proceed with.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.TestBatchSize <= 0 {
		return fmt.Errorf("test_batch_size must be positive, got %d", c.TestBatchSize)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("lr must be positive, got %v", c.LearningRate)
	}
	if c.Gamma <= 0 || c.Gamma > 1 {
		return fmt.Errorf("gamma must be in (0, 1], got %v", c.Gamma)
	}
	if c.LogInterval <= 0 {
		return fmt.Errorf("log_interval must be positive, got %d", c.LogInterval)
	}
	if c.Prefetch < 0 {
		return fmt.Errorf("prefetch must be non-negative, got %d", c.Prefetch)
	}
	if c.EnableAMP && c.OptLevel != "O1" && c.OptLevel != "O2" {
		return fmt.Errorf("opt_level must be O1 or O2, got %q", c.OptLevel)
	}
	return nil
}
