package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/versebase/internal/bulkload"
	"github.com/roach88/versebase/internal/snapshot"
)

// Config is the on-disk CLI configuration. Every field has a working
// default; a missing config file is not an error.
type Config struct {
	// StorePath is the snapshot store file. The directory must exist.
	StorePath string `yaml:"store_path"`
	// Namespace scopes snapshot keys, so several datasets can share a store.
	Namespace string `yaml:"namespace"`
	// QuotaBytes caps the snapshot store capacity.
	QuotaBytes int64 `yaml:"quota_bytes"`
	// SearchBudgetMS bounds a full-text match before the substring fallback.
	SearchBudgetMS int `yaml:"search_budget_ms"`
	// FallbackBudgetMS bounds the substring fallback scan.
	FallbackBudgetMS int `yaml:"fallback_budget_ms"`
	// BatchSize is rows per bulk-load transaction.
	BatchSize int `yaml:"batch_size"`
	// ScratchDir overrides where the live database file lives. Empty means
	// a private temp directory.
	ScratchDir string `yaml:"scratch_dir"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		StorePath:        "versebase.snapshots",
		Namespace:        "versebase",
		QuotaBytes:       snapshot.DefaultQuota,
		SearchBudgetMS:   250,
		FallbackBudgetMS: 2000,
		BatchSize:        bulkload.DefaultBatchSize,
	}
}

// LoadConfig reads path and overlays it on the defaults. An empty path
// returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Namespace == "" {
		return cfg, fmt.Errorf("config %s: namespace must not be empty", path)
	}
	if cfg.QuotaBytes <= 0 {
		return cfg, fmt.Errorf("config %s: quota_bytes must be positive", path)
	}
	return cfg, nil
}

// SearchBudget returns the match budget as a duration.
func (c Config) SearchBudget() time.Duration {
	return time.Duration(c.SearchBudgetMS) * time.Millisecond
}

// FallbackBudget returns the fallback budget as a duration.
func (c Config) FallbackBudget() time.Duration {
	return time.Duration(c.FallbackBudgetMS) * time.Millisecond
}
