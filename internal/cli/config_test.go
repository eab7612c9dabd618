package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 250*time.Millisecond, cfg.SearchBudget())
	assert.Equal(t, 2*time.Second, cfg.FallbackBudget())
}

func TestLoadConfig_OverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versebase.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"namespace: niv\nbatch_size: 50\nsearch_budget_ms: 100\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "niv", cfg.Namespace)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.SearchBudget())
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultConfig().StorePath, cfg.StorePath)
	assert.Equal(t, DefaultConfig().QuotaBytes, cfg.QuotaBytes)
}

func TestLoadConfig_RejectsEmptyNamespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versebase.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`namespace: ""`), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "namespace")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
