package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botmem.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: scout
context:
  max_bytes: 1024
ledger:
  max_attempts: 7
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "scout", cfg.Name)
	assert.Equal(t, 1024, cfg.Context.MaxBytes)
	assert.Equal(t, 7, cfg.Ledger.MaxAttempts)

	// Unset fields fall back to defaults.
	def := DefaultConfig()
	assert.Equal(t, def.Role, cfg.Role)
	assert.Equal(t, def.Model, cfg.Model)
	assert.Equal(t, def.Context.Retention, cfg.Context.Retention)
	assert.Equal(t, def.Ledger.SimilarityThreshold, cfg.Ledger.SimilarityThreshold)
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botmem.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: [unterminated"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSystemInstruction(t *testing.T) {
	cfg := Config{Name: "scout", Role: "research assistant"}
	assert.Equal(t, "You are scout, a research assistant.", cfg.SystemInstruction())
}
