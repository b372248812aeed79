package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.PrioritiesPerBucket())
}

func TestValidateRejectsNonDividingBucketCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PriorityLevels = 10
	cfg.BucketCount = 3
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadWordWidth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CPUDataWidth = 16
	assert.Error(t, cfg.Validate())
}

func TestLoadFilePartialOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.toml")
	require.NoError(t, os.WriteFile(path, []byte("priority_levels = 16\nbucket_count = 4\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.PriorityLevels)
	assert.Equal(t, 4, cfg.BucketCount)
	assert.Equal(t, uint32(100), cfg.CoreTimerEventFreq, "unset fields keep default values")
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
