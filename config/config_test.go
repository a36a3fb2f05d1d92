package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	cfg := DefaultConfig()
	cfg.Options.GridDivision = 32
	cfg.Options.DriftTolerance = 0.010
	cfg.Policy.FixTimingDrift = false
	cfg.Policy.MaxNoteDuration = 2.5
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"options":{"gridDivision":8}}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Options.GridDivision)
	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultConfig().Policy, cfg.Policy)
	assert.Equal(t, DefaultConfig().Options.VelocitySigma, cfg.Options.VelocitySigma)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
