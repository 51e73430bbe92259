package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milk9111/motiongraph/motion"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.InDelta(t, 1.0/60, cfg.TickDuration(), 1e-12)
	assert.Equal(t, motion.DefaultSideChannels, cfg.Policy(), "graphs pick their own policy")
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motiongraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tick_rate: 120
side_channels: short_circuit
log:
  level: debug
save:
  backend: file
  path: saves
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.TickRate)
	assert.Equal(t, motion.ShortCircuit, cfg.Policy())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "file", cfg.Save.Backend)
	assert.Equal(t, "locomotion", cfg.Graph, "unset keys keep defaults")

	t.Setenv("MOTIONGRAPH_TICK_RATE", "30")
	t.Setenv("MOTIONGRAPH_LOG_LEVEL", "WARN")
	t.Setenv("MOTIONGRAPH_HOT_RELOAD", "false")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.TickRate)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.HotReload)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("env", func(t *testing.T) {
		t.Setenv("MOTIONGRAPH_TICK_RATE", "fast")
		_, err := Load("")
		assert.ErrorContains(t, err, "MOTIONGRAPH_TICK_RATE")
	})
	t.Run("policy", func(t *testing.T) {
		t.Setenv("MOTIONGRAPH_SIDE_CHANNELS", "sometimes")
		_, err := Load("")
		assert.Error(t, err)
	})
	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("tick_rate: [1"), 0o644))
		_, err := Load(path)
		assert.ErrorContains(t, err, "parse")
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "motiongraph.yaml")
	cfg := DefaultConfig()
	cfg.TickRate = 50
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
