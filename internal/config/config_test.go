package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8888", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 0, cfg.Terminal.CullInactiveTimeout)
	assert.Equal(t, 300, cfg.Terminal.CullInterval)
	assert.Equal(t, uint16(24), cfg.Terminal.Rows)
	assert.Equal(t, uint16(80), cfg.Terminal.Cols)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestYAMLFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9999"
terminal:
  cull_inactive_timeout: 10
  cull_interval: 3
  root_dir: /srv/workspaces
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 10, cfg.Terminal.CullInactiveTimeout)
	assert.Equal(t, 3, cfg.Terminal.CullInterval)
	assert.Equal(t, "/srv/workspaces", cfg.Terminal.RootDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, uint16(24), cfg.Terminal.Rows)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
terminal:
  cull_interval: 3
`), 0o644))

	t.Setenv("CULL_INTERVAL", "7")
	t.Setenv("PORT", "7777")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Terminal.CullInterval)
	assert.Equal(t, "7777", cfg.Server.Port)
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	cfg.Terminal.CullInactiveTimeout = 10
	cfg.Terminal.CullInterval = 3

	assert.Equal(t, 10*time.Second, cfg.Terminal.CullTimeout())
	assert.Equal(t, 3*time.Second, cfg.Terminal.CullEvery())
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
