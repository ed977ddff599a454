package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")
	chtmp(t)

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Empty(t, cfg.ICEServers)
}

func TestLoadServerFromFile(t *testing.T) {
	t.Setenv("CONFIG_ENV", "test")
	dir := chtmp(t)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	content := []byte(`
mode: debug
port: 9090
secret: s3cr3t
ice_servers:
  - urls: ["stun:stun.example.com:3478"]
  - urls: ["turn:turn.example.com:3478"]
    username: u
    credential: c
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), content, 0o644))

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9090, cfg.Port)
	require.Len(t, cfg.ICEServers, 2)
	assert.Equal(t, "u", cfg.ICEServers[1].Username)
}

func TestLoadClientDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")
	chtmp(t)

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/api/ws/signal", cfg.SignalURL)
	assert.Equal(t, "lobby", cfg.Room)
	assert.Equal(t, "participant", cfg.Role)
	assert.True(t, cfg.Audio)
}

// chtmp runs the test from a fresh directory so stray config files on the
// host never leak in.
func chtmp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}
