package daemon

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "daemon.sock", filepath.Base(cfg.SocketPath))
	assert.Equal(t, "daemon.pid", filepath.Base(cfg.PIDPath))
	assert.Equal(t, ".wordindex", filepath.Base(filepath.Dir(cfg.SocketPath)))
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Zero(t, cfg.ResyncInterval)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty socket", func(c *Config) { c.SocketPath = "" }},
		{"empty pid", func(c *Config) { c.PIDPath = "" }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"zero grace", func(c *Config) { c.ShutdownGracePeriod = 0 }},
		{"negative resync", func(c *Config) { c.ResyncInterval = -time.Second }},
		{"negative idle", func(c *Config) { c.IdleTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_EnsureDir(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.SocketPath = filepath.Join(dir, "run", "d.sock")
	cfg.PIDPath = filepath.Join(dir, "state", "d.pid")

	require.NoError(t, cfg.EnsureDir())
	assert.DirExists(t, filepath.Join(dir, "run"))
	assert.DirExists(t, filepath.Join(dir, "state"))
}
