package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "10.100.1.20", cfg.PLC.Host)
	assert.Equal(t, 502, cfg.PLC.Port)
	assert.Equal(t, uint8(1), cfg.PLC.SlaveID)
	assert.Equal(t, 5*time.Second, cfg.PLC.Timeout)
	assert.Equal(t, "10.100.1.10", cfg.Printer.Host)
	assert.Equal(t, 43110, cfg.Printer.PortHead1)
	assert.Equal(t, 43111, cfg.Printer.PortHead2)
	assert.Equal(t, 100*time.Millisecond, cfg.Printer.CommandDelay)
	assert.Equal(t, 10*time.Second, cfg.Cloud.Timeout)
	assert.Equal(t, time.Second, cfg.Polling.Interval)
	assert.Equal(t, 60*time.Minute, cfg.Auth.TokenTTL)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  http_port: 9090
plc:
  host: 192.168.7.2
  timeout: 2s
cloud:
  url: http://feed.example.com/batches
polling:
  interval: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, "192.168.7.2", cfg.PLC.Host)
	assert.Equal(t, 2*time.Second, cfg.PLC.Timeout)
	assert.Equal(t, "http://feed.example.com/batches", cfg.Cloud.URL)
	assert.Equal(t, 250*time.Millisecond, cfg.Polling.Interval)

	// Untouched sections keep their defaults
	assert.Equal(t, 502, cfg.PLC.Port)
	assert.Equal(t, "10.100.1.10", cfg.Printer.Host)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("OBC_PLC_HOST", "10.0.0.9")
	t.Setenv("OBC_SERVER_HTTP_PORT", "8099")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.9", cfg.PLC.Host)
	assert.Equal(t, 8099, cfg.Server.HTTPPort)
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plc:\n  slave_id: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestValidate_Rejections(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty plc host", func(c *Config) { c.PLC.Host = "" }, "plc.host"},
		{"zero slave id", func(c *Config) { c.PLC.SlaveID = 0 }, "slave_id"},
		{"printer ports collide", func(c *Config) { c.Printer.PortHead2 = c.Printer.PortHead1 }, "distinct ports"},
		{"unparseable cloud url", func(c *Config) { c.Cloud.URL = "not a url" }, "cloud.url"},
		{"interval below floor", func(c *Config) { c.Polling.Interval = 10 * time.Millisecond }, "polling.interval"},
		{"http port out of range", func(c *Config) { c.Server.HTTPPort = 0 }, "http_port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGetJWTSecret(t *testing.T) {
	a := AuthConfig{JWTSecretEnv: "OBC_TEST_SECRET"}

	assert.Equal(t, "dev-secret-change-in-production-min-32-chars", a.GetJWTSecret())
	assert.False(t, a.IsProductionReady())

	t.Setenv("OBC_TEST_SECRET", "an-operator-chosen-secret-with-enough-length")
	assert.Equal(t, "an-operator-chosen-secret-with-enough-length", a.GetJWTSecret())
	assert.True(t, a.IsProductionReady())
}
