package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE", "memory")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, int64(10000), cfg.Goal)
	assert.Equal(t, time.Minute, cfg.FlushInterval)
	assert.Equal(t, time.Hour, cfg.SessionCleanupInterval)
	assert.Equal(t, "steps.updates", cfg.NATSSubject)
	assert.False(t, cfg.OIDC.Enabled())
	assert.False(t, cfg.ForwardAuth)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("STORE", "sqlite")
	t.Setenv("SQLITE_PATH", "/data/steps.db")
	t.Setenv("STEP_TIMEZONE", "Europe/Oslo")
	t.Setenv("STEP_GOAL", "8000")
	t.Setenv("FLUSH_INTERVAL", "30s")
	t.Setenv("AUTH_DISABLED", "true")
	t.Setenv("FORWARD_AUTH", "true")
	t.Setenv("OIDC_ISSUER", "https://id.example.com")
	t.Setenv("OIDC_CLIENT_ID", "steps")
	t.Setenv("OIDC_REDIRECT_URL", "https://steps.example.com/api/auth/sso/callback")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "/data/steps.db", cfg.SQLitePath)
	assert.Equal(t, int64(8000), cfg.Goal)
	assert.Equal(t, 30*time.Second, cfg.FlushInterval)
	assert.True(t, cfg.AuthDisabled)
	assert.True(t, cfg.ForwardAuth)
	assert.True(t, cfg.OIDC.Enabled())
	assert.Equal(t, "steps", cfg.OIDC.ClientID)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Oslo", loc.String())
}

func TestLoad_DotEnvDoesNotOverride(t *testing.T) {
	// Registers cleanup that restores the original environment.
	t.Setenv("NATS_SUBJECT", "")
	require.NoError(t, os.Unsetenv("NATS_SUBJECT"))
	t.Setenv("STORE", "memory")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NATS_SUBJECT=walks\nSTORE=postgres\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "walks", cfg.NATSSubject)
	assert.Equal(t, StoreMemory, cfg.Store)
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	t.Setenv("STORE", "memory")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Store: StoreMemory, Goal: 10000, FlushInterval: time.Minute,
		SessionCleanupInterval: time.Hour, LogLevel: "info", LogFormat: "text",
	}
	require.NoError(t, valid.Validate())

	tests := map[string]func(c *Config){
		"postgres without url": func(c *Config) { c.Store = StorePostgres },
		"unknown store":        func(c *Config) { c.Store = "redis" },
		"zero goal":            func(c *Config) { c.Goal = 0 },
		"zero flush interval":  func(c *Config) { c.FlushInterval = 0 },
		"bad timezone":         func(c *Config) { c.Timezone = "Mars/Olympus" },
		"bad log level":        func(c *Config) { c.LogLevel = "loud" },
		"bad log format":       func(c *Config) { c.LogFormat = "xml" },
		"partial oidc":         func(c *Config) { c.OIDC.Issuer = "https://id.example.com" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{LogLevel: "warn", LogFormat: "json"}
	logger, err := cfg.Logger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
