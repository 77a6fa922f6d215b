package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "farmops.db", cfg.DatabaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.LogFile)
	assert.Equal(t, time.Duration(0), cfg.GenerateInterval)
	assert.Equal(t, 14, cfg.GenerateHorizonDays)
	assert.Empty(t, cfg.LowStockAlertTime)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("FARMOPS_ADDR", ":9090")
	t.Setenv("FARMOPS_DATABASE_URL", "/var/lib/farmops/farm.db")
	t.Setenv("FARMOPS_LOG_LEVEL", "debug")
	t.Setenv("FARMOPS_GENERATE_INTERVAL", "1h")
	t.Setenv("FARMOPS_LOW_STOCK_ALERT_TIME", "06:30")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "/var/lib/farmops/farm.db", cfg.DatabaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.GenerateInterval)
	assert.Equal(t, "06:30", cfg.LowStockAlertTime)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":7070\"\nlog_level: warn\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "farmops.db", cfg.DatabaseURL, "unset keys keep defaults")
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("unknown log level", func(t *testing.T) {
		t.Setenv("FARMOPS_LOG_LEVEL", "loud")
		_, err := Load("")
		assert.Error(t, err)
	})
	t.Run("negative interval", func(t *testing.T) {
		t.Setenv("FARMOPS_GENERATE_INTERVAL", "-5m")
		_, err := Load("")
		assert.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
