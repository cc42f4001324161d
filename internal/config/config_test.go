package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_RequiresDBPassword(t *testing.T) {
	clearEnv(t, "DB_PASSWORD")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PASSWORD")
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "localhost", cfg.Store.Host)
	assert.Equal(t, 5432, cfg.Store.Port)
	assert.Equal(t, 3, cfg.Queue.MaxRetries)
	assert.Equal(t, 5, cfg.Pool.WorkerCount)
	assert.Equal(t, 3, cfg.VRAM.CrashThreshold)
	assert.Equal(t, 10*time.Minute, cfg.VRAM.CrashWindow)
	assert.Equal(t, 6*time.Hour, cfg.LogCleanup.CleanupInterval)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("WORKER_COUNT", "20")
	t.Setenv("VRAM_CRASH_THRESHOLD", "5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 20, cfg.Pool.WorkerCount)
	assert.Equal(t, 5, cfg.VRAM.CrashThreshold)
}

func TestLoad_InvalidDBPortFallsThroughAsError(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_PORT", "not-a-number")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PORT")
}

func TestConfig_StoreConfigAdapts(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "nexus_prod")

	cfg, err := Load("")
	require.NoError(t, err)

	sc := cfg.StoreConfig()
	assert.Equal(t, "db.internal", sc.Host)
	assert.Equal(t, "nexus_prod", sc.Database)
	assert.Equal(t, "secret", sc.Password)
}
