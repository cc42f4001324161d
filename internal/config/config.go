// Package config loads every environment knob the orchestrator's
// composition root needs (spec.md §6 "Environment knobs") into typed
// component configs. Grounded on pkg/database/config.go's
// getEnvOrDefault + typed-Config-per-concern shape; cmd/tarsy/main.go's
// CONFIG_DIR-relative godotenv.Load() supplies the .env loading step
// itself.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/nexuscore/nexus/internal/healthloop"
	"github.com/nexuscore/nexus/internal/queue"
	"github.com/nexuscore/nexus/internal/store"
	"github.com/nexuscore/nexus/internal/vram"
)

// Config bundles every component's settings, resolved once at startup.
type Config struct {
	HTTPAddr string

	Store Store

	Queue      queue.Config
	Pool       queue.PoolConfig
	Health     healthloop.Config
	Metrics    healthloop.MetricsWriterConfig
	LogCleanup healthloop.LogCleanupConfig

	VRAM VRAM

	ProfileDir    string
	ActiveProfile string

	OllamaHost     string
	SGLangEndpoint string
	LLMBackendAddr string
}

// Store mirrors store.Config's fields; kept distinct so this package
// does not need to know store.Config's internal field order.
type Store struct {
	Host, User, Password, Database, SSLMode string
	Port                                    int
}

// VRAM holds the orchestrator's crash-circuit-breaker knobs. VRAM soft/
// hard limits live in the active profile's YAML instead (interpolated
// via ${VRAM_SOFT_LIMIT_GB}/${VRAM_HARD_LIMIT_GB} placeholders, see
// internal/profile/loader.go's expandEnv), so a profile can be deployed
// unmodified across hosts with different GPU budgets.
type VRAM struct {
	CrashThreshold int
	CrashWindow    time.Duration
}

// Load reads envPath (if present) into the process environment, then
// resolves every knob with the defaults spec.md §6 documents.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Fprintf(os.Stderr, "config: no .env file at %s, using process environment\n", envPath)
		}
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	cfg := &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		Store: Store{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "nexus"),
			Password: os.Getenv("DB_PASSWORD"),
			Database: getEnv("DB_NAME", "nexus"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		Queue: queue.Config{
			MaxQueueSize:      mustInt("MAX_QUEUE_SIZE", 1000),
			MaxRetries:        mustInt("MAX_RETRIES", 3),
			RetryDelay:        mustSeconds("RETRY_DELAY", 2*time.Second),
			VisibilityTimeout: mustSeconds("VISIBILITY_TIMEOUT", 10*time.Second),
			RetentionSize:     500,
		},
		Pool: queue.PoolConfig{
			WorkerCount:             mustInt("WORKER_COUNT", 5),
			PollInterval:            1 * time.Second,
			PollIntervalJitter:      500 * time.Millisecond,
			GracefulShutdownTimeout: 15 * time.Minute,
		},

		Health: healthloop.Config{
			CheckInterval:  mustSeconds("HEALTH_CHECK_INTERVAL_SECONDS", 5*time.Second),
			AlertThreshold: mustInt("HEALTH_CHECK_ALERT_THRESHOLD", 3),
			AlertCooldown:  mustSeconds("HEALTH_CHECK_ALERT_COOLDOWN_SECONDS", 5*time.Minute),
		},
		Metrics: healthloop.MetricsWriterConfig{
			WriteInterval: mustSeconds("METRICS_WRITE_INTERVAL_SECONDS", 5*time.Second),
			RetentionDays: mustInt("METRICS_RETENTION_DAYS", 30),
		},
		LogCleanup: healthloop.DefaultLogCleanupConfig(
			getEnv("LOG_BASE_DIR", "./logs"),
			mustInt("LOG_RETENTION_DAYS", 14),
		),

		VRAM: VRAM{
			CrashThreshold: mustInt("VRAM_CRASH_THRESHOLD", 3),
			CrashWindow:    mustSeconds("VRAM_CRASH_WINDOW_SECONDS", 10*time.Minute),
		},

		ProfileDir:    getEnv("PROFILE_DIR", "./profiles"),
		ActiveProfile: getEnv("ACTIVE_PROFILE", "default"),

		OllamaHost:     getEnv("OLLAMA_HOST", "http://localhost:11434"),
		SGLangEndpoint: getEnv("SGLANG_ENDPOINT", ""),
		LLMBackendAddr: getEnv("LLM_BACKEND_ADDR", "localhost:9090"),
	}
	cfg.LogCleanup.CleanupInterval = mustSeconds("LOG_CLEANUP_INTERVAL_HOURS", 6*time.Hour)

	if cfg.Store.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	return cfg, nil
}

// StoreConfig adapts Config.Store to store.Config's concrete shape.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Host: c.Store.Host, Port: c.Store.Port, User: c.Store.User,
		Password: c.Store.Password, Database: c.Store.Database, SSLMode: c.Store.SSLMode,
		MaxConns: 10, MinConns: 2, MaxConnLifetime: time.Hour, MaxConnIdleTime: 15 * time.Minute,
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// mustSeconds parses an env var given in bare seconds (or hours, for the
// *_HOURS knobs — the unit is baked into the default passed by the
// caller) into a Duration, defaulting to def on absence or parse error.
func mustSeconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	unit := time.Second
	if def >= time.Hour {
		unit = time.Hour
	}
	return time.Duration(n) * unit
}
