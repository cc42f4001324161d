package healthloop

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// logDateFormat matches spec.md §6's LOG_BASE_DIR layout:
// "LOG_BASE_DIR/YYYY-MM-DD/{app,debug,error}.log".
const logDateFormat = "2006-01-02"

// LogCleanupConfig parameterizes the cleanup loop (spec.md §4.7 / §6).
type LogCleanupConfig struct {
	BaseDir         string
	RetentionDays   int
	CleanupInterval time.Duration // LOG_CLEANUP_INTERVAL_HOURS, default 6h
}

// DefaultLogCleanupConfig matches spec.md's stated default interval.
func DefaultLogCleanupConfig(baseDir string, retentionDays int) LogCleanupConfig {
	return LogCleanupConfig{BaseDir: baseDir, RetentionDays: retentionDays, CleanupInterval: 6 * time.Hour}
}

// LogCleaner walks LOG_BASE_DIR, parses each subdirectory name as
// YYYY-MM-DD, and recursively removes directories older than
// RetentionDays (spec.md §4.7). Grounded on
// original_source/monitoring-service/log_cleanup.py's LogCleanup: a
// non-date directory is skipped (logged at debug level) rather than
// treated as an error.
type LogCleaner struct {
	cfg LogCleanupConfig

	cancel context.CancelFunc
	done   chan struct{}
}

// NewLogCleaner builds a cleaner for the given config.
func NewLogCleaner(cfg LogCleanupConfig) *LogCleaner {
	return &LogCleaner{cfg: cfg}
}

// Start launches the cleanup loop. A no-op if already running.
func (c *LogCleaner) Start(ctx context.Context) {
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.loop(ctx)
}

// Stop halts the loop and waits for it to exit.
func (c *LogCleaner) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil
}

func (c *LogCleaner) loop(ctx context.Context) {
	defer close(c.done)

	// Let the service finish starting up before the first sweep
	// (log_cleanup.py: "Wait a bit before first cleanup").
	select {
	case <-time.After(time.Minute):
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		c.sweep()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sweep runs one cleanup pass. Permission errors are logged with a
// suggested remediation and never abort the pass (spec.md §4.7).
func (c *LogCleaner) sweep() {
	entries, err := os.ReadDir(c.cfg.BaseDir)
	if err != nil {
		slog.Warn("log cleanup: base directory unreadable", "dir", c.cfg.BaseDir, "error", err)
		return
	}

	cutoff := time.Now().AddDate(0, 0, -c.cfg.RetentionDays)
	deleted, freedBytes := 0, int64(0)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirDate, err := time.Parse(logDateFormat, entry.Name())
		if err != nil {
			slog.Debug("log cleanup: skipping non-date directory", "name", entry.Name())
			continue
		}
		if !dirDate.Before(cutoff) {
			continue
		}

		path := filepath.Join(c.cfg.BaseDir, entry.Name())
		size := dirSize(path)
		if err := os.RemoveAll(path); err != nil {
			slog.Error("log cleanup: failed to delete directory, check filesystem permissions for the orchestrator user",
				"dir", path, "error", err)
			continue
		}
		deleted++
		freedBytes += size
	}

	if deleted > 0 {
		slog.Info("log cleanup complete", "deleted_dirs", deleted, "freed_bytes", freedBytes)
	}
}

func dirSize(path string) int64 {
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		return nil
	})
	return total
}
