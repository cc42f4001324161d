package vram

import (
	"sync"
	"time"
)

// crashEntry is one recorded crash within the sliding window.
type crashEntry struct {
	at     time.Time
	reason string
}

// CrashTracker maintains a per-model bounded crash history within a
// sliding window (spec.md §4.2.4 / §3 CrashRecord). Grounded on the
// teacher's pkg/mcp/health.go statuses-map shape: a plain map guarded by
// one mutex, defensive reads.
type CrashTracker struct {
	mu        sync.Mutex
	window    time.Duration
	threshold int
	history   map[string][]crashEntry
}

// NewCrashTracker builds a tracker with the given sliding window and
// crash-count threshold (VRAM_CRASH_WINDOW_SECONDS / VRAM_CRASH_THRESHOLD).
func NewCrashTracker(window time.Duration, threshold int) *CrashTracker {
	return &CrashTracker{
		window:    window,
		threshold: threshold,
		history:   make(map[string][]crashEntry),
	}
}

// Record appends a crash and returns the count of crashes still within
// the window after pruning expired entries.
func (c *CrashTracker) Record(modelID, reason string, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := append(c.prune(c.history[modelID], now), crashEntry{at: now, reason: reason})
	c.history[modelID] = entries
	return len(entries)
}

// CountWithin returns the number of crashes for modelID still within
// the window as of now, pruning expired entries as a side effect.
func (c *CrashTracker) CountWithin(modelID string, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.prune(c.history[modelID], now)
	c.history[modelID] = entries
	return len(entries)
}

func (c *CrashTracker) prune(entries []crashEntry, now time.Time) []crashEntry {
	cutoff := now.Add(-c.window)
	out := entries[:0:0]
	for _, e := range entries {
		if e.at.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// NeedsProtection reports whether modelID's crash count within the
// window is at or above the configured threshold (spec.md §3: "A model
// whose record size ≥ threshold within the window is in 'needs
// protection' state").
func (c *CrashTracker) NeedsProtection(modelID string, now time.Time) bool {
	return c.CountWithin(modelID, now) >= c.threshold
}
