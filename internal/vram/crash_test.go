package vram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCrashTracker_NeedsProtectionAtThreshold(t *testing.T) {
	tracker := NewCrashTracker(10*time.Minute, 3)
	now := time.Now()

	assert.Equal(t, 1, tracker.Record("model-a", "oom", now))
	assert.False(t, tracker.NeedsProtection("model-a", now))

	assert.Equal(t, 2, tracker.Record("model-a", "oom", now.Add(time.Minute)))
	assert.False(t, tracker.NeedsProtection("model-a", now.Add(time.Minute)))

	assert.Equal(t, 3, tracker.Record("model-a", "oom", now.Add(2*time.Minute)))
	assert.True(t, tracker.NeedsProtection("model-a", now.Add(2*time.Minute)))
}

func TestCrashTracker_WindowPruning(t *testing.T) {
	tracker := NewCrashTracker(10*time.Minute, 2)
	now := time.Now()

	tracker.Record("model-a", "oom", now)
	count := tracker.CountWithin("model-a", now.Add(15*time.Minute))
	assert.Equal(t, 0, count, "crashes outside the window must not count")
}

func TestCrashTracker_PerModelIsolation(t *testing.T) {
	tracker := NewCrashTracker(10*time.Minute, 2)
	now := time.Now()

	tracker.Record("model-a", "oom", now)
	tracker.Record("model-a", "oom", now)

	assert.True(t, tracker.NeedsProtection("model-a", now))
	assert.False(t, tracker.NeedsProtection("model-b", now), "crash history must not leak across models")
}
