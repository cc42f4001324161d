package vram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nexuscore/nexus/internal/profile"
)

func loadedAt(id string, priority profile.Priority, sizeGB float64, age time.Duration, external bool) LoadedModel {
	return LoadedModel{
		ModelID:      id,
		SizeGB:       sizeGB,
		Priority:     priority,
		LastAccessed: time.Now().Add(-age),
		IsExternal:   external,
	}
}

func TestNewEvictionSelector_DefaultsToHybrid(t *testing.T) {
	assert.IsType(t, hybridSelector{}, NewEvictionSelector(""))
	assert.IsType(t, hybridSelector{}, NewEvictionSelector("unknown"))
	assert.IsType(t, lruSelector{}, NewEvictionSelector("lru"))
	assert.IsType(t, prioritySelector{}, NewEvictionSelector("priority"))
}

func TestHybridSelector_NeverEvictsCriticalOrExternal(t *testing.T) {
	loaded := []LoadedModel{
		loadedAt("critical-model", profile.PriorityCritical, 10, time.Hour, false),
		loadedAt("external-model", profile.PriorityLow, 10, time.Hour, true),
		loadedAt("normal-model", profile.PriorityNormal, 4, time.Minute, false),
	}

	victims, ok := hybridSelector{}.SelectVictims(loaded, 3)
	assert.True(t, ok)
	assert.Equal(t, []string{"normal-model"}, victims)
}

func TestHybridSelector_PrefersLowerPriorityThenOlderAccess(t *testing.T) {
	loaded := []LoadedModel{
		loadedAt("high-old", profile.PriorityHigh, 4, 2*time.Hour, false),
		loadedAt("low-new", profile.PriorityLow, 4, time.Minute, false),
		loadedAt("low-old", profile.PriorityLow, 4, time.Hour, false),
	}

	victims, ok := hybridSelector{}.SelectVictims(loaded, 4)
	assert.True(t, ok)
	assert.Equal(t, []string{"low-old"}, victims, "lower priority and older access should be evicted before a higher-priority model")
}

func TestHybridSelector_InsufficientCandidatesReturnsFalse(t *testing.T) {
	loaded := []LoadedModel{
		loadedAt("critical-model", profile.PriorityCritical, 100, time.Hour, false),
	}

	victims, ok := hybridSelector{}.SelectVictims(loaded, 50)
	assert.False(t, ok)
	assert.Empty(t, victims)
}

func TestLRUSelector_OrdersByAgeOnly(t *testing.T) {
	loaded := []LoadedModel{
		loadedAt("high-new", profile.PriorityHigh, 4, time.Minute, false),
		loadedAt("low-old", profile.PriorityLow, 4, time.Hour, false),
	}

	victims, ok := lruSelector{}.SelectVictims(loaded, 4)
	assert.True(t, ok)
	assert.Equal(t, []string{"low-old"}, victims)
}

func TestPrioritySelector_IgnoresAge(t *testing.T) {
	loaded := []LoadedModel{
		loadedAt("high-old", profile.PriorityHigh, 4, 5*time.Hour, false),
		loadedAt("low-new", profile.PriorityLow, 4, time.Minute, false),
	}

	victims, ok := prioritySelector{}.SelectVictims(loaded, 4)
	assert.True(t, ok)
	assert.Equal(t, []string{"low-new"}, victims, "priority selector must evict lowest-priority regardless of age")
}
