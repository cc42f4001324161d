package vram

import (
	"time"

	"github.com/nexuscore/nexus/internal/profile"
)

// LoadedModel is the orchestrator's view of one resident model.
// Invariant: Σ SizeGB over non-external LoadedModel ≤ profile hard_limit.
type LoadedModel struct {
	ModelID      string
	Backend      string
	SizeGB       float64
	Priority     profile.Priority
	LoadedAt     time.Time
	LastAccessed time.Time
	IsExternal   bool // pre-loaded, never counted against budget, never evicted
}

// MemorySample is one reading of the host's memory pressure.
type MemorySample struct {
	TotalGB       float64
	UsedGB        float64
	AvailableGB   float64
	UsagePct      float64
	PSISomeAvg10  float64
	PSIFullAvg10  float64
}

// Status is the point-in-time snapshot returned by GetStatus.
type Status struct {
	Loaded          []LoadedModel
	Memory          MemorySample
	FallbackActive  bool
	FallbackProfile string // the profile we fell back FROM, empty if not in fallback
}

// PriorityRank maps a priority to its eviction rank; higher rank is
// evicted first. CRITICAL is never a candidate regardless of rank.
func PriorityRank(p profile.Priority) int {
	switch p {
	case profile.PriorityLow:
		return 4
	case profile.PriorityNormal:
		return 3
	case profile.PriorityHigh:
		return 2
	case profile.PriorityCritical:
		return 1
	default:
		return 3
	}
}
