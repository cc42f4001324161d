package vram

import (
	"sort"
)

// EvictionSelector chooses victims to free `required` GB given the
// current loaded set. Pure function: no side effects, no I/O.
//
// Alternative strategies must be selectable by configuration without
// touching the orchestrator (spec.md §4.2.2) — register by name in
// NewEvictionSelector.
type EvictionSelector interface {
	SelectVictims(loaded []LoadedModel, toFree float64) (victims []string, ok bool)
}

// NewEvictionSelector looks up a selector by name, defaulting to hybrid.
func NewEvictionSelector(name string) EvictionSelector {
	switch name {
	case "lru":
		return lruSelector{}
	case "priority":
		return prioritySelector{}
	default:
		return hybridSelector{}
	}
}

func evictable(loaded []LoadedModel) []LoadedModel {
	out := make([]LoadedModel, 0, len(loaded))
	for _, m := range loaded {
		if m.IsExternal || PriorityRank(m.Priority) == 1 {
			continue // external models and CRITICAL models are never candidates
		}
		out = append(out, m)
	}
	return out
}

func walk(candidates []LoadedModel, toFree float64) ([]string, bool) {
	var victims []string
	var freed float64
	for _, m := range candidates {
		if freed >= toFree {
			break
		}
		victims = append(victims, m.ModelID)
		freed += m.SizeGB
	}
	return victims, freed >= toFree
}

// hybridSelector orders by (priority_rank_desc, last_accessed_asc),
// tie-broken by larger size first. This is the default eviction
// strategy (spec.md §4.2.2).
type hybridSelector struct{}

func (hybridSelector) SelectVictims(loaded []LoadedModel, toFree float64) ([]string, bool) {
	candidates := evictable(loaded)
	sort.Slice(candidates, func(i, j int) bool {
		ri, rj := PriorityRank(candidates[i].Priority), PriorityRank(candidates[j].Priority)
		if ri != rj {
			return ri > rj
		}
		if !candidates[i].LastAccessed.Equal(candidates[j].LastAccessed) {
			return candidates[i].LastAccessed.Before(candidates[j].LastAccessed)
		}
		return candidates[i].SizeGB > candidates[j].SizeGB
	})
	return walk(candidates, toFree)
}

// lruSelector orders purely by last-accessed ascending (oldest first),
// still excluding CRITICAL and external models.
type lruSelector struct{}

func (lruSelector) SelectVictims(loaded []LoadedModel, toFree float64) ([]string, bool) {
	candidates := evictable(loaded)
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].LastAccessed.Before(candidates[j].LastAccessed)
	})
	return walk(candidates, toFree)
}

// prioritySelector orders purely by priority rank descending, ignoring
// age entirely (ties broken by original order).
type prioritySelector struct{}

func (prioritySelector) SelectVictims(loaded []LoadedModel, toFree float64) ([]string, bool) {
	candidates := evictable(loaded)
	sort.SliceStable(candidates, func(i, j int) bool {
		return PriorityRank(candidates[i].Priority) > PriorityRank(candidates[j].Priority)
	})
	return walk(candidates, toFree)
}
