// Package vram implements the VRAM Orchestrator: admits model loads
// against a finite GPU memory budget, chooses eviction victims,
// coordinates multiple inference backends, and enforces a crash circuit
// breaker with automatic profile fallback.
//
// Grounded on pkg/mcp/client.go (locked maps, per-key mutex via
// sync.Map, composite dispatch, documented lock ordering) and
// pkg/mcp/recovery.go (RecoveryAction classification → here, the
// circuit-breaker/fallback classification).
package vram

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nexuscore/nexus/internal/errs"
	"github.com/nexuscore/nexus/internal/profile"
	"github.com/nexuscore/nexus/internal/vram/backend"
)

// FallbackHook is invoked when a CRITICAL model's crash count trips the
// circuit breaker. Implemented by the profile-recovery controller
// (recovery.go); kept as an interface so Orchestrator has no direct
// dependency on the profile registry's switch mechanics.
type FallbackHook interface {
	OnCircuitBreakerTripped(ctx context.Context, modelID string, crashCount int)
}

// Orchestrator owns all LoadedModel state (spec.md §3 ownership rule).
// All mutations happen under mu; GetStatus returns a consistent
// point-in-time snapshot (spec.md §5).
type Orchestrator struct {
	mu     sync.Mutex
	loaded map[string]LoadedModel

	profiles  *profile.Registry
	sampler   MemorySampler
	composite *backend.Composite
	selector  EvictionSelector
	crashes   *CrashTracker
	fallback  FallbackHook

	crashThreshold int
}

// Config bundles Orchestrator construction parameters.
type Config struct {
	Profiles       *profile.Registry
	Sampler        MemorySampler
	Composite      *backend.Composite
	Selector       EvictionSelector
	CrashWindow    time.Duration
	CrashThreshold int
	Fallback       FallbackHook
}

// New builds an Orchestrator. Selector defaults to the hybrid strategy
// if nil.
func New(cfg Config) *Orchestrator {
	selector := cfg.Selector
	if selector == nil {
		selector = NewEvictionSelector("hybrid")
	}
	return &Orchestrator{
		loaded:         make(map[string]LoadedModel),
		profiles:       cfg.Profiles,
		sampler:        cfg.Sampler,
		composite:      cfg.Composite,
		selector:       selector,
		crashes:        NewCrashTracker(cfg.CrashWindow, cfg.CrashThreshold),
		fallback:       cfg.Fallback,
		crashThreshold: cfg.CrashThreshold,
	}
}

// currentUsage sums non-external loaded model sizes. Caller must hold mu.
func (o *Orchestrator) currentUsage() float64 {
	var total float64
	for _, m := range o.loaded {
		if !m.IsExternal {
			total += m.SizeGB
		}
	}
	return total
}

// EnsureLoaded makes modelID resident. If already loaded, updates the
// LRU timestamp and returns. Otherwise admits under budget (evicting if
// necessary) and instructs the backend to load (spec.md §4.2, §4.2.1).
func (o *Orchestrator) EnsureLoaded(ctx context.Context, modelID string, priorityOverride *profile.Priority) error {
	cap := o.profiles.Capability(modelID)
	prio := cap.Priority
	if priorityOverride != nil {
		prio = *priorityOverride
	}

	o.mu.Lock()
	if existing, ok := o.loaded[modelID]; ok {
		existing.LastAccessed = time.Now()
		o.loaded[modelID] = existing
		o.mu.Unlock()
		return nil
	}

	active := o.profiles.Active()
	hard := active.VRAMHardLimitGB
	current := o.currentUsage()
	required := cap.VRAMSizeGB

	if current+required > hard {
		toFree := current + required - hard
		loadedSnapshot := o.snapshotLocked()
		victims, ok := o.selector.SelectVictims(loadedSnapshot, toFree)
		if !ok {
			o.mu.Unlock()
			return errs.New(errs.KindOverBudget, "insufficient evictable capacity", nil)
		}
		// Perform backend unloads while NOT holding mu (I/O under lock is
		// forbidden by the shared-resource policy, spec.md §5), so drop
		// the lock, evict, then re-acquire to finish admission bookkeeping.
		o.mu.Unlock()
		if large := required > 20; large {
			FlushBufferCache()
		}
		for _, v := range victims {
			if err := o.unloadOne(ctx, v); err != nil {
				slog.Error("eviction unload failed", "model", v, "error", err)
			}
		}
		o.mu.Lock()
	}

	// Re-check after possible eviction: another goroutine could have
	// raced admission for a different model in between.
	current = o.currentUsage()
	if current+required > hard {
		o.mu.Unlock()
		return errs.New(errs.KindOverBudget, "budget exceeded after eviction attempt", nil)
	}
	o.mu.Unlock()

	if err := o.composite.Load(ctx, cap.Backend, modelID); err != nil {
		return errs.New(errs.KindBackendUnavailable, "backend load failed", err)
	}

	o.mu.Lock()
	o.loaded[modelID] = LoadedModel{
		ModelID:      modelID,
		Backend:      cap.Backend,
		SizeGB:       required,
		Priority:     prio,
		LoadedAt:     time.Now(),
		LastAccessed: time.Now(),
	}
	o.mu.Unlock()
	return nil
}

// unloadOne unloads a single model via its backend and removes it from
// the loaded map. Does not hold mu during the backend call.
func (o *Orchestrator) unloadOne(ctx context.Context, modelID string) error {
	o.mu.Lock()
	m, ok := o.loaded[modelID]
	o.mu.Unlock()
	if !ok {
		return nil
	}
	if err := o.composite.Unload(ctx, m.Backend, modelID); err != nil {
		return err
	}
	o.mu.Lock()
	delete(o.loaded, modelID)
	o.mu.Unlock()
	return nil
}

// Unload explicitly unloads modelID regardless of priority (spec.md §6
// admin command "model load/unload"), unlike EmergencyEvict which
// chooses a victim by priority band.
func (o *Orchestrator) Unload(ctx context.Context, modelID string) error {
	if err := o.unloadOne(ctx, modelID); err != nil {
		return errs.New(errs.KindBackendUnavailable, "unload failed", err)
	}
	return nil
}

// MarkAsUnloaded is the backend-agnostic unload entry point (spec.md
// §4.2). It removes the bookkeeping entry; the caller is responsible
// for having already asked the right backend to unload, or use
// unloadOne semantics via EmergencyEvict.
func (o *Orchestrator) MarkAsUnloaded(modelID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.loaded, modelID)
}

// EmergencyEvict evicts one model with priority ≥ belowPriority (lowest
// priority, i.e. highest PriorityRank, first among eligible; oldest
// access breaks ties), per spec.md §4.2.
func (o *Orchestrator) EmergencyEvict(ctx context.Context, belowPriority profile.Priority) (string, error) {
	o.mu.Lock()
	var candidates []LoadedModel
	threshold := PriorityRank(belowPriority)
	for _, m := range o.loaded {
		if m.IsExternal || PriorityRank(m.Priority) == 1 {
			continue
		}
		if PriorityRank(m.Priority) >= threshold {
			candidates = append(candidates, m)
		}
	}
	o.mu.Unlock()

	if len(candidates) == 0 {
		return "", errs.New(errs.KindOverBudget, "no eligible model to evict", nil)
	}
	victim := candidates[0]
	for _, c := range candidates[1:] {
		rc, rv := PriorityRank(c.Priority), PriorityRank(victim.Priority)
		if rc > rv || (rc == rv && c.LastAccessed.Before(victim.LastAccessed)) {
			victim = c
		}
	}
	if err := o.unloadOne(ctx, victim.ModelID); err != nil {
		return "", errs.New(errs.KindBackendUnavailable, "emergency evict failed", err)
	}
	return victim.ModelID, nil
}

// RecordCrash increments the crash counter for modelID and, if it is
// CRITICAL in the active profile and the count within the window is ≥
// threshold, invokes the fallback hook (spec.md §4.2.4).
func (o *Orchestrator) RecordCrash(ctx context.Context, modelID, reason string) {
	now := time.Now()
	count := o.crashes.Record(modelID, reason, now)

	cap := o.profiles.Capability(modelID)
	if cap.Priority != profile.PriorityCritical {
		return
	}
	if count >= o.crashThreshold && o.fallback != nil {
		o.fallback.OnCircuitBreakerTripped(ctx, modelID, count)
	}
}

func (o *Orchestrator) snapshotLocked() []LoadedModel {
	out := make([]LoadedModel, 0, len(o.loaded))
	for _, m := range o.loaded {
		out = append(out, m)
	}
	return out
}

// GetStatus returns a consistent point-in-time snapshot of loaded
// models plus a fresh memory sample (spec.md §4.2).
func (o *Orchestrator) GetStatus(ctx context.Context) (Status, error) {
	o.mu.Lock()
	loaded := o.snapshotLocked()
	o.mu.Unlock()

	mem, err := o.sampler.Sample(ctx)
	if err != nil {
		return Status{}, err
	}
	st := Status{Loaded: loaded, Memory: mem}
	if rc, ok := o.fallback.(*RecoveryController); ok && rc != nil {
		st.FallbackActive, st.FallbackProfile = rc.FallbackActive()
	}
	return st, nil
}

// RegisterExternal marks a backend-reported model as externally loaded
// (spec.md §4.2.3): counted in status, excluded from eviction and
// budget math.
func (o *Orchestrator) RegisterExternal(modelID, backendType string, sizeGB float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.loaded[modelID]; ok {
		return
	}
	o.loaded[modelID] = LoadedModel{
		ModelID: modelID, Backend: backendType, SizeGB: sizeGB,
		IsExternal: true, LoadedAt: time.Now(), LastAccessed: time.Now(),
	}
}
