package profile

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrInvalidProfile is returned by Validate and Switch when a profile
// fails the roster/limit invariants (spec.md §4.1).
type ErrInvalidProfile struct {
	Profile string
	Reason  string
}

func (e *ErrInvalidProfile) Error() string {
	return fmt.Sprintf("invalid profile %q: %s", e.Profile, e.Reason)
}

// Registry holds the full set of declared profiles and the currently
// active one. Switching is atomic: readers of Active() never observe a
// partially-switched profile, matching spec.md §4.1/§5 ("switching is
// atomic; in-flight reads see the old profile consistently").
//
// Grounded on pkg/config/llm.go's LLMProviderRegistry (map + RWMutex,
// defensive-copy accessors); the hot-swap itself uses atomic.Pointer so
// readers never block on the registry mutex at all.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile

	active atomic.Pointer[Profile]

	// defaultRegistry is the fallback roster consulted when a model_id is
	// not found in the active profile (spec.md §4.1: "Unknown model
	// lookups fall back to a default registry of commonly available
	// models; if still unknown, a generic NORMAL-priority capability is
	// synthesized").
	defaultRegistry map[string]ModelCapability
}

// NewRegistry builds a Registry with the given profiles (by name) and an
// initially active profile name. Returns *ErrInvalidProfile if activeName
// is unknown or fails validation.
func NewRegistry(profiles []*Profile, activeName string, defaults map[string]ModelCapability) (*Registry, error) {
	r := &Registry{
		profiles:        make(map[string]*Profile, len(profiles)),
		defaultRegistry: defaults,
	}
	for _, p := range profiles {
		if err := Validate(p); err != nil {
			return nil, err
		}
		r.profiles[p.Name] = p
	}
	active, ok := r.profiles[activeName]
	if !ok {
		return nil, &ErrInvalidProfile{Profile: activeName, Reason: "not found in loaded profiles"}
	}
	r.active.Store(active)
	return r, nil
}

// Validate checks the load-time invariants: every role's model must
// exist in the roster, and soft_limit ≤ hard_limit.
func Validate(p *Profile) error {
	if err := validate.Struct(p); err != nil {
		return &ErrInvalidProfile{Profile: p.Name, Reason: err.Error()}
	}
	if p.VRAMSoftLimitGB > p.VRAMHardLimitGB {
		return &ErrInvalidProfile{Profile: p.Name, Reason: "soft_limit must be <= hard_limit"}
	}
	for _, role := range AllRoles {
		modelID, ok := p.RoleModel[role]
		if !ok {
			return &ErrInvalidProfile{Profile: p.Name, Reason: fmt.Sprintf("role %q has no model mapping", role)}
		}
		if _, ok := p.Capability(modelID); !ok {
			return &ErrInvalidProfile{Profile: p.Name, Reason: fmt.Sprintf("role %q maps to model %q not in roster", role, modelID)}
		}
	}
	return nil
}

// Active returns the currently active profile. Never blocks.
func (r *Registry) Active() *Profile {
	return r.active.Load()
}

// Switch atomically makes `name` the active profile. Returns
// *ErrInvalidProfile if name is unknown.
func (r *Registry) Switch(name string) error {
	r.mu.RLock()
	p, ok := r.profiles[name]
	r.mu.RUnlock()
	if !ok {
		return &ErrInvalidProfile{Profile: name, Reason: "not found in loaded profiles"}
	}
	r.active.Store(p)
	return nil
}

// Register adds or replaces a profile definition (used for hot reload).
func (r *Registry) Register(p *Profile) error {
	if err := Validate(p); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.Name] = p
	return nil
}

// Names returns the known profile names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.profiles))
	for n := range r.profiles {
		names = append(names, n)
	}
	return names
}

// Capability resolves a model's capability in the active profile,
// falling back to the default registry, and finally synthesizing a
// generic NORMAL-priority capability with conservative defaults
// (spec.md §4.1).
func (r *Registry) Capability(modelID string) ModelCapability {
	active := r.Active()
	if cap, ok := active.Capability(modelID); ok {
		return cap
	}
	if cap, ok := r.defaultRegistry[modelID]; ok {
		return cap
	}
	return ModelCapability{
		Name:          modelID,
		Backend:       "ollama",
		VRAMSizeGB:    4,
		Priority:      PriorityNormal,
		ContextWindow: 4096,
	}
}
