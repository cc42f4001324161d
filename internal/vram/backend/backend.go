// Package backend implements the composite inference-backend dispatch
// used by the VRAM orchestrator: a manager per backend type (ollama,
// sglang, vllm, tensorrt), routed by the model's Backend field.
//
// Grounded on pkg/mcp/client.go's per-server session/client maps and
// composite dispatch, and on original_source/admin-service/app/
// backend_registry.py + response_parsers.py (per-backend parser
// strategy, registry-as-SSOT).
package backend

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Manager is the per-backend I/O contract. Implementations talk to one
// inference backend's control API (load/unload/list models/health).
type Manager interface {
	// Load instructs the backend to make modelID resident.
	Load(ctx context.Context, modelID string) error
	// Unload instructs the backend to evict modelID from residency.
	Unload(ctx context.Context, modelID string) error
	// Cleanup performs backend-specific post-unload housekeeping
	// (e.g. the Ollama manager removes orphan shared-memory segments).
	Cleanup(ctx context.Context, modelID string) error
	// ListExternal returns model ids the backend reports as resident but
	// not loaded by this orchestrator (spec.md §4.2.3: "externally
	// loaded" models).
	ListExternal(ctx context.Context) ([]string, error)
	// Health probes the backend's own health endpoint.
	Health(ctx context.Context) error
}

// ErrUnknownBackend is returned when a model's Backend field has no
// registered Manager.
type ErrUnknownBackend struct {
	Backend string
}

func (e *ErrUnknownBackend) Error() string {
	return fmt.Sprintf("unknown backend type %q", e.Backend)
}

// Composite routes calls to the correct Manager by backend name, the
// same locked-map-keyed-by-id shape pkg/mcp/client.go uses for MCP
// server sessions.
type Composite struct {
	mu       sync.RWMutex
	managers map[string]Manager
}

// NewComposite builds an empty composite dispatcher; register backends
// with Register before use.
func NewComposite() *Composite {
	return &Composite{managers: make(map[string]Manager)}
}

// Register adds or replaces the Manager for a backend type.
func (c *Composite) Register(backendType string, m Manager) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.managers[backendType] = m
}

func (c *Composite) get(backendType string) (Manager, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.managers[backendType]
	if !ok {
		return nil, &ErrUnknownBackend{Backend: backendType}
	}
	return m, nil
}

func (c *Composite) Load(ctx context.Context, backendType, modelID string) error {
	m, err := c.get(backendType)
	if err != nil {
		return err
	}
	return m.Load(ctx, modelID)
}

func (c *Composite) Unload(ctx context.Context, backendType, modelID string) error {
	m, err := c.get(backendType)
	if err != nil {
		return err
	}
	if err := m.Unload(ctx, modelID); err != nil {
		return err
	}
	return m.Cleanup(ctx, modelID)
}

func (c *Composite) Health(ctx context.Context, backendType string) error {
	m, err := c.get(backendType)
	if err != nil {
		return err
	}
	return m.Health(ctx)
}

// ListExternal fans out to every registered backend concurrently and
// aggregates the models each reports as externally loaded. Partial
// failures from one backend do not prevent reporting the others,
// mirroring pkg/mcp/client.go's ListAllTools partial-failure tolerance.
func (c *Composite) ListExternal(ctx context.Context) map[string][]string {
	c.mu.RLock()
	snapshot := make(map[string]Manager, len(c.managers))
	for k, v := range c.managers {
		snapshot[k] = v
	}
	c.mu.RUnlock()

	var mu sync.Mutex
	out := make(map[string][]string, len(snapshot))

	g, gctx := errgroup.WithContext(ctx)
	for backendType, m := range snapshot {
		backendType, m := backendType, m
		g.Go(func() error {
			ids, err := m.ListExternal(gctx)
			if err != nil {
				return nil
			}
			mu.Lock()
			out[backendType] = ids
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // every goroutine swallows its own error; Wait only joins them

	return out
}
