package pipeline

import (
	"context"
	"log/slog"
	"sync"
)

// Strategy is one named pre/postprocess step (e.g. a custom sanitizer, a
// route-specific enrichment). Grounded on
// original_source/fastapi-service/app/services/strategy_registry.py's
// StrategyRegistry: register by name, execute by name, never raise —
// a lookup miss returns an empty result rather than an error.
type Strategy interface {
	Execute(ctx context.Context, execCtx *ExecutionContext, input map[string]any) ([]string, error)
}

// StrategyRegistry holds named pipeline strategies looked up by name at
// run time.
type StrategyRegistry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewStrategyRegistry builds an empty registry.
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{strategies: make(map[string]Strategy)}
}

// Register adds or replaces a named strategy.
func (r *StrategyRegistry) Register(name string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[name] = s
}

// Get looks up a strategy by name.
func (r *StrategyRegistry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	return s, ok
}

// ListNames returns every registered strategy name.
func (r *StrategyRegistry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	return names
}

// Execute runs name if registered; an unregistered name logs and returns
// an empty result rather than an error, matching the source registry's
// never-raise contract.
func (r *StrategyRegistry) Execute(ctx context.Context, execCtx *ExecutionContext, name string, input map[string]any) []string {
	strategy, ok := r.Get(name)
	if !ok {
		slog.Debug("strategy not registered, skipping", "name", name)
		return nil
	}
	out, err := strategy.Execute(ctx, execCtx, input)
	if err != nil {
		slog.Warn("strategy execution failed, skipping", "name", name, "error", err)
		return nil
	}
	return out
}
