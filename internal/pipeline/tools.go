package pipeline

import "sync"

// ToolRegistry holds the tools an agent may call (spec.md §4.5).
// Registered at startup, looked up by name (spec.md §9: "register
// instances at startup; look up by name"). ask_user (asktool.go) is the
// only tool implemented in this module and the only one cmd/nexusd
// registers.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry builds an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool.
func (r *ToolRegistry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

// Get looks up a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns the tool set in the shape the model needs for
// function-calling.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, ToolDefinition{Name: t.Name, Description: t.Description, Schema: t.Schema})
	}
	return defs
}
