// Package profile holds the active hardware/model profile: the model
// roster with capabilities, VRAM limits, and the role-to-model map that
// the router and VRAM orchestrator consult on every request.
package profile

import "time"

// Priority is the eviction priority band a loaded model is assigned.
// The numerically larger rank (the lower priority, LOW) is evicted
// first; see vram.PriorityRank.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityNormal   Priority = "NORMAL"
	PriorityLow      Priority = "LOW"
)

// Role is one of the named model slots a profile must fill.
type Role string

const (
	RoleRouter              Role = "router"
	RoleSimpleCoder         Role = "simple_coder"
	RoleComplexCoder        Role = "complex_coder"
	RoleReasoning           Role = "reasoning"
	RoleResearch            Role = "research"
	RoleMath                Role = "math"
	RoleVision              Role = "vision"
	RoleEmbedding           Role = "embedding"
	RoleSummarization       Role = "summarization"
	RoleArtifactDetection   Role = "artifact_detection"
	RoleArtifactExtraction  Role = "artifact_extraction"
)

// AllRoles enumerates every role a profile must resolve. Used by
// validation to ensure no role is left unmapped.
var AllRoles = []Role{
	RoleRouter, RoleSimpleCoder, RoleComplexCoder, RoleReasoning, RoleResearch,
	RoleMath, RoleVision, RoleEmbedding, RoleSummarization,
	RoleArtifactDetection, RoleArtifactExtraction,
}

// ModelCapability describes one model in a profile's roster.
type ModelCapability struct {
	Name            string        `yaml:"name" validate:"required"`
	Backend         string        `yaml:"backend" validate:"required"`
	VRAMSizeGB      float64       `yaml:"vram_size_gb" validate:"required,gt=0"`
	Priority        Priority      `yaml:"priority" validate:"required"`
	SupportsTools   bool          `yaml:"supports_tools"`
	SupportsThinking bool         `yaml:"supports_thinking"`
	ThinkingFormat  string        `yaml:"thinking_format,omitempty"`
	ContextWindow   int           `yaml:"context_window"`
	KeepAlive       time.Duration `yaml:"keep_alive"`
}

// FetchLimits bounds how many results a route's tools may return.
type FetchLimits struct {
	MaxResults  int `yaml:"max_results"`
	MaxBytes    int `yaml:"max_bytes"`
}

// Profile is a named bundle of {model roster, VRAM limits, role→model
// map, fetch limits} representing a target hardware configuration.
type Profile struct {
	Name              string                      `yaml:"name" validate:"required"`
	Roster            []ModelCapability           `yaml:"roster" validate:"required,dive"`
	VRAMSoftLimitGB   float64                     `yaml:"vram_soft_limit_gb" validate:"required,gt=0"`
	VRAMHardLimitGB   float64                     `yaml:"vram_hard_limit_gb" validate:"required,gt=0"`
	RoleModel         map[Role]string             `yaml:"role_model" validate:"required"`
	FetchLimitsByRoute map[string]FetchLimits      `yaml:"fetch_limits,omitempty"`
}

// Capability looks up a roster entry by model id.
func (p *Profile) Capability(modelID string) (ModelCapability, bool) {
	for _, m := range p.Roster {
		if m.Name == modelID {
			return m, true
		}
	}
	return ModelCapability{}, false
}

// ModelForRole resolves the model id assigned to a role.
func (p *Profile) ModelForRole(role Role) (string, bool) {
	id, ok := p.RoleModel[role]
	return id, ok
}
