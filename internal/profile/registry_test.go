package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoster() []ModelCapability {
	return []ModelCapability{
		{Name: "router-model", Backend: "ollama", VRAMSizeGB: 1, Priority: PriorityCritical},
		{Name: "coder-model", Backend: "ollama", VRAMSizeGB: 6, Priority: PriorityHigh},
		{Name: "vision-model", Backend: "ollama", VRAMSizeGB: 4, Priority: PriorityNormal},
	}
}

func roleMap(modelID string) map[Role]string {
	m := make(map[Role]string, len(AllRoles))
	for _, r := range AllRoles {
		m[r] = modelID
	}
	return m
}

func validProfile(name string) *Profile {
	return &Profile{
		Name:            name,
		Roster:          testRoster(),
		VRAMSoftLimitGB: 10,
		VRAMHardLimitGB: 12,
		RoleModel:       roleMap("router-model"),
	}
}

func TestValidate_MissingRoleMapping(t *testing.T) {
	p := validProfile("default")
	delete(p.RoleModel, RoleVision)

	err := Validate(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vision")
}

func TestValidate_RoleMapsToUnknownModel(t *testing.T) {
	p := validProfile("default")
	p.RoleModel[RoleMath] = "does-not-exist"

	err := Validate(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist")
}

func TestValidate_SoftLimitExceedsHardLimit(t *testing.T) {
	p := validProfile("default")
	p.VRAMSoftLimitGB = 20
	p.VRAMHardLimitGB = 10

	err := Validate(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "soft_limit")
}

func TestNewRegistry_UnknownActiveProfile(t *testing.T) {
	_, err := NewRegistry([]*Profile{validProfile("default")}, "missing", nil)
	require.Error(t, err)
	var target *ErrInvalidProfile
	require.ErrorAs(t, err, &target)
}

func TestRegistry_SwitchIsAtomicAndRejectsUnknown(t *testing.T) {
	conservative := validProfile("conservative")
	balanced := validProfile("balanced")

	reg, err := NewRegistry([]*Profile{conservative, balanced}, "conservative", nil)
	require.NoError(t, err)
	assert.Equal(t, "conservative", reg.Active().Name)

	require.NoError(t, reg.Switch("balanced"))
	assert.Equal(t, "balanced", reg.Active().Name)

	err = reg.Switch("nonexistent")
	require.Error(t, err)
	assert.Equal(t, "balanced", reg.Active().Name, "a failed switch must not disturb the active profile")
}

func TestRegistry_CapabilityFallsBackToDefaultsThenSynthesizes(t *testing.T) {
	defaults := map[string]ModelCapability{
		"known-default": {Name: "known-default", Backend: "ollama", VRAMSizeGB: 2, Priority: PriorityLow},
	}
	reg, err := NewRegistry([]*Profile{validProfile("default")}, "default", defaults)
	require.NoError(t, err)

	cap := reg.Capability("router-model")
	assert.Equal(t, PriorityCritical, cap.Priority, "roster hit should win")

	cap = reg.Capability("known-default")
	assert.Equal(t, PriorityLow, cap.Priority, "falls back to the default registry")

	cap = reg.Capability("never-seen-model")
	assert.Equal(t, PriorityNormal, cap.Priority, "unknown models synthesize a generic NORMAL capability")
	assert.Equal(t, 4.0, cap.VRAMSizeGB)
}

func TestRegistry_Register(t *testing.T) {
	reg, err := NewRegistry([]*Profile{validProfile("default")}, "default", nil)
	require.NoError(t, err)

	newProfile := validProfile("aggressive")
	require.NoError(t, reg.Register(newProfile))
	assert.Contains(t, reg.Names(), "aggressive")

	invalid := validProfile("broken")
	invalid.VRAMSoftLimitGB = 100
	require.Error(t, reg.Register(invalid))
	assert.NotContains(t, reg.Names(), "broken")
}
