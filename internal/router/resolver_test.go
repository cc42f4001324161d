package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscore/nexus/internal/profile"
)

func testRegistry(t *testing.T) *profile.Registry {
	t.Helper()

	roster := []profile.ModelCapability{
		{Name: "route-math-model", Backend: "ollama", VRAMSizeGB: 4, Priority: profile.PriorityNormal},
		{Name: "artifact-detect-model", Backend: "ollama", VRAMSizeGB: 1, Priority: profile.PriorityLow},
		{Name: "artifact-extract-model", Backend: "ollama", VRAMSizeGB: 1, Priority: profile.PriorityLow},
		{Name: "summarize-model", Backend: "ollama", VRAMSizeGB: 1, Priority: profile.PriorityLow},
		{Name: "reasoning-model", Backend: "ollama", VRAMSizeGB: 8, Priority: profile.PriorityHigh},
	}
	roleModel := make(map[profile.Role]string, len(profile.AllRoles))
	for _, r := range profile.AllRoles {
		roleModel[r] = "reasoning-model"
	}
	roleModel[profile.RoleMath] = "route-math-model"
	roleModel[profile.RoleArtifactDetection] = "artifact-detect-model"
	roleModel[profile.RoleArtifactExtraction] = "artifact-extract-model"
	roleModel[profile.RoleSummarization] = "summarize-model"

	p := &profile.Profile{
		Name:            "default",
		Roster:          roster,
		VRAMSoftLimitGB: 10,
		VRAMHardLimitGB: 12,
		RoleModel:       roleModel,
	}
	reg, err := profile.NewRegistry([]*profile.Profile{p}, "default", nil)
	require.NoError(t, err)
	return reg
}

func TestPreferenceResolver_RequestOverrideWins(t *testing.T) {
	resolver := NewPreferenceResolver(testRegistry(t))
	model := "explicit-request-model"
	temp := 0.9

	resolved := resolver.Resolve(
		RequestOverride{Model: &model, Temperature: &temp},
		UserPreference{PreferredModel: strPtr("user-model")},
		RouteMath,
		0.2,
	)

	assert.Equal(t, "explicit-request-model", resolved.Model)
	assert.Equal(t, SourceRequest, resolved.ModelSource)
	assert.Equal(t, 0.9, resolved.Temperature)
}

func TestPreferenceResolver_UserPreferenceBeatsRouteDefault(t *testing.T) {
	resolver := NewPreferenceResolver(testRegistry(t))

	resolved := resolver.Resolve(
		RequestOverride{},
		UserPreference{PreferredModel: strPtr("user-model")},
		RouteMath,
		0.2,
	)

	assert.Equal(t, "user-model", resolved.Model)
	assert.Equal(t, SourceUser, resolved.ModelSource)
}

func TestPreferenceResolver_FallsBackToRouteDefault(t *testing.T) {
	resolver := NewPreferenceResolver(testRegistry(t))

	resolved := resolver.Resolve(RequestOverride{}, UserPreference{}, RouteMath, 0.2)

	assert.Equal(t, "route-math-model", resolved.Model)
	assert.Equal(t, SourceRouter, resolved.ModelSource)
	assert.Equal(t, 0.2, resolved.Temperature)
}

func TestPreferenceResolver_ArtifactModelsAlwaysFromProfile(t *testing.T) {
	resolver := NewPreferenceResolver(testRegistry(t))
	userModel := "user-model"

	resolved := resolver.Resolve(
		RequestOverride{},
		UserPreference{PreferredModel: &userModel},
		RouteReasoning,
		0.2,
	)

	assert.Equal(t, "artifact-detect-model", resolved.ArtifactDetectionModel)
	assert.Equal(t, "artifact-extract-model", resolved.ArtifactExtractionModel)
	assert.Equal(t, "summarize-model", resolved.SummarizationModel)
}

func TestPreferenceResolver_ThinkingEnabledNilMeansModelDefault(t *testing.T) {
	resolver := NewPreferenceResolver(testRegistry(t))

	resolved := resolver.Resolve(RequestOverride{}, UserPreference{}, RouteReasoning, 0.2)

	assert.Nil(t, resolved.ThinkingEnabled)
}

func strPtr(s string) *string { return &s }
