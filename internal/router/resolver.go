package router

import (
	"github.com/nexuscore/nexus/internal/profile"
)

// ModelSource records where a resolved model came from, for
// observability (spec.md §4.4).
type ModelSource string

const (
	SourceRequest ModelSource = "request"
	SourceUser    ModelSource = "user"
	SourceRouter  ModelSource = "router"
)

// RequestOverride is the subset of per-request fields that, if present,
// bypass routing entirely (spec.md §4.4 priority 1).
type RequestOverride struct {
	Model            *string
	Temperature      *float64
	ThinkingEnabled  *bool
}

// UserPreference is the subset of stored user preference fields
// (spec.md §4.4 priority 2, spec.md §3 User.preferences).
type UserPreference struct {
	PreferredModel  *string
	Temperature     *float64
	ThinkingEnabled *bool
}

// Resolved is the fully-resolved set of generation settings for one
// turn, with the source of the chosen model attached.
type Resolved struct {
	Model                   string
	ModelSource             ModelSource
	Temperature             float64
	ThinkingEnabled         *bool // nil = "model default" (spec.md §4.4)
	ArtifactDetectionModel  string
	ArtifactExtractionModel string
	SummarizationModel     string
}

// PreferenceResolver is the single chokepoint for preference resolution
// (spec.md §9 Open Question: "the canonical priority... should be
// enforced at one chokepoint"). No other code path may pick a model.
type PreferenceResolver struct {
	profiles *profile.Registry
}

func NewPreferenceResolver(profiles *profile.Registry) *PreferenceResolver {
	return &PreferenceResolver{profiles: profiles}
}

// Resolve applies the strict priority of spec.md §4.4:
//  1. request.model / request.temperature / request.thinking_enabled
//  2. stored user preference
//  3. route's default model from the active profile
//
// artifact_detection_model and artifact_extraction_model are always
// drawn from the profile regardless of user override.
func (r *PreferenceResolver) Resolve(req RequestOverride, user UserPreference, route Route, defaultTemperature float64) Resolved {
	active := r.profiles.Active()

	var model string
	var source ModelSource
	switch {
	case req.Model != nil && *req.Model != "":
		model = *req.Model
		source = SourceRequest
	case user.PreferredModel != nil && *user.PreferredModel != "":
		model = *user.PreferredModel
		source = SourceUser
	default:
		model, _ = active.ModelForRole(routeRole(route))
		source = SourceRouter
	}

	temperature := defaultTemperature
	switch {
	case req.Temperature != nil:
		temperature = *req.Temperature
	case user.Temperature != nil:
		temperature = *user.Temperature
	}

	var thinking *bool
	switch {
	case req.ThinkingEnabled != nil:
		thinking = req.ThinkingEnabled
	case user.ThinkingEnabled != nil:
		thinking = user.ThinkingEnabled
	}

	artifactDetection, _ := active.ModelForRole(profile.RoleArtifactDetection)
	artifactExtraction, _ := active.ModelForRole(profile.RoleArtifactExtraction)
	summarization, _ := active.ModelForRole(profile.RoleSummarization)

	return Resolved{
		Model:                   model,
		ModelSource:             source,
		Temperature:             temperature,
		ThinkingEnabled:         thinking,
		ArtifactDetectionModel:  artifactDetection,
		ArtifactExtractionModel: artifactExtraction,
		SummarizationModel:      summarization,
	}
}

// routeRole maps a classified route to the profile role whose model
// handles it.
func routeRole(route Route) profile.Role {
	switch route {
	case RouteMath:
		return profile.RoleMath
	case RouteSimpleCode:
		return profile.RoleSimpleCoder
	case RouteComplexCode:
		return profile.RoleComplexCoder
	case RouteResearch:
		return profile.RoleResearch
	case RouteReasoning, RouteSelfHandle:
		return profile.RoleReasoning
	default:
		return profile.RoleReasoning
	}
}
