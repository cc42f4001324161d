package pipeline

import (
	"strings"
	"time"
)

// PromptLayers holds the layered prompt fragments composed into one
// system prompt (spec.md §4.5 (2): "role → critical protocols (only if
// artifact requested) → task-specific route prompt → format rules →
// user base prompt"). Grounded on pkg/agent/prompt/builder.go's
// Compose*Instructions layering.
type PromptLayers struct {
	Role               string
	CriticalProtocols  string
	RoutePrompt        string
	FormatRules        string
	UserBasePrompt     string
}

// ComposeSystemPrompt joins the layers in spec order, substituting simple
// placeholders ({current_date}, {tool_usage_rules}, ...) along the way.
func ComposeSystemPrompt(layers PromptLayers, artifactRequested bool, placeholders map[string]string) string {
	parts := []string{layers.Role}
	if artifactRequested {
		parts = append(parts, layers.CriticalProtocols)
	}
	parts = append(parts, layers.RoutePrompt, layers.FormatRules, layers.UserBasePrompt)

	composed := strings.Join(filterEmpty(parts), "\n\n")
	return substitutePlaceholders(composed, placeholders)
}

func filterEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// substitutePlaceholders fills {name} tokens by simple substitution; an
// unknown placeholder is left untouched.
func substitutePlaceholders(s string, values map[string]string) string {
	for k, v := range values {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}

// DefaultPlaceholders supplies the placeholders every prompt composition
// needs regardless of route (spec.md §4.5: "{current_date},
// {tool_usage_rules}, etc.").
func DefaultPlaceholders(toolUsageRules string) map[string]string {
	return map[string]string{
		"current_date":      time.Now().UTC().Format("2006-01-02"),
		"tool_usage_rules":  toolUsageRules,
	}
}
