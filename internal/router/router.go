// Package router implements LLM-based turn classification and strict
// per-request/user/route preference resolution (spec.md §4.4).
//
// Grounded on original_source/fastapi-service/app/services/
// preference_resolver.py (ResolvedPreferences, strict priority,
// model_source tracking) and pkg/queue/executor.go's config-driven
// stage resolution.
package router

import (
	"context"
	"strings"
	"time"
)

// Route is a coarse label selecting model, prompt layers, and fetch
// limits for a user turn (spec.md GLOSSARY).
type Route string

const (
	RouteMath        Route = "MATH"
	RouteSimpleCode  Route = "SIMPLE_CODE"
	RouteComplexCode Route = "COMPLEX_CODE"
	RouteReasoning   Route = "REASONING"
	RouteResearch    Route = "RESEARCH"
	RouteSelfHandle  Route = "SELF_HANDLE"
)

// allRoutes is the closed route set the classifier's output is matched
// against (spec.md §8 invariant #4).
var allRoutes = []Route{RouteMath, RouteSimpleCode, RouteComplexCode, RouteReasoning, RouteResearch, RouteSelfHandle}

// Classifier invokes the profile's router_model to label a user turn.
type Classifier interface {
	Classify(ctx context.Context, userMessage string, temperature float64) (string, error)
}

// ClassificationResult records the chosen route and latency for
// observability (spec.md §4.4: "Classification latency and route are
// recorded").
type ClassificationResult struct {
	Route   Route
	Latency time.Duration
}

// Router classifies a user turn via a small LLM (temperature 0.1, short
// keep-alive per spec.md §4.4).
type Router struct {
	classifier Classifier
}

func New(classifier Classifier) *Router {
	return &Router{classifier: classifier}
}

// Classify builds the classification prompt, invokes the router model,
// and normalizes the response against the route set. Falls back to
// REASONING if nothing matches (spec.md §4.4).
func (r *Router) Classify(ctx context.Context, userMessage string) (ClassificationResult, error) {
	start := time.Now()
	raw, err := r.classifier.Classify(ctx, userMessage, 0.1)
	if err != nil {
		return ClassificationResult{}, err
	}
	route := normalize(raw)
	return ClassificationResult{Route: route, Latency: time.Since(start)}, nil
}

func normalize(raw string) Route {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	for _, route := range allRoutes {
		if cleaned == string(route) {
			return route
		}
	}
	// Exact match failed: scan for any known route substring
	// (spec.md §4.4: "the router scans for any known route substring").
	for _, route := range allRoutes {
		if strings.Contains(cleaned, string(route)) {
			return route
		}
	}
	return RouteReasoning
}
