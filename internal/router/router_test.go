package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClassifier struct {
	response string
	err      error
}

func (s stubClassifier) Classify(ctx context.Context, userMessage string, temperature float64) (string, error) {
	return s.response, s.err
}

func TestRouter_Classify_ExactMatch(t *testing.T) {
	r := New(stubClassifier{response: "MATH"})

	result, err := r.Classify(context.Background(), "what is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, RouteMath, result.Route)
}

func TestRouter_Classify_NormalizesWhitespaceAndCase(t *testing.T) {
	r := New(stubClassifier{response: "  complex_code\n"})

	result, err := r.Classify(context.Background(), "refactor this function")
	require.NoError(t, err)
	assert.Equal(t, RouteComplexCode, result.Route)
}

func TestRouter_Classify_SubstringFallback(t *testing.T) {
	r := New(stubClassifier{response: "I think this is RESEARCH because..."})

	result, err := r.Classify(context.Background(), "look this up")
	require.NoError(t, err)
	assert.Equal(t, RouteResearch, result.Route)
}

func TestRouter_Classify_UnknownFallsBackToReasoning(t *testing.T) {
	r := New(stubClassifier{response: "banana"})

	result, err := r.Classify(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, RouteReasoning, result.Route)
}

func TestRouter_Classify_PropagatesClassifierError(t *testing.T) {
	r := New(stubClassifier{err: errors.New("model unavailable")})

	_, err := r.Classify(context.Background(), "hello")
	require.Error(t, err)
}
