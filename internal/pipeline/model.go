package pipeline

import "context"

// Model is the streaming generation interface the pipeline depends on.
// Defined here (consumer side) rather than imported from internal/llmclient
// to keep the pipeline package decoupled from transport details — the
// concrete implementation is a gRPC client (pkg/agent/llm_client.go's
// Generate/channel-of-Chunk shape, generalized to an interface method set).
type Model interface {
	Generate(ctx context.Context, req GenerateRequest) (<-chan StreamChunk, error)
}

// GenerateRequest is one call to a model, with or without tools bound.
type GenerateRequest struct {
	ModelName   string
	Messages    []Message
	Tools       []ToolDefinition // nil disables function calling (forced conclusion)
	Temperature float64
	KeepAlive   int // seconds; -1 = indefinite, 0 = unload immediately after
}

// ToolDefinition describes one callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      map[string]any
}

// StreamChunk is one unit of a model's streaming response.
type StreamChunk struct {
	Text       string
	ToolCalls  []ToolCall // present on the chunk that completes function-calling
	Done       bool
	Err        error
	TokensUsed int
}

// SingleShot runs req to completion without streaming, collecting all
// chunks. Used for the small classification/detection/extraction calls
// that don't need token-by-token delivery (router classification,
// artifact-intent detection, artifact JSON extraction).
func SingleShot(ctx context.Context, m Model, req GenerateRequest) (string, []ToolCall, error) {
	ch, err := m.Generate(ctx, req)
	if err != nil {
		return "", nil, err
	}
	var text string
	var calls []ToolCall
	for chunk := range ch {
		if chunk.Err != nil {
			return "", nil, chunk.Err
		}
		text += chunk.Text
		if len(chunk.ToolCalls) > 0 {
			calls = append(calls, chunk.ToolCalls...)
		}
	}
	return text, calls, nil
}
