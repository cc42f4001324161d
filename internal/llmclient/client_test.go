package llmclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscore/nexus/internal/llmclient/llmpb"
	"github.com/nexuscore/nexus/internal/pipeline"
)

func TestToWireRequest_MapsMessagesToolsAndOverrides(t *testing.T) {
	req := pipeline.GenerateRequest{
		ModelName:   "qwen3:32b",
		Temperature: 0.4,
		KeepAlive:   -1,
		Messages: []pipeline.Message{
			{Role: pipeline.RoleSystem, Content: "be helpful"},
			{Role: pipeline.RoleAssistant, Content: "", ToolCalls: []pipeline.ToolCall{
				{ID: "call_1", Name: "brain_search", Args: map[string]any{"query": "go generics"}},
			}},
			{Role: pipeline.RoleTool, Content: "result text", ToolCallID: "call_1", ToolName: "brain_search"},
		},
		Tools: []pipeline.ToolDefinition{
			{Name: "brain_search", Description: "search the knowledge base", Schema: map[string]any{"type": "object"}},
		},
	}

	wire := toWireRequest(req)

	assert.Equal(t, "qwen3:32b", wire.ModelName)
	assert.Equal(t, int32(-1), wire.KeepAlive)
	require.Len(t, wire.Messages, 3)
	assert.Equal(t, llmpb.RoleSystem, wire.Messages[0].Role)

	assistantMsg := wire.Messages[1]
	require.Len(t, assistantMsg.ToolCalls, 1)
	assert.Equal(t, "brain_search", assistantMsg.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"go generics"}`, assistantMsg.ToolCalls[0].Arguments)

	toolMsg := wire.Messages[2]
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
	assert.Equal(t, "brain_search", toolMsg.ToolName)

	require.Len(t, wire.Tools, 1)
	assert.JSONEq(t, `{"type":"object"}`, wire.Tools[0].ParametersSchema)
}

func TestFromWireResponse_Text(t *testing.T) {
	chunk, done := fromWireResponse(&llmpb.GenerateResponse{Kind: llmpb.ContentText, Text: "hello"})
	assert.False(t, done)
	assert.Equal(t, "hello", chunk.Text)
	assert.NoError(t, chunk.Err)
}

func TestFromWireResponse_ToolCallParsesArguments(t *testing.T) {
	resp := &llmpb.GenerateResponse{
		Kind:    llmpb.ContentToolCall,
		IsFinal: true,
		ToolCall: &llmpb.ToolCall{
			ID: "call_2", Name: "web_fetch", Arguments: `{"url":"https://example.com"}`,
		},
	}
	chunk, done := fromWireResponse(resp)
	assert.True(t, done)
	require.Len(t, chunk.ToolCalls, 1)
	assert.Equal(t, "web_fetch", chunk.ToolCalls[0].Name)
	assert.Equal(t, "https://example.com", chunk.ToolCalls[0].Args["url"])
}

func TestFromWireResponse_ToolCallWithMalformedArgumentsDoesNotError(t *testing.T) {
	resp := &llmpb.GenerateResponse{
		Kind:     llmpb.ContentToolCall,
		ToolCall: &llmpb.ToolCall{ID: "call_3", Name: "broken", Arguments: "not json"},
	}
	chunk, _ := fromWireResponse(resp)
	assert.NoError(t, chunk.Err)
	require.Len(t, chunk.ToolCalls, 1)
	assert.Empty(t, chunk.ToolCalls[0].Args)
}

func TestFromWireResponse_Usage(t *testing.T) {
	chunk, done := fromWireResponse(&llmpb.GenerateResponse{Kind: llmpb.ContentUsage, TotalTokens: 512})
	assert.True(t, done)
	assert.Equal(t, 512, chunk.TokensUsed)
}

func TestFromWireResponse_Error(t *testing.T) {
	chunk, done := fromWireResponse(&llmpb.GenerateResponse{Kind: llmpb.ContentError, ErrorMessage: "backend down"})
	assert.True(t, done)
	require.Error(t, chunk.Err)
	assert.Contains(t, chunk.Err.Error(), "backend down")
}
