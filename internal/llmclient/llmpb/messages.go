// Package llmpb defines the wire types for the Nexus LLM service RPC
// contract and a minimal grpc client stub for it.
//
// Grounded on proto/*.proto + the generated llmv1 package consumed by
// pkg/agent/llm_grpc.go and pkg/llm/client.go — ConversationMessage,
// ToolDefinition, ToolCall and the GenerateRequest/GenerateResponse
// oneof-of-chunk-kinds shape are kept. The generated code itself (raw
// descriptor bytes, protoreflect plumbing) is produced by `protoc` from
// a .proto source, which this module never invokes; see
// internal/llmclient/llmpb/codec.go for the resulting substitution (a
// JSON grpc codec instead of the real protobuf wire codec).
package llmpb

// Role mirrors pipeline.Role on the wire.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ConversationMessage is one turn sent to the LLM service.
type ConversationMessage struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded args
}

// ToolDefinition describes one callable tool to the model.
type ToolDefinition struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	ParametersSchema string `json:"parameters_schema"` // JSON Schema
}

// GenerateRequest is the unary call that opens a server-streaming
// response of GenerateResponse chunks.
type GenerateRequest struct {
	ModelName   string                 `json:"model_name"`
	Messages    []ConversationMessage  `json:"messages"`
	Tools       []ToolDefinition       `json:"tools,omitempty"`
	Temperature float64                `json:"temperature"`
	KeepAlive   int32                  `json:"keep_alive"` // seconds; -1 indefinite, 0 unload immediately
}

// ContentKind tags which field of GenerateResponse is populated — the
// Go-side equivalent of a proto oneof.
type ContentKind string

const (
	ContentText     ContentKind = "text"
	ContentToolCall ContentKind = "tool_call"
	ContentUsage    ContentKind = "usage"
	ContentError    ContentKind = "error"
)

// GenerateResponse is one streamed chunk of a Generate call.
type GenerateResponse struct {
	Kind       ContentKind `json:"kind"`
	IsFinal    bool        `json:"is_final"`
	Text       string      `json:"text,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	InputTokens   int32    `json:"input_tokens,omitempty"`
	OutputTokens  int32    `json:"output_tokens,omitempty"`
	TotalTokens   int32    `json:"total_tokens,omitempty"`
	ErrorMessage  string   `json:"error_message,omitempty"`
	ErrorRetryable bool    `json:"error_retryable,omitempty"`
}
