// Package pipeline implements the per-turn Execution Pipeline: preprocess
// (file extraction, sanitization, artifact-intent detection, context
// enrichment, summarization), the agent tool-calling loop, and postprocess
// (artifact extraction, interface-specific chunking).
//
// Grounded on pkg/agent/controller/iterating.go (multi-turn tool-calling
// loop shape: build messages, call LLM with tools, dispatch tool calls,
// terminate on a response without tool calls) and pkg/agent/context.go
// (ExecutionContext as an explicit value object, not ambient state).
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/nexus/internal/router"
)

// Role mirrors a conversation message's speaker.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	ToolName   string
}

// ToolCall is a model-emitted invocation of one of the agent's tools.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult is what a tool dispatch returns. Tools never panic or return
// a Go error across the boundary — failure is encoded in the struct
// (spec.md §4.5: "Tools must not raise across the boundary").
type ToolResult struct {
	Content string
	Success bool
	Error   string
}

// Tool is one agent-callable capability (brain_search, web_fetch,
// read_file, ask_user, ...). Schema is a JSON-Schema-shaped description
// handed to the model for function-calling.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any
	Invoke      func(ctx context.Context, execCtx *ExecutionContext, args map[string]any) ToolResult
}

// FileRef is an uploaded attachment awaiting extraction.
type FileRef struct {
	Name string
	MIME string
	Path string
}

// StreamSink receives incremental tokens during the agent loop, forwarded
// to the Session Hub (spec.md §4.6).
type StreamSink interface {
	Token(text string)
	ToolCallStarted(name string, args map[string]any)
	ToolCallFinished(name string, success bool)
	StatusRetrying()
}

// AskUser suspends the current turn for a user response, implementing
// spec.md §4.5's ask_user tool semantics.
type AskUser func(ctx context.Context, requestID uuid.UUID, question string, options []string, timeout time.Duration) (string, error)

// ExecutionContext is the explicit value object threaded through the
// pipeline and handed to every tool invocation (spec.md §9: "tools
// receive it as an explicit argument rather than reading from ambient
// state").
type ExecutionContext struct {
	RequestID   uuid.UUID
	ThreadID    string
	ChannelID   string
	UserID      string
	Interface   OutputInterface
	Route       router.Route
	Resolved    router.Resolved
	Sink        StreamSink
	AskUser     AskUser
	MaxIter     int
	IterTimeout time.Duration

	ArtifactsCreated []uuid.UUID
}

// OutputInterface selects prompt sanitization and chunking behavior
// (spec.md §4.5: "Discord-like" vs "Terminal/IDE-like").
type OutputInterface string

const (
	InterfaceDiscordLike    OutputInterface = "discord"
	InterfaceTerminalIDELike OutputInterface = "terminal"
)

// Result is what a completed turn produces.
type Result struct {
	Text        string
	TokensUsed  int
	Artifacts   []uuid.UUID
	Chunks      []string
	Cancelled   bool
}
