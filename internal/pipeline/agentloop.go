package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nexuscore/nexus/internal/errs"
)

// AgentLoop drives the multi-turn tool-calling loop (spec.md §4.5 (2)).
// Grounded on pkg/agent/controller/iterating.go's IteratingController: build
// messages, call the model with bound tools, dispatch any tool calls
// locally, feed results back, and terminate on a response carrying no
// tool calls.
type AgentLoop struct {
	model Model
	tools *ToolRegistry
}

// NewAgentLoop wires the model and the tool registry available to agents.
func NewAgentLoop(model Model, tools *ToolRegistry) *AgentLoop {
	return &AgentLoop{model: model, tools: tools}
}

// Run executes the loop until the model produces a final answer, the
// context is cancelled, or a fatal error occurs.
func (a *AgentLoop) Run(ctx context.Context, execCtx *ExecutionContext, systemPrompt, userMessage string) (Result, error) {
	messages := []Message{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: userMessage},
	}

	defs := a.tools.Definitions()
	totalTokens := 0

	for iteration := 0; iteration < execCtx.MaxIter; iteration++ {
		if ctx.Err() != nil {
			return Result{Cancelled: true}, nil
		}

		iterCtx, cancel := context.WithTimeout(ctx, execCtx.IterTimeout)
		text, toolCalls, tokens, err := a.streamOnce(iterCtx, execCtx, messages, defs, true)
		cancel()

		if err != nil {
			if errors.Is(err, context.Canceled) {
				return Result{Cancelled: true}, nil
			}
			// Transient streaming failure: one non-streaming retry with a
			// "retrying" status event, per spec.md §4.5 failure semantics.
			execCtx.Sink.StatusRetrying()
			text, toolCalls, tokens, err = a.streamOnce(ctx, execCtx, messages, defs, false)
			if err != nil {
				return Result{}, errs.New(errs.KindBackendUnavailable, "model call failed after retry", err)
			}
		}
		totalTokens += tokens

		if len(toolCalls) == 0 {
			return Result{Text: text, TokensUsed: totalTokens}, nil
		}

		messages = append(messages, Message{Role: RoleAssistant, Content: text, ToolCalls: toolCalls})

		for _, tc := range toolCalls {
			execCtx.Sink.ToolCallStarted(tc.Name, tc.Args)
			result := a.dispatch(ctx, execCtx, tc)
			execCtx.Sink.ToolCallFinished(tc.Name, result.Success)

			messages = append(messages, Message{
				Role: RoleTool, Content: result.Content, ToolCallID: tc.ID, ToolName: tc.Name,
			})
		}
	}

	return a.forceConclusion(ctx, execCtx, messages, totalTokens)
}

// streamOnce calls the model once and drains the token stream, collecting
// the final text and any tool calls. Tokens are forwarded to the sink
// only when forward is true.
func (a *AgentLoop) streamOnce(ctx context.Context, execCtx *ExecutionContext, messages []Message, defs []ToolDefinition, forward bool) (string, []ToolCall, int, error) {
	ch, err := a.model.Generate(ctx, GenerateRequest{
		ModelName:   execCtx.Resolved.Model,
		Messages:    messages,
		Tools:       defs,
		Temperature: execCtx.Resolved.Temperature,
	})
	if err != nil {
		return "", nil, 0, err
	}

	var text string
	var calls []ToolCall
	tokens := 0
	for chunk := range ch {
		if chunk.Err != nil {
			return "", nil, 0, chunk.Err
		}
		if chunk.Text != "" {
			if forward {
				execCtx.Sink.Token(chunk.Text)
			}
			text += chunk.Text
		}
		if len(chunk.ToolCalls) > 0 {
			calls = append(calls, chunk.ToolCalls...)
		}
		tokens += chunk.TokensUsed
	}
	return text, calls, tokens, nil
}

// dispatch invokes the named tool, converting an unknown tool name or a
// panic-free internal error into a failed ToolResult rather than
// propagating past the agent loop (spec.md §4.5/§7: "Tool errors are
// returned to the agent... never propagate past the agent loop").
func (a *AgentLoop) dispatch(ctx context.Context, execCtx *ExecutionContext, tc ToolCall) ToolResult {
	tool, ok := a.tools.Get(tc.Name)
	if !ok {
		return ToolResult{Success: false, Error: fmt.Sprintf("unknown tool %q", tc.Name)}
	}
	return tool.Invoke(ctx, execCtx, tc.Args)
}

// forceConclusion calls the model once more without tools bound, forcing
// a text-only final answer once MaxIter is exhausted (spec.md §4.5,
// mirroring iterating.go's forceConclusion).
func (a *AgentLoop) forceConclusion(ctx context.Context, execCtx *ExecutionContext, messages []Message, totalTokens int) (Result, error) {
	messages = append(messages, Message{
		Role:    RoleUser,
		Content: "You have reached the maximum number of tool iterations. Provide your best final answer now, without calling any more tools.",
	})
	text, _, tokens, err := a.streamOnce(ctx, execCtx, messages, nil, true)
	if err != nil {
		slog.Error("forced conclusion failed", "request_id", execCtx.RequestID, "error", err)
		return Result{}, errs.New(errs.KindBackendUnavailable, "forced conclusion failed", err)
	}
	return Result{Text: text, TokensUsed: totalTokens + tokens}, nil
}
