package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/nexuscore/nexus/internal/errs"
)

// defaultAskUserTimeout is spec.md §4.5's "bounded by a per-call timeout,
// default 300 s".
const defaultAskUserTimeout = 300 * time.Second

// NewAskUserTool builds the ask_user tool: it suspends the agent by
// sending a structured question over the Session Hub and waiting on a
// per-request response channel (spec.md §4.5). A timeout yields a failed
// ToolResult that the agent may react to; the turn's own cancellation
// aborts the wait with errs.ErrCancelled instead.
func NewAskUserTool() Tool {
	return Tool{
		Name:        "ask_user",
		Description: "Ask the user a clarifying question and wait for their reply.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{"type": "string"},
				"options":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			"required": []string{"question"},
		},
		Invoke: func(ctx context.Context, execCtx *ExecutionContext, args map[string]any) ToolResult {
			question, _ := args["question"].(string)
			if question == "" {
				return ToolResult{Success: false, Error: "ask_user requires a question"}
			}
			var options []string
			if raw, ok := args["options"].([]any); ok {
				for _, o := range raw {
					if s, ok := o.(string); ok {
						options = append(options, s)
					}
				}
			}

			if execCtx.AskUser == nil {
				return ToolResult{Success: false, Error: "ask_user is unavailable in this context"}
			}

			answer, err := execCtx.AskUser(ctx, execCtx.RequestID, question, options, defaultAskUserTimeout)
			if err != nil {
				switch {
				case errors.Is(err, errs.ErrAskUserTimeout):
					return ToolResult{Success: false, Error: "the user did not respond in time"}
				case errors.Is(err, errs.ErrCancelled):
					return ToolResult{Success: false, Error: "the turn was cancelled while waiting for the user"}
				default:
					return ToolResult{Success: false, Error: err.Error()}
				}
			}
			return ToolResult{Success: true, Content: answer}
		},
	}
}
