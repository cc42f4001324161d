// Package llmclient is the gRPC transport binding the Execution
// Pipeline's Model interface to a local inference-backend shim process
// (spec.md §4.2.3 backend dispatch). Grounded on pkg/llm/client.go's
// Client (connection + GenerateStream) and pkg/agent/llm_grpc.go's
// GRPCLLMClient (Go-side Chunk translation, decoupled from the wire
// types).
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/nexuscore/nexus/internal/llmclient/llmpb"
	"github.com/nexuscore/nexus/internal/pipeline"
)

// Client implements pipeline.Model over a gRPC connection to the
// inference-backend shim addressed by addr (spec.md §4.2.3: "the VRAM
// Orchestrator's composite backend talks to the loaded model via
// whatever transport that backend type uses").
type Client struct {
	conn   *grpc.ClientConn
	client llmpb.LLMServiceClient
}

// New dials addr and returns a ready Client. Uses insecure transport:
// the backend shim runs as a local sidecar, mirroring pkg/llm/client.go's
// own insecure.NewCredentials() choice.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("llmclient: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, client: llmpb.NewLLMServiceClient(conn)}, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Generate implements pipeline.Model.
func (c *Client) Generate(ctx context.Context, req pipeline.GenerateRequest) (<-chan pipeline.StreamChunk, error) {
	stream, err := c.client.Generate(ctx, toWireRequest(req))
	if err != nil {
		return nil, fmt.Errorf("llmclient: generate call failed: %w", err)
	}

	ch := make(chan pipeline.StreamChunk, 32)
	go func() {
		defer close(ch)
		for {
			resp, err := stream.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				select {
				case ch <- pipeline.StreamChunk{Err: fmt.Errorf("llmclient: stream recv: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			chunk, done := fromWireResponse(resp)
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
			if done {
				return
			}
		}
	}()
	return ch, nil
}

func toWireRequest(req pipeline.GenerateRequest) *llmpb.GenerateRequest {
	wire := &llmpb.GenerateRequest{
		ModelName:   req.ModelName,
		Temperature: req.Temperature,
		KeepAlive:   int32(req.KeepAlive),
		Messages:    make([]llmpb.ConversationMessage, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		wm := llmpb.ConversationMessage{
			Role:       llmpb.Role(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			ToolName:   m.ToolName,
		}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, toWireToolCall(tc))
		}
		wire.Messages = append(wire.Messages, wm)
	}
	for _, t := range req.Tools {
		schema, err := json.Marshal(t.Schema)
		if err != nil {
			slog.Warn("llmclient: tool schema marshal failed", "tool", t.Name, "error", err)
			schema = []byte("{}")
		}
		wire.Tools = append(wire.Tools, llmpb.ToolDefinition{
			Name: t.Name, Description: t.Description, ParametersSchema: string(schema),
		})
	}
	return wire
}

func toWireToolCall(tc pipeline.ToolCall) llmpb.ToolCall {
	args, err := json.Marshal(tc.Args)
	if err != nil {
		slog.Warn("llmclient: tool call args marshal failed", "tool", tc.Name, "error", err)
		args = []byte("{}")
	}
	return llmpb.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: string(args)}
}

// fromWireResponse translates one streamed chunk, reporting whether the
// stream has reached the chunk that concludes function-calling (a
// tool_call chunk marked final) or the terminal usage/error chunk.
func fromWireResponse(resp *llmpb.GenerateResponse) (pipeline.StreamChunk, bool) {
	switch resp.Kind {
	case llmpb.ContentText:
		return pipeline.StreamChunk{Text: resp.Text, Done: resp.IsFinal}, resp.IsFinal
	case llmpb.ContentToolCall:
		if resp.ToolCall == nil {
			return pipeline.StreamChunk{}, false
		}
		var args map[string]any
		if err := json.Unmarshal([]byte(resp.ToolCall.Arguments), &args); err != nil {
			slog.Warn("llmclient: tool call arguments unmarshal failed", "tool", resp.ToolCall.Name, "error", err)
			args = map[string]any{}
		}
		return pipeline.StreamChunk{
			ToolCalls: []pipeline.ToolCall{{ID: resp.ToolCall.ID, Name: resp.ToolCall.Name, Args: args}},
			Done:      resp.IsFinal,
		}, resp.IsFinal
	case llmpb.ContentUsage:
		return pipeline.StreamChunk{TokensUsed: int(resp.TotalTokens), Done: true}, true
	case llmpb.ContentError:
		return pipeline.StreamChunk{Err: fmt.Errorf("llmclient: backend error: %s", resp.ErrorMessage)}, true
	default:
		slog.Warn("llmclient: unknown response kind, skipping chunk", "kind", resp.Kind)
		return pipeline.StreamChunk{}, false
	}
}
