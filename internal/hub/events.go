// Package hub implements the Streaming/Session Hub: per-client
// connection registry, fan-out of incremental events, resumable status
// animation, and ask_user round-trips (spec.md §4.6).
//
// Grounded on pkg/events/manager.go (ConnectionManager: registry +
// snapshot-then-send broadcast, catchup/LISTEN ordering) and
// pkg/session/manager.go + types.go (per-session mutex, cancellation
// function registry).
package hub

import "github.com/google/uuid"

// EventType enumerates the event kinds sent to clients (spec.md §4.6).
type EventType string

const (
	EventSessionStart EventType = "session_start"
	EventQueued       EventType = "queued"
	EventProcessing   EventType = "processing"
	EventEarlyStatus  EventType = "early_status"
	EventToken        EventType = "token"
	EventToolCall     EventType = "tool_call"
	EventToolResult   EventType = "tool_result"
	EventUserQuestion EventType = "user_question"
	EventResult       EventType = "result"
	EventFailed       EventType = "failed"
	EventCancelled    EventType = "cancelled"
	EventPong         EventType = "pong"
)

// StatusKind is the kind field of send_status_indicator (spec.md §4.6).
type StatusKind string

const (
	StatusProcessingFiles StatusKind = "processing_files"
	StatusThinking        StatusKind = "thinking"
	StatusRetrying        StatusKind = "retrying"
)

// Event is the tagged envelope delivered to a client connection.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	RequestID uuid.UUID      `json:"request_id,omitempty"`
	Position  int            `json:"position,omitempty"`
	Content   string         `json:"content,omitempty"`
	Text      string         `json:"text,omitempty"`
	Name      string         `json:"name,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Success   bool           `json:"success,omitempty"`
	Question  string         `json:"question,omitempty"`
	Options   []string       `json:"options,omitempty"`
	TimeoutS  int            `json:"timeout,omitempty"`
	TokensUsed int           `json:"tokens_used,omitempty"`
	Artifacts  []uuid.UUID   `json:"artifacts,omitempty"`
	Error      string        `json:"error,omitempty"`
	Attempts   int           `json:"attempts,omitempty"`
}

// ClientMessage is what an inbound connection sends.
type ClientMessage struct {
	Type      string    `json:"type"`
	ThreadID  string    `json:"thread_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	ChannelID string    `json:"channel_id,omitempty"`
	FileRefs  []string  `json:"file_refs,omitempty"`
	RequestID uuid.UUID `json:"request_id,omitempty"`
}
