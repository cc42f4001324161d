// Package queue implements the bounded Request Queue and its Worker
// Pool: visibility-timeout semantics, retries, per-request cancellation,
// and backpressure (spec.md §4.3).
//
// Grounded on pkg/queue/pool.go, pkg/queue/worker.go,
// pkg/queue/orphan.go, pkg/queue/types.go — the worker loop and
// visibility-monitor shapes are kept; the orphan path is extended with
// retry-then-requeue (see visibility.go). The queue itself is held in
// memory: there is no claim transaction and no heartbeat.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// State is one of the states a QueuedRequest can occupy. Invariant
// (spec.md §8 #2): for all request ids visible to status lookup, the
// request is in exactly one of these.
type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
	// StateRetryPending is a request between MarkFailed's retry decision
	// and its delayed re-admission to the FIFO (spec.md §4.3: retried
	// requests are "re-enqueued after a small delay", not instantly).
	StateRetryPending State = "retry_pending"
)

// Tier controls FIFO reordering on admission (never preempts in-flight
// work, spec.md §4.3).
type Tier int

const (
	TierStandard Tier = iota
	TierPremium
	TierAdmin
)

// FileRef is a reference to an uploaded file attached to a request
// (spec.md §3).
type FileRef struct {
	FileID    uuid.UUID
	Filename  string
	MIMEType  string
	ByteSize  int64
	StoragePath string
	ExtractedContent string
}

// Request is the spec's QueuedRequest.
type Request struct {
	ID          uuid.UUID
	EnqueuedAt  time.Time
	State       State
	Attempt     int
	BotID       string // optional callback target; doubles as the Hub client id for WS-originated requests
	UserID      string
	ThreadID    string
	ChannelID   string
	MessageID   string
	RawMessage  string
	FileRefs    []FileRef
	Tier        Tier
	Interface   string // "web" | "discord" | "cli", spec.md §6

	// Per-request overrides, spec.md §4.4 priority 1. Nil means "not
	// specified"; the Preference Resolver falls through to the stored
	// user preference, then the route default.
	ModelOverride       *string
	TemperatureOverride *float64
	ThinkingOverride    *bool

	VisibilityDeadline time.Time
	Cancelled          bool
	Error              string

	cancelFunc context.CancelFunc
}

// Result is what a worker produces for a successfully processed
// request; opaque payload, interpreted by the caller (e.g. the API
// layer serializing a response).
type Result struct {
	Text         string
	TokensUsed   int
	ArtifactIDs  []uuid.UUID
}

// Executor processes one request to completion or failure. Implemented
// by api.TurnExecutor, which runs the Execution Pipeline
// (internal/pipeline) for each request.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Result, error)
}

var (
	// ErrFull is returned by Enqueue when the queue is at MAX_QUEUE_SIZE.
	ErrFull = errors.New("queue full")
	// ErrNotFound is returned when a request id is unknown to the queue.
	ErrNotFound = errors.New("request not found")
	// ErrNotInFlight is returned by MarkComplete/MarkFailed for a request
	// id that is not currently in-flight. Spec.md §9 notes the source
	// silently returns false here; this is a diagnostic signal, not a
	// normal control-flow error (Open Question resolution #3).
	ErrNotInFlight = errors.New("request not in flight")
	// ErrNoRequestsAvailable is returned by a non-blocking Dequeue when
	// the FIFO is empty.
	ErrNoRequestsAvailable = errors.New("no requests available")
)

// StatusRecord is what GetStatus returns for a request id.
type StatusRecord struct {
	ID      uuid.UUID
	State   State
	Attempt int
	Error   string
}
