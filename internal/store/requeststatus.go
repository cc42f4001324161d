package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RequestStatusRow is spec.md §3's QueuedRequest persisted for durability
// across restarts and for GET /status/{request_id} after the in-memory
// queue has dropped the entry.
type RequestStatusRow struct {
	RequestID    uuid.UUID
	UserID       string
	ThreadID     string
	State        string
	Attempt      int
	EnqueuedAt   time.Time
	CompletedAt  *time.Time
	ErrorMessage *string
}

// RequestStatusRepository mirrors the in-memory Queue's status records to
// durable storage so GET /status/{request_id} survives a restart.
type RequestStatusRepository struct {
	store *Store
}

// NewRequestStatusRepository builds a repository bound to store.
func NewRequestStatusRepository(s *Store) *RequestStatusRepository {
	return &RequestStatusRepository{store: s}
}

// Upsert records the latest state transition for a request.
func (r *RequestStatusRepository) Upsert(ctx context.Context, row RequestStatusRow) error {
	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO request_status (request_id, user_id, thread_id, state, attempt, enqueued_at, completed_at, error_message)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (request_id) DO UPDATE SET
			state = EXCLUDED.state,
			attempt = EXCLUDED.attempt,
			completed_at = EXCLUDED.completed_at,
			error_message = EXCLUDED.error_message`,
		row.RequestID, row.UserID, row.ThreadID, row.State, row.Attempt,
		row.EnqueuedAt, row.CompletedAt, row.ErrorMessage)
	return err
}

// Get loads a request's last known status.
func (r *RequestStatusRepository) Get(ctx context.Context, requestID uuid.UUID) (RequestStatusRow, error) {
	var row RequestStatusRow
	err := r.store.pool.QueryRow(ctx, `
		SELECT request_id, user_id, thread_id, state, attempt, enqueued_at, completed_at, error_message
		FROM request_status WHERE request_id = $1`, requestID).
		Scan(&row.RequestID, &row.UserID, &row.ThreadID, &row.State, &row.Attempt,
			&row.EnqueuedAt, &row.CompletedAt, &row.ErrorMessage)
	return row, err
}
