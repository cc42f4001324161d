package store

import (
	"context"
	"time"
)

// ThreadMessage is one row of spec.md §3's ConversationThread.
type ThreadMessage struct {
	ThreadID   string
	Role       string
	Content    string
	TokenCount int
	ModelUsed  *string
	IsSummary  bool
	CreatedAt  time.Time
}

// ThreadRepository persists conversation messages keyed by
// (thread_id, message_timestamp) with range query by thread_id
// (spec.md §6 persisted state layout). Implements
// internal/pipeline.ConversationStore.
type ThreadRepository struct {
	store *Store
}

// NewThreadRepository builds a repository bound to store.
func NewThreadRepository(s *Store) *ThreadRepository {
	return &ThreadRepository{store: s}
}

// Append inserts one message.
func (r *ThreadRepository) Append(ctx context.Context, m ThreadMessage) error {
	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO conversation_messages (thread_id, role, content, token_count, model_used, is_summary)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ThreadID, m.Role, m.Content, m.TokenCount, m.ModelUsed, m.IsSummary)
	return err
}

// Range returns messages for threadID in chronological order.
func (r *ThreadRepository) Range(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT thread_id, role, content, token_count, model_used, is_summary, created_at
		FROM conversation_messages WHERE thread_id = $1 ORDER BY created_at`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ThreadMessage
	for rows.Next() {
		var m ThreadMessage
		if err := rows.Scan(&m.ThreadID, &m.Role, &m.Content, &m.TokenCount, &m.ModelUsed, &m.IsSummary, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecentTokenCount sums token_count across every stored message for
// threadID. Part of internal/pipeline.ConversationStore.
func (r *ThreadRepository) RecentTokenCount(ctx context.Context, threadID string) (int, error) {
	var total int
	err := r.store.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(token_count), 0) FROM conversation_messages WHERE thread_id = $1`,
		threadID).Scan(&total)
	return total, err
}

// Summarize deletes all but the last keepLastN messages for threadID and
// inserts summary as a synthetic system message in their place
// (spec.md §3/§4.5: "summarize all but the last 5 messages... delete the
// originals from storage, and insert a synthetic system summary
// message"). Runs as a single transaction.
func (r *ThreadRepository) Summarize(ctx context.Context, threadID string, keepLastN int, summary string) error {
	tx, err := r.store.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM conversation_messages
		WHERE thread_id = $1 AND id NOT IN (
			SELECT id FROM conversation_messages
			WHERE thread_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		)`, threadID, keepLastN)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO conversation_messages (thread_id, role, content, token_count, is_summary, created_at)
		VALUES ($1, 'system', $2, 0, true, COALESCE(
			(SELECT MIN(created_at) - interval '1 microsecond' FROM conversation_messages WHERE thread_id = $1),
			now()))`,
		threadID, summary)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
