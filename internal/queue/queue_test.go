package queue

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxQueueSize = 10
	cfg.MaxRetries = 2
	cfg.RetryDelay = 20 * time.Millisecond
	return cfg
}

func TestQueue_EnqueueDequeueFIFO(t *testing.T) {
	q := New(testConfig())

	id1, err := q.Enqueue(&Request{Tier: TierStandard})
	require.NoError(t, err)
	id2, err := q.Enqueue(&Request{Tier: TierStandard})
	require.NoError(t, err)

	first, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, id1, first.ID)

	second, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, id2, second.ID)

	_, err = q.Dequeue()
	assert.ErrorIs(t, err, ErrNoRequestsAvailable)
}

func TestQueue_TierPriority(t *testing.T) {
	q := New(testConfig())

	_, err := q.Enqueue(&Request{Tier: TierStandard})
	require.NoError(t, err)
	adminID, err := q.Enqueue(&Request{Tier: TierAdmin})
	require.NoError(t, err)

	next, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, adminID, next.ID, "admin tier dequeues ahead of standard even though it was enqueued second")
}

func TestQueue_Full(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 1
	q := New(cfg)

	_, err := q.Enqueue(&Request{Tier: TierStandard})
	require.NoError(t, err)

	_, err = q.Enqueue(&Request{Tier: TierStandard})
	assert.ErrorIs(t, err, ErrFull)
}

func TestQueue_MarkFailed_RetryIsDelayedNotImmediate(t *testing.T) {
	q := New(testConfig())

	id, err := q.Enqueue(&Request{Tier: TierStandard})
	require.NoError(t, err)
	req, err := q.Dequeue()
	require.NoError(t, err)
	require.Equal(t, id, req.ID)

	retried, err := q.MarkFailed(id, "boom")
	require.NoError(t, err)
	assert.True(t, retried)

	status, err := q.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, StateRetryPending, status.State, "retried request must not be immediately requeued")

	_, err = q.Dequeue()
	assert.ErrorIs(t, err, ErrNoRequestsAvailable, "retry-pending request is not yet on the FIFO")

	require.Eventually(t, func() bool {
		status, err := q.GetStatus(id)
		return err == nil && status.State == StateQueued
	}, time.Second, 2*time.Millisecond, "request should be re-admitted to the FIFO after RetryDelay elapses")

	requeued, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, id, requeued.ID)
	assert.Equal(t, 1, requeued.Attempt)
}

func TestQueue_MarkFailed_ExhaustsRetriesAfterMaxAttempts(t *testing.T) {
	cfg := testConfig()
	cfg.RetryDelay = time.Millisecond
	q := New(cfg)

	id, err := q.Enqueue(&Request{Tier: TierStandard})
	require.NoError(t, err)

	for attempt := 0; attempt < cfg.MaxRetries-1; attempt++ {
		req, err := q.Dequeue()
		require.NoError(t, err)
		require.Equal(t, id, req.ID)

		retried, err := q.MarkFailed(id, "boom")
		require.NoError(t, err)
		require.True(t, retried, "attempt %d should still be retriable", attempt)

		require.Eventually(t, func() bool {
			status, err := q.GetStatus(id)
			return err == nil && status.State == StateQueued
		}, time.Second, time.Millisecond)
	}

	req, err := q.Dequeue()
	require.NoError(t, err)
	retried, err := q.MarkFailed(id, "boom")
	require.NoError(t, err)
	assert.False(t, retried, "request should exhaust its retry budget on the final attempt")

	status, err := q.GetStatus(req.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, status.State)
}

func TestQueue_MarkFailed_NotInFlight(t *testing.T) {
	q := New(testConfig())
	_, err := q.MarkFailed(uuid.New(), "boom")
	assert.ErrorIs(t, err, ErrNotInFlight)
}

func TestQueue_Cancel_RetryPendingRequestIsRemovedFromFIFOReadmission(t *testing.T) {
	q := New(testConfig())

	id, err := q.Enqueue(&Request{Tier: TierStandard})
	require.NoError(t, err)
	_, err = q.Dequeue()
	require.NoError(t, err)

	retried, err := q.MarkFailed(id, "boom")
	require.NoError(t, err)
	require.True(t, retried)

	ok, err := q.Cancel(id)
	require.NoError(t, err)
	assert.True(t, ok)

	status, err := q.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, "cancelled", status.Error)

	// Let the scheduled retry timer fire; it must not resurrect the
	// cancelled request onto the FIFO.
	time.Sleep(50 * time.Millisecond)
	_, err = q.Dequeue()
	assert.ErrorIs(t, err, ErrNoRequestsAvailable)
}

func TestQueue_MarkComplete_IdempotentAfterFirstCall(t *testing.T) {
	q := New(testConfig())

	id, err := q.Enqueue(&Request{Tier: TierStandard})
	require.NoError(t, err)
	_, err = q.Dequeue()
	require.NoError(t, err)

	require.NoError(t, q.MarkComplete(id))
	assert.NoError(t, q.MarkComplete(id), "repeat completion is a no-op, not an error")
}
