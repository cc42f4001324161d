package queue

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Config bounds the queue's size and retry/visibility behavior.
type Config struct {
	MaxQueueSize       int
	MaxRetries         int
	RetryDelay         time.Duration
	VisibilityTimeout  time.Duration
	RetentionSize      int // bounded retention of completed/failed records
}

// DefaultConfig mirrors the teacher's DefaultQueueConfig shape
// (pkg/config/queue.go) adapted to spec.md §6's env knobs.
func DefaultConfig() Config {
	return Config{
		MaxQueueSize:      1000,
		MaxRetries:        3,
		RetryDelay:        2 * time.Second,
		VisibilityTimeout: 10 * time.Second,
		RetentionSize:     500,
	}
}

// Queue is the bounded FIFO plus its in-flight/completed/failed tracking.
// Spec.md §5: "Request Queue internals are mutex-protected; the
// in-flight map, completed map, failed map, and the FIFO are one
// logical unit." size is additionally tracked via atomic.Int64 so an
// external reader (admin SSE snapshot) never races the worker loop on a
// torn read (spec.md §9 Open Question, resolution #2 in SPEC_FULL.md).
type Queue struct {
	mu sync.Mutex

	fifoByTier map[Tier]*list.List // each element is *Request
	inFlight   map[uuid.UUID]*Request
	completed  map[uuid.UUID]*Request
	failed     map[uuid.UUID]*Request
	retrying   map[uuid.UUID]*Request // StateRetryPending: between MarkFailed and delayed re-admission
	retentionOrder *list.List // uuid.UUID, oldest first, for LRU drop

	size atomic.Int64

	cfg Config
}

// New builds an empty Queue.
func New(cfg Config) *Queue {
	return &Queue{
		fifoByTier: map[Tier]*list.List{
			TierAdmin:    list.New(),
			TierPremium:  list.New(),
			TierStandard: list.New(),
		},
		inFlight:       make(map[uuid.UUID]*Request),
		completed:      make(map[uuid.UUID]*Request),
		failed:         make(map[uuid.UUID]*Request),
		retrying:       make(map[uuid.UUID]*Request),
		retentionOrder: list.New(),
		cfg:            cfg,
	}
}

// tierOrder is the admission-reordering priority: admin dequeues before
// premium before standard, but never preempts already in-flight work
// (spec.md §4.3).
var tierOrder = []Tier{TierAdmin, TierPremium, TierStandard}

// IsFull reports whether the queue is at MAX_QUEUE_SIZE.
func (q *Queue) IsFull() bool {
	return q.size.Load() >= int64(q.cfg.MaxQueueSize)
}

// Size returns the current queued+in-flight count via a single atomic
// read (no FIFO-map traversal, no lock).
func (q *Queue) Size() int64 {
	return q.size.Load()
}

// Enqueue admits a new request. Returns ErrFull at MAX_QUEUE_SIZE
// (spec.md §8 boundary: a request AT MAX_QUEUE_SIZE rejects the next one).
func (q *Queue) Enqueue(req *Request) (uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size.Load() >= int64(q.cfg.MaxQueueSize) {
		return uuid.Nil, ErrFull
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.State = StateQueued
	req.EnqueuedAt = time.Now()
	q.fifoByTier[req.Tier].PushBack(req)
	q.size.Add(1)
	return req.ID, nil
}

// reEnqueueLocked re-admits a retried request at the back of its tier's
// FIFO without affecting the atomic size counter a second time (the
// request never left "in the system", only moved from retry-pending
// back to queued). Caller must hold mu.
func (q *Queue) reEnqueueLocked(req *Request) {
	req.State = StateQueued
	req.VisibilityDeadline = time.Time{}
	q.fifoByTier[req.Tier].PushBack(req)
}

// scheduleRetryLocked parks a failed-but-retriable request in
// StateRetryPending and arranges for it to be re-admitted to the FIFO
// after cfg.RetryDelay (spec.md §4.3: retried requests are "re-enqueued
// after a small delay", not instantly). Caller must hold mu.
func (q *Queue) scheduleRetryLocked(req *Request) {
	req.State = StateRetryPending
	q.retrying[req.ID] = req
	time.AfterFunc(q.cfg.RetryDelay, func() { q.admitRetry(req.ID) })
}

// admitRetry moves a request out of retry-pending and onto its tier's
// FIFO, unless it was cancelled while waiting (in which case Cancel has
// already removed it from q.retrying and there is nothing to do).
func (q *Queue) admitRetry(id uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	req, ok := q.retrying[id]
	if !ok {
		return
	}
	delete(q.retrying, id)
	q.reEnqueueLocked(req)
}

// Dequeue pops the next request in tier priority order (admin > premium
// > standard), FIFO within a tier. Non-blocking: returns
// ErrNoRequestsAvailable immediately if empty.
func (q *Queue) Dequeue() (*Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, tier := range tierOrder {
		fifo := q.fifoByTier[tier]
		if front := fifo.Front(); front != nil {
			fifo.Remove(front)
			req := front.Value.(*Request)
			req.State = StateProcessing
			req.VisibilityDeadline = time.Now().Add(q.cfg.VisibilityTimeout)
			q.inFlight[req.ID] = req
			return req, nil
		}
	}
	return nil, ErrNoRequestsAvailable
}

// MarkComplete transitions an in-flight request to completed. Repeat
// calls after the first are no-ops (spec.md §8 idempotence).
func (q *Queue) MarkComplete(id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.completed[id]; ok {
		return nil // already completed: no-op, not an error
	}
	req, ok := q.inFlight[id]
	if !ok {
		return ErrNotInFlight
	}
	delete(q.inFlight, id)
	req.State = StateCompleted
	q.completed[id] = req
	q.size.Add(-1)
	q.trackRetentionLocked(id)
	return nil
}

// MarkFailed transitions an in-flight request to failed. If
// attempt < MaxRetries, the request is parked in StateRetryPending and
// re-enqueued after cfg.RetryDelay (spec.md §4.3 retries) and retried
// is reported true.
func (q *Queue) MarkFailed(id uuid.UUID, cause string) (retried bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	req, ok := q.inFlight[id]
	if !ok {
		return false, ErrNotInFlight
	}
	delete(q.inFlight, id)
	req.Attempt++
	req.Error = cause

	if req.Attempt < q.cfg.MaxRetries {
		q.scheduleRetryLocked(req)
		return true, nil
	}
	req.State = StateFailed
	q.failed[id] = req
	q.size.Add(-1)
	q.trackRetentionLocked(id)
	return false, nil
}

// Cancel cancels a queued request directly (failed{cancelled:true}).
// A processing request cannot be cancelled via this API — it is
// cancelled via the per-request cancellation token (spec.md §4.3, §5).
func (q *Queue) Cancel(id uuid.UUID) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, tier := range tierOrder {
		fifo := q.fifoByTier[tier]
		for e := fifo.Front(); e != nil; e = e.Next() {
			req := e.Value.(*Request)
			if req.ID == id {
				fifo.Remove(e)
				req.State = StateFailed
				req.Cancelled = true
				req.Error = "cancelled"
				q.failed[id] = req
				q.size.Add(-1)
				q.trackRetentionLocked(id)
				return true, nil
			}
		}
	}
	if req, ok := q.retrying[id]; ok {
		delete(q.retrying, id)
		req.State = StateFailed
		req.Cancelled = true
		req.Error = "cancelled"
		q.failed[id] = req
		q.size.Add(-1)
		q.trackRetentionLocked(id)
		return true, nil
	}
	if req, ok := q.inFlight[id]; ok && req.cancelFunc != nil {
		req.cancelFunc()
		return false, nil // processing: signalled via cancellation token, not a direct state flip
	}
	return false, nil
}

// RegisterCancelFunc attaches a cancellation function to an in-flight
// request so Cancel() can signal the agent loop (spec.md §4.5's
// cancellation token).
func (q *Queue) RegisterCancelFunc(id uuid.UUID, cancel context.CancelFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if req, ok := q.inFlight[id]; ok {
		req.cancelFunc = cancel
	}
}

// GetStatus returns the status record for id, searching in-flight,
// completed, and failed (queued requests are found by scanning the
// FIFOs, which is rare enough — status lookups are dominated by
// in-flight/terminal requests in practice).
func (q *Queue) GetStatus(id uuid.UUID) (StatusRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if req, ok := q.inFlight[id]; ok {
		return StatusRecord{ID: id, State: req.State, Attempt: req.Attempt}, nil
	}
	if req, ok := q.retrying[id]; ok {
		return StatusRecord{ID: id, State: req.State, Attempt: req.Attempt}, nil
	}
	if req, ok := q.completed[id]; ok {
		return StatusRecord{ID: id, State: req.State, Attempt: req.Attempt}, nil
	}
	if req, ok := q.failed[id]; ok {
		return StatusRecord{ID: id, State: req.State, Attempt: req.Attempt, Error: req.Error}, nil
	}
	for _, tier := range tierOrder {
		fifo := q.fifoByTier[tier]
		for e := fifo.Front(); e != nil; e = e.Next() {
			req := e.Value.(*Request)
			if req.ID == id {
				return StatusRecord{ID: id, State: req.State, Attempt: req.Attempt}, nil
			}
		}
	}
	return StatusRecord{}, ErrNotFound
}

// trackRetentionLocked bounds completed/failed map growth: the last N
// terminal records are kept, older ones dropped LRU (spec.md §4.3
// retention). Caller must hold mu.
func (q *Queue) trackRetentionLocked(id uuid.UUID) {
	q.retentionOrder.PushBack(id)
	for q.retentionOrder.Len() > q.cfg.RetentionSize {
		oldest := q.retentionOrder.Remove(q.retentionOrder.Front()).(uuid.UUID)
		delete(q.completed, oldest)
		delete(q.failed, oldest)
	}
}

// overdueInFlight returns the in-flight requests whose deadline
// has elapsed. Used by the visibility monitor (visibility.go). Caller
// must NOT hold mu; this method acquires it itself.
func (q *Queue) overdueInFlight(now time.Time) []*Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	var overdue []*Request
	for _, req := range q.inFlight {
		if now.After(req.VisibilityDeadline) {
			overdue = append(overdue, req)
		}
	}
	return overdue
}
