package hub

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/nexus/internal/errs"
)

// askUserWaiter is one pending ask_user suspension point.
type askUserWaiter struct {
	responseCh chan string
	cancelCh   chan struct{}
	once       sync.Once
}

// wait blocks for a response, a cancellation, or the bounded timeout
// (spec.md §4.5: default 300s), whichever comes first.
func (w *askUserWaiter) wait(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp := <-w.responseCh:
		return resp, nil
	case <-w.cancelCh:
		return "", errs.ErrCancelled
	case <-ctx.Done():
		return "", errs.ErrCancelled
	case <-timer.C:
		return "", errs.ErrAskUserTimeout
	}
}

// askUserRegistry maps request id → waiter. A per-request map (not
// per-connection) so cancellation of the turn can reach the waiter even
// if the client disconnects mid-wait.
type askUserRegistry struct {
	mu      sync.Mutex
	waiters map[uuid.UUID]*askUserWaiter
}

func newAskUserRegistry() *askUserRegistry {
	return &askUserRegistry{waiters: make(map[uuid.UUID]*askUserWaiter)}
}

func (r *askUserRegistry) register(requestID uuid.UUID) *askUserWaiter {
	w := &askUserWaiter{responseCh: make(chan string, 1), cancelCh: make(chan struct{})}
	r.mu.Lock()
	r.waiters[requestID] = w
	r.mu.Unlock()
	return w
}

func (r *askUserRegistry) respond(requestID uuid.UUID, response string) {
	r.mu.Lock()
	w, ok := r.waiters[requestID]
	r.mu.Unlock()
	if !ok {
		return
	}
	select {
	case w.responseCh <- response:
	default:
	}
}

func (r *askUserRegistry) cancel(requestID uuid.UUID) {
	r.mu.Lock()
	w, ok := r.waiters[requestID]
	r.mu.Unlock()
	if !ok {
		return
	}
	w.once.Do(func() { close(w.cancelCh) })
}

func (r *askUserRegistry) cleanup(requestID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.waiters, requestID)
}
