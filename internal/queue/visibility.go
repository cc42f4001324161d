package queue

import (
	"context"
	"log/slog"
	"time"
)

// VisibilityMonitor fires at a fixed interval and fails any in-flight
// request whose visibility deadline has elapsed (spec.md §4.3, §5,
// §8 invariant #3). It runs independently of the worker pool so a
// worker crash can never leak an in-flight entry permanently.
//
// Adapted from pkg/queue/orphan.go: the teacher's orphan recovery is
// always terminal (markSessionTimedOut, no retry). Here, MarkFailed's
// retry-then-requeue semantics (queue.go) are reused so a reclaimed
// request gets the same MAX_RETRIES budget as one that failed for any
// other reason, per spec.md §4.3.
type VisibilityMonitor struct {
	queue    *Queue
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewVisibilityMonitor builds a monitor; it does not start until Start
// is called.
func NewVisibilityMonitor(q *Queue, interval time.Duration) *VisibilityMonitor {
	return &VisibilityMonitor{queue: q, interval: interval}
}

// Start launches the background loop. Idempotent.
func (m *VisibilityMonitor) Start(ctx context.Context) {
	if m.cancel != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.run(ctx)
}

// Stop signals the loop to exit and waits for it.
func (m *VisibilityMonitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
}

func (m *VisibilityMonitor) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep reclaims every overdue in-flight request. The single-owner
// semantics of MarkFailed (the in-flight map entry is deleted under the
// queue's mutex the instant either the monitor or the worker transitions
// it) means a worker finishing a request at the same moment the monitor
// fires races harmlessly: whichever caller wins the map deletion
// proceeds; the other's MarkComplete/MarkFailed call returns
// ErrNotInFlight, which is a diagnostic, not an error (spec.md §5,
// §9 Open Question resolution #3).
func (m *VisibilityMonitor) sweep() {
	now := time.Now()
	overdue := m.queue.overdueInFlight(now)
	for _, req := range overdue {
		if req.cancelFunc != nil {
			req.cancelFunc()
		}
		retried, err := m.queue.MarkFailed(req.ID, "visibility timeout")
		if err != nil {
			if err == ErrNotInFlight {
				slog.Debug("visibility sweep: request already transitioned", "request_id", req.ID)
				continue
			}
			slog.Error("visibility sweep: mark failed errored", "request_id", req.ID, "error", err)
			continue
		}
		if retried {
			slog.Warn("visibility timeout: request re-enqueued", "request_id", req.ID, "attempt", req.Attempt)
		} else {
			slog.Error("visibility timeout: request exhausted retries", "request_id", req.ID, "attempt", req.Attempt)
		}
	}
}
