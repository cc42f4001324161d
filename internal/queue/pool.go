package queue

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// PoolConfig controls the worker pool's size and poll cadence. Grounded
// on pkg/config/queue.go's QueueConfig shape.
type PoolConfig struct {
	WorkerCount             int
	PollInterval            time.Duration
	PollIntervalJitter      time.Duration
	GracefulShutdownTimeout time.Duration
}

// DefaultPoolConfig mirrors the teacher's DefaultQueueConfig defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		WorkerCount:             5,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		GracefulShutdownTimeout: 15 * time.Minute,
	}
}

// Pool is a fixed set of long-running worker loops, each calling
// Dequeue → Execute → MarkComplete/MarkFailed (spec.md §4.3).
// Grounded on pkg/queue/pool.go (Start/Stop idempotency via a started
// flag and stopOnce, WaitGroup-tracked workers).
type Pool struct {
	queue    *Queue
	executor Executor
	cfg      PoolConfig

	workers []*worker
	stopCh  chan struct{}
	stopOnce sync.Once
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewPool builds a Pool. Call Start to launch workers.
func NewPool(q *Queue, executor Executor, cfg PoolConfig) *Pool {
	return &Pool{queue: q, executor: executor, cfg: cfg, stopCh: make(chan struct{})}
}

// Start launches WorkerCount worker goroutines. Idempotent.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for i := 0; i < p.cfg.WorkerCount; i++ {
		w := &worker{id: i, pool: p}
		p.workers = append(p.workers, w)
		p.wg.Add(1)
		go w.run(ctx)
	}
	slog.Info("worker pool started", "worker_count", p.cfg.WorkerCount)
}

// Stop signals all workers to finish their current request and exit,
// then waits for every worker to return. The wait has no time bound.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	slog.Info("worker pool stopped")
}

// pollInterval applies jitter via math/rand/v2, exactly as
// pkg/queue/worker.go's pollInterval() does: base - jitter + rand up to
// 2*jitter, to avoid thundering-herd polling across workers.
func (p *Pool) pollInterval() time.Duration {
	base, jitter := p.cfg.PollInterval, p.cfg.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	return base - jitter + time.Duration(rand.Int64N(int64(2*jitter)))
}

type worker struct {
	id   int
	pool *Pool
}

func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()
	for {
		select {
		case <-w.pool.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		req, err := w.pool.queue.Dequeue()
		if err != nil {
			select {
			case <-time.After(w.pool.pollInterval()):
			case <-w.pool.stopCh:
				return
			case <-ctx.Done():
				return
			}
			continue
		}
		w.process(ctx, req)
	}
}

func (w *worker) process(ctx context.Context, req *Request) {
	reqCtx, cancel := context.WithCancel(ctx)
	w.pool.queue.RegisterCancelFunc(req.ID, cancel)
	defer cancel()

	result, err := w.pool.executor.Execute(reqCtx, req)
	if err != nil {
		retried, markErr := w.pool.queue.MarkFailed(req.ID, err.Error())
		if markErr != nil {
			slog.Error("worker: mark failed errored", "worker", w.id, "request_id", req.ID, "error", markErr)
			return
		}
		slog.Warn("worker: request failed", "worker", w.id, "request_id", req.ID, "retried", retried, "error", err)
		return
	}
	_ = result
	if err := w.pool.queue.MarkComplete(req.ID); err != nil {
		slog.Error("worker: mark complete errored", "worker", w.id, "request_id", req.ID, "error", err)
	}
}

// Health reports a lightweight snapshot for the admin/monitoring surface.
type Health struct {
	WorkerCount int
	QueueSize   int64
	IsHealthy   bool
}

func (p *Pool) Health() Health {
	size := p.queue.Size()
	return Health{
		WorkerCount: p.cfg.WorkerCount,
		QueueSize:   size,
		IsHealthy:   size < int64(p.queue.cfg.MaxQueueSize),
	}
}
