package healthloop

import (
	"context"
	"log/slog"
	"time"
)

// MetricPoint is one (metric_type, timestamp) sample with a TTL stamp
// (spec.md §6: "Metrics storage: keyed by (metric_type, timestamp), with
// TTL attribute removed by the store after retention"). Grounded on
// original_source/monitoring-service/database.py's health_checks table
// shape, generalized from SQLite rows to a typed point.
type MetricPoint struct {
	MetricType string
	Timestamp  time.Time
	Value      float64
	TTL        time.Time
}

// SystemMetrics is the subset of host metrics sampled each tick
// (spec.md §4.2/§4.7).
type SystemMetrics interface {
	Sample(ctx context.Context) (map[string]float64, error)
}

// MetricsStore persists metric points keyed by (metric_type, timestamp).
type MetricsStore interface {
	Write(ctx context.Context, points []MetricPoint) error
}

// MetricsWriterConfig parameterizes the writer loop (spec.md §6).
type MetricsWriterConfig struct {
	WriteInterval time.Duration // METRICS_WRITE_INTERVAL_SECONDS, default 5s
	RetentionDays int           // METRICS_RETENTION_DAYS
}

// DefaultMetricsWriterConfig matches spec.md's stated default interval.
func DefaultMetricsWriterConfig(retentionDays int) MetricsWriterConfig {
	return MetricsWriterConfig{WriteInterval: 5 * time.Second, RetentionDays: retentionDays}
}

// MetricsWriter pulls one snapshot from the system metrics sampler and
// one from the health checker every tick, stamps each with a TTL, and
// persists them (spec.md §4.7).
type MetricsWriter struct {
	cfg     MetricsWriterConfig
	system  SystemMetrics
	checker *Checker
	store   MetricsStore

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMetricsWriter wires the samplers and store.
func NewMetricsWriter(cfg MetricsWriterConfig, system SystemMetrics, checker *Checker, store MetricsStore) *MetricsWriter {
	return &MetricsWriter{cfg: cfg, system: system, checker: checker, store: store}
}

// Start launches the writer loop. A no-op if already running.
func (w *MetricsWriter) Start(ctx context.Context) {
	if w.cancel != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.loop(ctx)
}

// Stop halts the loop and waits for it to exit.
func (w *MetricsWriter) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel = nil
}

func (w *MetricsWriter) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.cfg.WriteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.writeOnce(ctx)
		}
	}
}

func (w *MetricsWriter) writeOnce(ctx context.Context) {
	now := time.Now()
	ttl := now.AddDate(0, 0, w.cfg.RetentionDays)

	var points []MetricPoint

	sysValues, err := w.system.Sample(ctx)
	if err != nil {
		slog.Warn("metrics writer: system sample failed", "error", err)
	} else {
		for metricType, value := range sysValues {
			points = append(points, MetricPoint{MetricType: metricType, Timestamp: now, Value: value, TTL: ttl})
		}
	}

	for service, status := range w.checker.Snapshot() {
		healthValue := 0.0
		if status.Healthy {
			healthValue = 1.0
		}
		points = append(points,
			MetricPoint{MetricType: "health." + service, Timestamp: now, Value: healthValue, TTL: ttl},
			MetricPoint{MetricType: "uptime_pct." + service, Timestamp: now, Value: status.UptimePct, TTL: ttl},
		)
	}

	if len(points) == 0 {
		return
	}
	if err := w.store.Write(ctx, points); err != nil {
		slog.Error("metrics writer: persist failed", "error", err)
	}
}
