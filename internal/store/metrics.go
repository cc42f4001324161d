package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/nexuscore/nexus/internal/healthloop"
)

// MetricsRepository persists MetricPoint rows keyed by
// (metric_type, timestamp), queryable by (metric_type, time_range)
// (spec.md §6). Implements internal/healthloop.MetricsStore.
type MetricsRepository struct {
	store *Store
}

// NewMetricsRepository builds a repository bound to store.
func NewMetricsRepository(s *Store) *MetricsRepository {
	return &MetricsRepository{store: s}
}

// Write persists a batch of points in one round trip.
func (r *MetricsRepository) Write(ctx context.Context, points []healthloop.MetricPoint) error {
	if len(points) == 0 {
		return nil
	}
	batch := make([][]any, len(points))
	for i, p := range points {
		batch[i] = []any{p.MetricType, p.Timestamp, p.Value, p.TTL}
	}
	_, err := r.store.pool.CopyFrom(ctx,
		pgx.Identifier{"metric_points"},
		[]string{"metric_type", "at", "value", "ttl_at"},
		pgx.CopyFromRows(batch),
	)
	return err
}

// PurgeExpired removes points past their TTL (spec.md §6: "TTL attribute
// removed by the store after retention").
func (r *MetricsRepository) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.store.pool.Exec(ctx, `DELETE FROM metric_points WHERE ttl_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Query returns points for metricType within [since, until].
func (r *MetricsRepository) Query(ctx context.Context, metricType string, since, until int64) ([]healthloop.MetricPoint, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT metric_type, at, value, ttl_at FROM metric_points
		WHERE metric_type = $1 AND EXTRACT(EPOCH FROM at) BETWEEN $2 AND $3
		ORDER BY at`, metricType, since, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []healthloop.MetricPoint
	for rows.Next() {
		var p healthloop.MetricPoint
		if err := rows.Scan(&p.MetricType, &p.Timestamp, &p.Value, &p.TTL); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
