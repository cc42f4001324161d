package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ArtifactRepository persists extracted artifacts to the filesystem and
// registers their metadata (spec.md §3 Artifact, §6: "TEMP_ARTIFACT_DIR
// for artifacts (≤ 12h TTL)"). Implements internal/pipeline.ArtifactStore.
type ArtifactRepository struct {
	store *Store
	dir   string
}

// NewArtifactRepository builds a repository rooted at dir (TEMP_ARTIFACT_DIR).
func NewArtifactRepository(s *Store, dir string) *ArtifactRepository {
	return &ArtifactRepository{store: s, dir: dir}
}

// Save writes content to dir/<artifact_id>-<filename> and records
// metadata. Returns the generated artifact id.
func (r *ArtifactRepository) Save(ctx context.Context, filename, content, artifactType string) (uuid.UUID, error) {
	id := uuid.New()
	path := filepath.Join(r.dir, fmt.Sprintf("%s-%s", id, filename))

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return uuid.UUID{}, fmt.Errorf("write artifact: %w", err)
	}

	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO artifacts (artifact_id, filename, storage_path, size_bytes, artifact_type)
		VALUES ($1,$2,$3,$4,$5)`,
		id, filename, path, len(content), artifactType)
	if err != nil {
		_ = os.Remove(path)
		return uuid.UUID{}, fmt.Errorf("record artifact metadata: %w", err)
	}
	return id, nil
}

// PurgeExpired removes artifact rows and files older than ttlHours
// (spec.md §3: "fixed TTL (default 12h)").
func (r *ArtifactRepository) PurgeExpired(ctx context.Context, ttlHours int) (int, error) {
	rows, err := r.store.pool.Query(ctx,
		`SELECT artifact_id, storage_path FROM artifacts WHERE created_at <= now() - ($1 || ' hours')::interval`,
		ttlHours)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var toDelete []uuid.UUID
	var paths []string
	for rows.Next() {
		var id uuid.UUID
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			return 0, err
		}
		toDelete = append(toDelete, id)
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, path := range paths {
		_ = os.Remove(path)
	}
	if len(toDelete) == 0 {
		return 0, nil
	}
	_, err = r.store.pool.Exec(ctx, `DELETE FROM artifacts WHERE artifact_id = ANY($1)`, toDelete)
	if err != nil {
		return 0, err
	}
	return len(toDelete), nil
}
