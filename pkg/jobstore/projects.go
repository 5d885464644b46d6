package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CreateProject inserts a new project scoped to tenantID and returns it
// with a generated ID and timestamp.
func (s *Store) CreateProject(ctx context.Context, p Project) (*Project, error) {
	if p.TenantID == "" {
		return nil, NewValidationError("tenant_id", "must not be empty")
	}
	if p.Name == "" {
		return nil, NewValidationError("name", "must not be empty")
	}
	if p.LocalPath == "" {
		return nil, NewValidationError("local_path", "must not be empty")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	const q = `
		INSERT INTO projects (id, tenant_id, name, remote_url, local_path)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`
	err := s.db.QueryRowContext(ctx, q, p.ID, p.TenantID, p.Name, nullIfEmpty(p.RemoteURL), p.LocalPath).
		Scan(&p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("jobstore: creating project: %w", err)
	}
	return &p, nil
}

// GetProject fetches a project by ID, scoped to tenantID so a caller can
// never read across tenant boundaries.
func (s *Store) GetProject(ctx context.Context, tenantID, id string) (*Project, error) {
	const q = `
		SELECT id, tenant_id, name, COALESCE(remote_url, ''), local_path, created_at,
		       COALESCE(published_url, ''), published_at, COALESCE(published_job_id, '')
		FROM projects WHERE id = $1 AND tenant_id = $2`
	var p Project
	err := s.db.QueryRowContext(ctx, q, id, tenantID).Scan(
		&p.ID, &p.TenantID, &p.Name, &p.RemoteURL, &p.LocalPath, &p.CreatedAt,
		&p.PublishedURL, &p.PublishedAt, &p.PublishedJobID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobstore: fetching project: %w", err)
	}
	return &p, nil
}

// ListProjects returns every project owned by tenantID, most recent first.
func (s *Store) ListProjects(ctx context.Context, tenantID string) ([]Project, error) {
	const q = `
		SELECT id, tenant_id, name, COALESCE(remote_url, ''), local_path, created_at,
		       COALESCE(published_url, ''), published_at, COALESCE(published_job_id, '')
		FROM projects WHERE tenant_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, fmt.Errorf("jobstore: listing projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.RemoteURL, &p.LocalPath, &p.CreatedAt,
			&p.PublishedURL, &p.PublishedAt, &p.PublishedJobID); err != nil {
			return nil, fmt.Errorf("jobstore: scanning project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkPublished records the project's latest successful publish (spec §4.7).
func (s *Store) MarkPublished(ctx context.Context, tenantID, id, previewURL, jobID string) error {
	const q = `
		UPDATE projects SET published_url = $1, published_at = now(), published_job_id = $2
		WHERE id = $3 AND tenant_id = $4`
	res, err := s.db.ExecContext(ctx, q, previewURL, jobID, id, tenantID)
	if err != nil {
		return fmt.Errorf("jobstore: marking project published: %w", err)
	}
	return requireOneRow(res)
}

// DeleteProject removes a project and, via ON DELETE CASCADE, every job
// and event that belongs to it.
func (s *Store) DeleteProject(ctx context.Context, tenantID, id string) error {
	const q = `DELETE FROM projects WHERE id = $1 AND tenant_id = $2`
	res, err := s.db.ExecContext(ctx, q, id, tenantID)
	if err != nil {
		return fmt.Errorf("jobstore: deleting project: %w", err)
	}
	return requireOneRow(res)
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("jobstore: checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
