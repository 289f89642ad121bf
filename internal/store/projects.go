package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spectreweave/spectreweave/internal/schema"
)

// CreateProject inserts a new project owned by owner.
func (s *Store) CreateProject(ctx context.Context, owner string, p *schema.Project) error {
	p.Owner = owner
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}

	_, err := s.exec(ctx, `
		INSERT INTO projects (id, owner, title, description, project_type,
			target_age, book_theme, created_at, updated_at, deadline)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, owner, p.Title, p.Description, p.ProjectType,
		p.TargetAge, p.BookTheme,
		p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339),
		timeToNullString(p.Deadline),
	)
	if err != nil {
		return fmt.Errorf("failed to create project %s: %w", p.ID, err)
	}
	return nil
}

// GetProject retrieves a project by id, scoped to owner.
// Returns ErrNotFound if no visible row exists.
func (s *Store) GetProject(ctx context.Context, owner, id string) (*schema.Project, error) {
	row := s.queryRow(ctx, `
		SELECT id, owner, title, description, project_type, target_age,
		       book_theme, created_at, updated_at, deadline
		FROM projects
		WHERE id = ? AND owner = ?`, id, owner)

	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", id, err)
	}
	return p, nil
}

// ListProjects returns all projects for owner, most recently updated first.
func (s *Store) ListProjects(ctx context.Context, owner string) ([]*schema.Project, error) {
	rows, err := s.query(ctx, `
		SELECT id, owner, title, description, project_type, target_age,
		       book_theme, created_at, updated_at, deadline
		FROM projects
		WHERE owner = ?
		ORDER BY updated_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*schema.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// UpdateProject rewrites the mutable fields of a project.
// Returns ErrNotFound if the row doesn't exist for owner.
func (s *Store) UpdateProject(ctx context.Context, owner string, p *schema.Project) error {
	p.Owner = owner
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}

	res, err := s.exec(ctx, `
		UPDATE projects SET
			title = ?, description = ?, project_type = ?, target_age = ?,
			book_theme = ?, updated_at = ?, deadline = ?
		WHERE id = ? AND owner = ?`,
		p.Title, p.Description, p.ProjectType, p.TargetAge,
		p.BookTheme, p.UpdatedAt.Format(time.RFC3339), timeToNullString(p.Deadline),
		p.ID, owner,
	)
	if err != nil {
		return fmt.Errorf("failed to update project %s: %w", p.ID, err)
	}
	return requireRow(res, p.ID)
}

// DeleteProject removes a project and, via cascade, its chapters,
// characters, and pages. Returns ErrNotFound if nothing was deleted.
func (s *Store) DeleteProject(ctx context.Context, owner, id string) error {
	res, err := s.exec(ctx, `DELETE FROM projects WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	return requireRow(res, id)
}

// projectVisible reports whether the project exists and belongs to owner.
func (s *Store) projectVisible(ctx context.Context, owner, projectID string) error {
	var one int
	err := s.queryRow(ctx,
		`SELECT 1 FROM projects WHERE id = ? AND owner = ?`, projectID, owner).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check project %s: %w", projectID, err)
	}
	return nil
}

// requireRow converts a zero-row write into ErrNotFound.
func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row scanner) (*schema.Project, error) {
	var p schema.Project
	var createdAt, updatedAt string
	var deadline sql.NullString

	err := row.Scan(&p.ID, &p.Owner, &p.Title, &p.Description, &p.ProjectType,
		&p.TargetAge, &p.BookTheme, &createdAt, &updatedAt, &deadline)
	if err != nil {
		return nil, err
	}

	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	p.Deadline = nullStringToTime(deadline)
	return &p, nil
}
