package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spectreweave/spectreweave/internal/schema"
)

// CreateChapter inserts a chapter. A negative Position appends the chapter
// at the end of the project's sequence.
func (s *Store) CreateChapter(ctx context.Context, owner string, c *schema.Chapter) error {
	if err := s.projectVisible(ctx, owner, c.ProjectID); err != nil {
		return err
	}

	if c.Position < 0 {
		var next sql.NullInt64
		err := s.queryRow(ctx,
			`SELECT MAX(position) + 1 FROM chapters WHERE project_id = ?`,
			c.ProjectID).Scan(&next)
		if err != nil {
			return fmt.Errorf("failed to compute next position: %w", err)
		}
		if next.Valid {
			c.Position = int(next.Int64)
		} else {
			c.Position = 0
		}
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid chapter: %w", err)
	}

	_, err := s.exec(ctx, `
		INSERT INTO chapters (id, project_id, title, content, framework,
			position, word_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.Title, c.Content, c.Framework,
		c.Position, c.WordCount,
		c.CreatedAt.Format(time.RFC3339), c.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create chapter %s: %w", c.ID, err)
	}
	return nil
}

// GetChapter retrieves a chapter by id, scoped to owner through its project.
func (s *Store) GetChapter(ctx context.Context, owner, id string) (*schema.Chapter, error) {
	row := s.queryRow(ctx, `
		SELECT c.id, c.project_id, c.title, c.content, c.framework,
		       c.position, c.word_count, c.created_at, c.updated_at
		FROM chapters c
		JOIN projects p ON p.id = c.project_id
		WHERE c.id = ? AND p.owner = ?`, id, owner)

	c, err := scanChapter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chapter %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chapter %s: %w", id, err)
	}
	return c, nil
}

// ListChapters returns a project's chapters ordered by position.
func (s *Store) ListChapters(ctx context.Context, owner, projectID string) ([]*schema.Chapter, error) {
	if err := s.projectVisible(ctx, owner, projectID); err != nil {
		return nil, err
	}

	rows, err := s.query(ctx, `
		SELECT id, project_id, title, content, framework,
		       position, word_count, created_at, updated_at
		FROM chapters
		WHERE project_id = ?
		ORDER BY position ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	defer rows.Close()

	var chapters []*schema.Chapter
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chapter: %w", err)
		}
		chapters = append(chapters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chapters: %w", err)
	}
	return chapters, nil
}

// UpdateChapter rewrites the mutable fields of a chapter.
func (s *Store) UpdateChapter(ctx context.Context, owner string, c *schema.Chapter) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid chapter: %w", err)
	}

	res, err := s.exec(ctx, `
		UPDATE chapters SET
			title = ?, content = ?, framework = ?, position = ?,
			word_count = ?, updated_at = ?
		WHERE id = ? AND project_id IN (SELECT id FROM projects WHERE owner = ?)`,
		c.Title, c.Content, c.Framework, c.Position,
		c.WordCount, c.UpdatedAt.Format(time.RFC3339),
		c.ID, owner,
	)
	if err != nil {
		return fmt.Errorf("failed to update chapter %s: %w", c.ID, err)
	}
	return requireRow(res, c.ID)
}

// UpsertChapter inserts or replaces a chapter row. Used by the draft sync
// daemon, where the drafts directory is the source of truth.
func (s *Store) UpsertChapter(ctx context.Context, c *schema.Chapter) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid chapter: %w", err)
	}

	_, err := s.exec(ctx, `
		INSERT INTO chapters (id, project_id, title, content, framework,
			position, word_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			framework = excluded.framework,
			position = excluded.position,
			word_count = excluded.word_count,
			updated_at = excluded.updated_at`,
		c.ID, c.ProjectID, c.Title, c.Content, c.Framework,
		c.Position, c.WordCount,
		c.CreatedAt.Format(time.RFC3339), c.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chapter %s: %w", c.ID, err)
	}
	return nil
}

// DeleteChapter removes a chapter and reindexes the remaining positions of
// its project so they stay contiguous.
func (s *Store) DeleteChapter(ctx context.Context, owner, id string) error {
	c, err := s.GetChapter(ctx, owner, id)
	if err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(
		`DELETE FROM chapters WHERE id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete chapter %s: %w", id, err)
	}

	// Close the gap left by the deleted position.
	if _, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE chapters SET position = position - 1
		WHERE project_id = ? AND position > ?`), c.ProjectID, c.Position); err != nil {
		return fmt.Errorf("failed to reindex chapters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ProjectWordCount sums the word counts of a project's chapters.
func (s *Store) ProjectWordCount(ctx context.Context, projectID string) (int, error) {
	var total sql.NullInt64
	err := s.queryRow(ctx,
		`SELECT SUM(word_count) FROM chapters WHERE project_id = ?`,
		projectID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum word counts: %w", err)
	}
	return int(total.Int64), nil
}

// CountChapters returns the number of chapters in a project.
func (s *Store) CountChapters(ctx context.Context, projectID string) (int, error) {
	var count int
	err := s.queryRow(ctx,
		`SELECT COUNT(*) FROM chapters WHERE project_id = ?`,
		projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chapters: %w", err)
	}
	return count, nil
}

func scanChapter(row scanner) (*schema.Chapter, error) {
	var c schema.Chapter
	var createdAt, updatedAt string

	err := row.Scan(&c.ID, &c.ProjectID, &c.Title, &c.Content, &c.Framework,
		&c.Position, &c.WordCount, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}
