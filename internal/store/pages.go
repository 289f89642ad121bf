package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spectreweave/spectreweave/internal/schema"
)

// CreateBookPage inserts a picture-book page. A duplicate page number
// within the project returns ErrConflict.
func (s *Store) CreateBookPage(ctx context.Context, owner string, p *schema.BookPage) error {
	if err := s.projectVisible(ctx, owner, p.ProjectID); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid page: %w", err)
	}

	_, err := s.exec(ctx, `
		INSERT INTO book_pages (id, project_id, page_number, text,
			illustration_prompt, illustration_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ProjectID, p.PageNumber, p.Text,
		p.IllustrationPrompt, p.IllustrationURL,
		p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create page %s: %w", p.ID, err)
	}
	return nil
}

// GetBookPage retrieves a page by id, scoped to owner.
func (s *Store) GetBookPage(ctx context.Context, owner, id string) (*schema.BookPage, error) {
	row := s.queryRow(ctx, `
		SELECT b.id, b.project_id, b.page_number, b.text,
		       b.illustration_prompt, b.illustration_url, b.created_at, b.updated_at
		FROM book_pages b
		JOIN projects p ON p.id = b.project_id
		WHERE b.id = ? AND p.owner = ?`, id, owner)

	page, err := scanBookPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page %s: %w", id, err)
	}
	return page, nil
}

// ListBookPages returns a project's pages ordered by page number.
func (s *Store) ListBookPages(ctx context.Context, owner, projectID string) ([]*schema.BookPage, error) {
	if err := s.projectVisible(ctx, owner, projectID); err != nil {
		return nil, err
	}

	rows, err := s.query(ctx, `
		SELECT id, project_id, page_number, text,
		       illustration_prompt, illustration_url, created_at, updated_at
		FROM book_pages
		WHERE project_id = ?
		ORDER BY page_number ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []*schema.BookPage
	for rows.Next() {
		p, err := scanBookPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pages: %w", err)
	}
	return pages, nil
}

// UpdateBookPage rewrites the mutable fields of a page.
func (s *Store) UpdateBookPage(ctx context.Context, owner string, p *schema.BookPage) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid page: %w", err)
	}

	res, err := s.exec(ctx, `
		UPDATE book_pages SET
			page_number = ?, text = ?, illustration_prompt = ?,
			illustration_url = ?, updated_at = ?
		WHERE id = ? AND project_id IN (SELECT id FROM projects WHERE owner = ?)`,
		p.PageNumber, p.Text, p.IllustrationPrompt,
		p.IllustrationURL, p.UpdatedAt.Format(time.RFC3339),
		p.ID, owner,
	)
	if err != nil {
		return fmt.Errorf("failed to update page %s: %w", p.ID, err)
	}
	return requireRow(res, p.ID)
}

// DeleteBookPage removes a page. Page numbers are not reindexed: picture
// book pagination is explicit, unlike chapter positions.
func (s *Store) DeleteBookPage(ctx context.Context, owner, id string) error {
	res, err := s.exec(ctx, `
		DELETE FROM book_pages
		WHERE id = ? AND project_id IN (SELECT id FROM projects WHERE owner = ?)`,
		id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete page %s: %w", id, err)
	}
	return requireRow(res, id)
}

func scanBookPage(row scanner) (*schema.BookPage, error) {
	var p schema.BookPage
	var createdAt, updatedAt string

	err := row.Scan(&p.ID, &p.ProjectID, &p.PageNumber, &p.Text,
		&p.IllustrationPrompt, &p.IllustrationURL, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}
