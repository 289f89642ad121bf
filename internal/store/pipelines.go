package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spectreweave/spectreweave/internal/schema"
)

// CreatePipeline inserts a pipeline definition. Steps and edges are stored
// as JSON columns; the graph is only interpreted at validation time.
func (s *Store) CreatePipeline(ctx context.Context, owner string, p *schema.Pipeline) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid pipeline: %w", err)
	}

	steps, edges, err := marshalGraph(p)
	if err != nil {
		return err
	}

	_, err = s.exec(ctx, `
		INSERT INTO pipelines (id, owner, name, description, steps, edges,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, owner, p.Name, p.Description, steps, edges,
		p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline %s: %w", p.ID, err)
	}
	return nil
}

// GetPipeline retrieves a pipeline by id, scoped to owner.
func (s *Store) GetPipeline(ctx context.Context, owner, id string) (*schema.Pipeline, error) {
	row := s.queryRow(ctx, `
		SELECT id, name, description, steps, edges, created_at, updated_at
		FROM pipelines
		WHERE id = ? AND owner = ?`, id, owner)

	p, err := scanPipeline(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pipeline %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline %s: %w", id, err)
	}
	return p, nil
}

// ListPipelines returns all pipelines for owner ordered by name.
func (s *Store) ListPipelines(ctx context.Context, owner string) ([]*schema.Pipeline, error) {
	rows, err := s.query(ctx, `
		SELECT id, name, description, steps, edges, created_at, updated_at
		FROM pipelines
		WHERE owner = ?
		ORDER BY name ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}
	defer rows.Close()

	var pipelines []*schema.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline: %w", err)
		}
		pipelines = append(pipelines, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pipelines: %w", err)
	}
	return pipelines, nil
}

// UpdatePipeline rewrites the mutable fields of a pipeline.
func (s *Store) UpdatePipeline(ctx context.Context, owner string, p *schema.Pipeline) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid pipeline: %w", err)
	}

	steps, edges, err := marshalGraph(p)
	if err != nil {
		return err
	}

	res, err := s.exec(ctx, `
		UPDATE pipelines SET
			name = ?, description = ?, steps = ?, edges = ?, updated_at = ?
		WHERE id = ? AND owner = ?`,
		p.Name, p.Description, steps, edges, p.UpdatedAt.Format(time.RFC3339),
		p.ID, owner,
	)
	if err != nil {
		return fmt.Errorf("failed to update pipeline %s: %w", p.ID, err)
	}
	return requireRow(res, p.ID)
}

// DeletePipeline removes a pipeline.
func (s *Store) DeletePipeline(ctx context.Context, owner, id string) error {
	res, err := s.exec(ctx, `DELETE FROM pipelines WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete pipeline %s: %w", id, err)
	}
	return requireRow(res, id)
}

func marshalGraph(p *schema.Pipeline) (steps, edges string, err error) {
	st, err := json.Marshal(p.Steps)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal steps: %w", err)
	}
	ed, err := json.Marshal(p.Edges)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal edges: %w", err)
	}
	return string(st), string(ed), nil
}

func scanPipeline(row scanner) (*schema.Pipeline, error) {
	var p schema.Pipeline
	var stepsJSON, edgesJSON string
	var createdAt, updatedAt string

	err := row.Scan(&p.ID, &p.Name, &p.Description, &stepsJSON, &edgesJSON,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if stepsJSON != "" && stepsJSON != "null" {
		if err := json.Unmarshal([]byte(stepsJSON), &p.Steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
		}
	}
	if edgesJSON != "" && edgesJSON != "null" {
		if err := json.Unmarshal([]byte(edgesJSON), &p.Edges); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
		}
	}

	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}
