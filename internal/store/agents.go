package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spectreweave/spectreweave/internal/schema"
)

// CreateAgent inserts an agent. A duplicate (owner, name) returns
// ErrConflict.
func (s *Store) CreateAgent(ctx context.Context, owner string, a *schema.Agent) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid agent: %w", err)
	}

	_, err := s.exec(ctx, `
		INSERT INTO agents (id, owner, name, role, model, system_prompt,
			temperature, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, owner, a.Name, a.Role, a.Model, a.SystemPrompt,
		a.Temperature, boolToInt(a.Enabled),
		a.CreatedAt.Format(time.RFC3339), a.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create agent %s: %w", a.ID, err)
	}
	return nil
}

// GetAgent retrieves an agent by id, scoped to owner.
func (s *Store) GetAgent(ctx context.Context, owner, id string) (*schema.Agent, error) {
	row := s.queryRow(ctx, `
		SELECT id, name, role, model, system_prompt, temperature,
		       enabled, created_at, updated_at
		FROM agents
		WHERE id = ? AND owner = ?`, id, owner)

	a, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent %s: %w", id, err)
	}
	return a, nil
}

// ListAgents returns all agents for owner ordered by name.
func (s *Store) ListAgents(ctx context.Context, owner string) ([]*schema.Agent, error) {
	rows, err := s.query(ctx, `
		SELECT id, name, role, model, system_prompt, temperature,
		       enabled, created_at, updated_at
		FROM agents
		WHERE owner = ?
		ORDER BY name ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []*schema.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agents: %w", err)
	}
	return agents, nil
}

// AgentIDs returns the set of agent ids visible to owner. The pipeline
// validator uses this for reference checks.
func (s *Store) AgentIDs(ctx context.Context, owner string) (map[string]bool, error) {
	rows, err := s.query(ctx, `SELECT id FROM agents WHERE owner = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan agent id: %w", err)
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agent ids: %w", err)
	}
	return ids, nil
}

// CountAgents returns the number of agents owned by owner.
func (s *Store) CountAgents(ctx context.Context, owner string) (int, error) {
	var count int
	err := s.queryRow(ctx,
		`SELECT COUNT(*) FROM agents WHERE owner = ?`, owner).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count agents: %w", err)
	}
	return count, nil
}

// UpdateAgent rewrites the mutable fields of an agent.
func (s *Store) UpdateAgent(ctx context.Context, owner string, a *schema.Agent) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid agent: %w", err)
	}

	res, err := s.exec(ctx, `
		UPDATE agents SET
			name = ?, role = ?, model = ?, system_prompt = ?,
			temperature = ?, enabled = ?, updated_at = ?
		WHERE id = ? AND owner = ?`,
		a.Name, a.Role, a.Model, a.SystemPrompt,
		a.Temperature, boolToInt(a.Enabled), a.UpdatedAt.Format(time.RFC3339),
		a.ID, owner,
	)
	if err != nil {
		return fmt.Errorf("failed to update agent %s: %w", a.ID, err)
	}
	return requireRow(res, a.ID)
}

// DeleteAgent removes an agent. Pipelines referencing it are left alone;
// the validator reports the dangling reference as an issue.
func (s *Store) DeleteAgent(ctx context.Context, owner, id string) error {
	res, err := s.exec(ctx, `DELETE FROM agents WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete agent %s: %w", id, err)
	}
	return requireRow(res, id)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanAgent(row scanner) (*schema.Agent, error) {
	var a schema.Agent
	var enabled int
	var createdAt, updatedAt string

	err := row.Scan(&a.ID, &a.Name, &a.Role, &a.Model, &a.SystemPrompt,
		&a.Temperature, &enabled, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.Enabled = enabled != 0
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}
