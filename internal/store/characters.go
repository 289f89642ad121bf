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

// CreateCharacter inserts a character profile.
func (s *Store) CreateCharacter(ctx context.Context, owner string, c *schema.Character) error {
	if err := s.projectVisible(ctx, owner, c.ProjectID); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid character: %w", err)
	}

	traits, relationships, err := marshalCharacterJSON(c)
	if err != nil {
		return err
	}

	_, err = s.exec(ctx, `
		INSERT INTO characters (id, project_id, name, role, description,
			traits, relationships, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.Name, c.Role, c.Description,
		traits, relationships,
		c.CreatedAt.Format(time.RFC3339), c.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create character %s: %w", c.ID, err)
	}
	return nil
}

// GetCharacter retrieves a character by id, scoped to owner.
func (s *Store) GetCharacter(ctx context.Context, owner, id string) (*schema.Character, error) {
	row := s.queryRow(ctx, `
		SELECT c.id, c.project_id, c.name, c.role, c.description,
		       c.traits, c.relationships, c.created_at, c.updated_at
		FROM characters c
		JOIN projects p ON p.id = c.project_id
		WHERE c.id = ? AND p.owner = ?`, id, owner)

	c, err := scanCharacter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("character %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get character %s: %w", id, err)
	}
	return c, nil
}

// ListCharacters returns a project's characters ordered by name.
func (s *Store) ListCharacters(ctx context.Context, owner, projectID string) ([]*schema.Character, error) {
	if err := s.projectVisible(ctx, owner, projectID); err != nil {
		return nil, err
	}

	rows, err := s.query(ctx, `
		SELECT id, project_id, name, role, description,
		       traits, relationships, created_at, updated_at
		FROM characters
		WHERE project_id = ?
		ORDER BY name ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	defer rows.Close()

	var characters []*schema.Character
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan character: %w", err)
		}
		characters = append(characters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating characters: %w", err)
	}
	return characters, nil
}

// UpdateCharacter rewrites the mutable fields of a character.
func (s *Store) UpdateCharacter(ctx context.Context, owner string, c *schema.Character) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid character: %w", err)
	}

	traits, relationships, err := marshalCharacterJSON(c)
	if err != nil {
		return err
	}

	res, err := s.exec(ctx, `
		UPDATE characters SET
			name = ?, role = ?, description = ?, traits = ?,
			relationships = ?, updated_at = ?
		WHERE id = ? AND project_id IN (SELECT id FROM projects WHERE owner = ?)`,
		c.Name, c.Role, c.Description, traits,
		relationships, c.UpdatedAt.Format(time.RFC3339),
		c.ID, owner,
	)
	if err != nil {
		return fmt.Errorf("failed to update character %s: %w", c.ID, err)
	}
	return requireRow(res, c.ID)
}

// UpsertCharacter inserts or replaces a character row (draft sync path).
func (s *Store) UpsertCharacter(ctx context.Context, c *schema.Character) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid character: %w", err)
	}

	traits, relationships, err := marshalCharacterJSON(c)
	if err != nil {
		return err
	}

	_, err = s.exec(ctx, `
		INSERT INTO characters (id, project_id, name, role, description,
			traits, relationships, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			description = excluded.description,
			traits = excluded.traits,
			relationships = excluded.relationships,
			updated_at = excluded.updated_at`,
		c.ID, c.ProjectID, c.Name, c.Role, c.Description,
		traits, relationships,
		c.CreatedAt.Format(time.RFC3339), c.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert character %s: %w", c.ID, err)
	}
	return nil
}

// DeleteCharacter removes a character. Returns ErrNotFound if nothing
// visible was deleted.
func (s *Store) DeleteCharacter(ctx context.Context, owner, id string) error {
	res, err := s.exec(ctx, `
		DELETE FROM characters
		WHERE id = ? AND project_id IN (SELECT id FROM projects WHERE owner = ?)`,
		id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete character %s: %w", id, err)
	}
	return requireRow(res, id)
}

func marshalCharacterJSON(c *schema.Character) (traits, relationships string, err error) {
	t, err := json.Marshal(c.Traits)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal traits: %w", err)
	}
	r, err := json.Marshal(c.Relationships)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal relationships: %w", err)
	}
	return string(t), string(r), nil
}

func scanCharacter(row scanner) (*schema.Character, error) {
	var c schema.Character
	var traitsJSON, relationshipsJSON string
	var createdAt, updatedAt string

	err := row.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Role, &c.Description,
		&traitsJSON, &relationshipsJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if traitsJSON != "" && traitsJSON != "null" {
		if err := json.Unmarshal([]byte(traitsJSON), &c.Traits); err != nil {
			return nil, fmt.Errorf("failed to unmarshal traits: %w", err)
		}
	} else {
		c.Traits = []string{}
	}
	if relationshipsJSON != "" && relationshipsJSON != "null" {
		if err := json.Unmarshal([]byte(relationshipsJSON), &c.Relationships); err != nil {
			return nil, fmt.Errorf("failed to unmarshal relationships: %w", err)
		}
	}

	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}
