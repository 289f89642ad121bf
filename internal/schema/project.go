// Package schema defines the SpectreWeave domain entities and their
// JSON-file representations.
//
// Entities are stored two ways: rows in the relational store (internal/store)
// and, for the drafts workflow, individual JSON files in a drafts directory
// (one file per entity) that the sync daemon mirrors into the store. The
// structs here are flat and field-independent so either representation can
// be updated without touching the other.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Project types supported by the editor.
const (
	ProjectTypeManuscript  = "manuscript"
	ProjectTypePictureBook = "picture_book"
	ProjectTypeHybrid      = "hybrid"
)

// Project is a writing project: a manuscript, a picture book, or both.
type Project struct {
	ID          string `json:"id"`
	Owner       string `json:"owner,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// ProjectType selects the editing surfaces: manuscript, picture_book, hybrid.
	ProjectType string `json:"project_type"`

	// TargetAge is the intended reader age band, e.g. "6-8". Optional.
	TargetAge string `json:"target_age,omitempty"`

	// BookTheme is a free-form theme description used by generation agents.
	BookTheme string `json:"book_theme,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Deadline  *time.Time `json:"deadline,omitempty"`
}

// Validate checks that the project has valid field values.
func (p *Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(p.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(p.Title))
	}
	switch p.ProjectType {
	case ProjectTypeManuscript, ProjectTypePictureBook, ProjectTypeHybrid:
	default:
		return fmt.Errorf("invalid project_type: %q", p.ProjectType)
	}
	if p.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if p.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (p *Project) SetDefaults() {
	if p.ProjectType == "" {
		p.ProjectType = ProjectTypeManuscript
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
}

// Touch sets UpdatedAt to the current time. Call after any field change.
func (p *Project) Touch() {
	p.UpdatedAt = time.Now()
}

// readJSONFile reads, parses, and validates a JSON entity file.
func readJSONFile(path string, v interface{ Validate() error }) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("invalid entity file %s: %w", path, err)
	}
	return nil
}

// writeJSONFile writes a validated entity as pretty-printed JSON under dir.
func writeJSONFile(dir, name string, v interface{ Validate() error }) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("cannot write invalid entity: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// listJSONFiles returns the paths of all .json files directly under dir.
// A missing directory is treated as empty.
func listJSONFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return paths, nil
}
