package schema

import (
	"fmt"
	"time"
)

// BookPage is one page of a picture book: the page text plus the
// illustration prompt handed to the generation backend and, once rendered,
// the resulting image URL.
type BookPage struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`

	// PageNumber is 1-based and unique within a project.
	PageNumber int `json:"page_number"`

	Text               string `json:"text,omitempty"`
	IllustrationPrompt string `json:"illustration_prompt,omitempty"`
	IllustrationURL    string `json:"illustration_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that the page has valid field values.
func (p *BookPage) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if p.PageNumber < 1 {
		return fmt.Errorf("page_number must be 1 or greater (got %d)", p.PageNumber)
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
func (p *BookPage) SetDefaults() {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
}
