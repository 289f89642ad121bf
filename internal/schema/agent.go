package schema

import (
	"fmt"
	"time"
)

// Agent describes one generation agent: the role it plays in a pipeline and
// the model configuration the execution engine uses to run it.
type Agent struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Role identifies the agent's function in a pipeline, e.g. "outliner",
	// "drafter", "editor", "illustrator". Pipeline steps reference roles.
	Role string `json:"role"`

	Model        string  `json:"model,omitempty"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Temperature  float64 `json:"temperature"`
	Enabled      bool    `json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that the agent has valid field values.
func (a *Agent) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("id is required")
	}
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}
	if a.Role == "" {
		return fmt.Errorf("role is required")
	}
	if a.Temperature < 0 || a.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2 (got %g)", a.Temperature)
	}
	if a.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if a.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (a *Agent) SetDefaults() {
	if a.Temperature == 0 {
		a.Temperature = 0.7
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}
}
