package schema

import (
	"fmt"
	"time"
)

// Step is one node of a pipeline graph. It names the role to execute and,
// optionally, a concrete agent bound to that role.
type Step struct {
	ID      string `json:"id" yaml:"id"`
	Role    string `json:"role" yaml:"role"`
	AgentID string `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`

	// OrderIndex orders steps when the pipeline declares no edges, in which
	// case steps run as a linear chain sorted by this value.
	OrderIndex int `json:"order_index" yaml:"order_index"`
}

// Edge is a directed dependency between two steps: From must complete
// before To may start.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Pipeline is a named multi-agent generation pipeline: steps plus optional
// dependency edges forming a DAG.
type Pipeline struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []Step `json:"steps" yaml:"steps"`
	Edges       []Edge `json:"edges,omitempty" yaml:"edges,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at,omitempty"`
}

// Validate checks structural validity of the pipeline definition.
// Graph-level anomalies (cycles, dangling edges, unknown agents) are NOT
// errors here; the pipeline validator reports those as issues.
func (p *Pipeline) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	seen := make(map[string]bool, len(p.Steps))
	for i, s := range p.Steps {
		if s.ID == "" {
			return fmt.Errorf("step %d: id is required", i)
		}
		if s.Role == "" {
			return fmt.Errorf("step %s: role is required", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate step id: %s", s.ID)
		}
		seen[s.ID] = true
	}
	for i, e := range p.Edges {
		if e.From == "" || e.To == "" {
			return fmt.Errorf("edge %d: from and to are required", i)
		}
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
func (p *Pipeline) SetDefaults() {
	if p.Steps == nil {
		p.Steps = []Step{}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
}
