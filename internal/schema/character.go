package schema

import (
	"fmt"
	"os"
	"time"
)

// Character is a character profile attached to a project. Profiles feed the
// generation agents and the external consistency checker.
type Character struct {
	ID          string   `json:"id"`
	ProjectID   string   `json:"project_id"`
	Name        string   `json:"name"`
	Role        string   `json:"role,omitempty"` // protagonist, antagonist, supporting
	Description string   `json:"description,omitempty"`
	Traits      []string `json:"traits,omitempty"`

	// Relationships maps another character's name to a short description of
	// the relationship ("mentor", "rival", ...).
	Relationships map[string]string `json:"relationships,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that the character has valid field values.
func (c *Character) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(c.Name) > 200 {
		return fmt.Errorf("name must be 200 characters or less (got %d)", len(c.Name))
	}
	if c.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if c.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (c *Character) SetDefaults() {
	if c.Traits == nil {
		c.Traits = []string{}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
}

// Filename returns the canonical drafts filename for this character: {id}.json
func (c *Character) Filename() string {
	return fmt.Sprintf("%s.json", c.ID)
}

// ReadCharacterFile reads and validates a character JSON file.
func ReadCharacterFile(path string) (*Character, error) {
	var c Character
	if err := readJSONFile(path, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// WriteCharacterFile writes a character to dir as {id}.json.
func WriteCharacterFile(dir string, c *Character) error {
	return writeJSONFile(dir, c.Filename(), c)
}

// ReadAllCharacterFiles reads every character file under dir.
// Invalid files are skipped with a warning to stderr.
func ReadAllCharacterFiles(dir string) ([]*Character, error) {
	paths, err := listJSONFiles(dir)
	if err != nil {
		return nil, err
	}

	var characters []*Character
	for _, path := range paths {
		c, err := ReadCharacterFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping invalid character file %s: %v\n", path, err)
			continue
		}
		characters = append(characters, c)
	}
	return characters, nil
}
