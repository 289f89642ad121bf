package schema

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"
)

// Chapter is one manuscript chapter. Content holds the manuscript surface,
// Framework the story-framework surface; the two are edited independently.
type Chapter struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Content   string `json:"content,omitempty"`
	Framework string `json:"framework,omitempty"`

	// Position is the 0-based position within the project. Positions for a
	// project form a contiguous sequence; deleting a chapter reindexes the
	// remainder.
	Position int `json:"position"`

	WordCount int `json:"word_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that the chapter has valid field values.
func (c *Chapter) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if c.Title == "" {
		return fmt.Errorf("title is required")
	}
	if c.Position < 0 {
		return fmt.Errorf("position must be non-negative (got %d)", c.Position)
	}
	if c.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if c.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// SetDefaults applies default values and recomputes the word count.
func (c *Chapter) SetDefaults() {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	c.WordCount = CountWords(c.Content)
}

// Touch sets UpdatedAt to the current time and recomputes the word count.
func (c *Chapter) Touch() {
	c.UpdatedAt = time.Now()
	c.WordCount = CountWords(c.Content)
}

// Filename returns the canonical drafts filename for this chapter: {id}.json
func (c *Chapter) Filename() string {
	return fmt.Sprintf("%s.json", c.ID)
}

// CountWords counts whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.FieldsFunc(text, unicode.IsSpace))
}

// ReadChapterFile reads and validates a chapter JSON file.
func ReadChapterFile(path string) (*Chapter, error) {
	var c Chapter
	if err := readJSONFile(path, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// WriteChapterFile writes a chapter to dir as {id}.json.
func WriteChapterFile(dir string, c *Chapter) error {
	return writeJSONFile(dir, c.Filename(), c)
}

// ReadAllChapterFiles reads every chapter file under dir.
// Invalid files are skipped with a warning to stderr.
func ReadAllChapterFiles(dir string) ([]*Chapter, error) {
	paths, err := listJSONFiles(dir)
	if err != nil {
		return nil, err
	}

	var chapters []*Chapter
	for _, path := range paths {
		c, err := ReadChapterFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping invalid chapter file %s: %v\n", path, err)
			continue
		}
		chapters = append(chapters, c)
	}
	return chapters, nil
}
