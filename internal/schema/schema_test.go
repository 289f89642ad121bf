package schema

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCountWords(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"The fox stepped into the moonlight.", 6},
		{"line one\nline two\n\tline three", 6},
	}
	for _, tt := range tests {
		if got := CountWords(tt.text); got != tt.want {
			t.Errorf("CountWords(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestProjectValidate(t *testing.T) {
	p := &Project{ID: "p1", Title: "Book"}
	p.SetDefaults()
	if err := p.Validate(); err != nil {
		t.Errorf("Expected valid project, got %v", err)
	}
	if p.ProjectType != ProjectTypeManuscript {
		t.Errorf("Expected manuscript default, got %q", p.ProjectType)
	}

	p.ProjectType = "screenplay"
	if err := p.Validate(); err == nil {
		t.Error("Expected error for unknown project type")
	}

	p = &Project{ID: "p1"}
	p.SetDefaults()
	if err := p.Validate(); err == nil {
		t.Error("Expected error for missing title")
	}
}

func TestPipelineValidateStructure(t *testing.T) {
	p := &Pipeline{
		ID:   "p1",
		Name: "Flow",
		Steps: []Step{
			{ID: "a", Role: "outliner"},
			{ID: "b", Role: "drafter"},
		},
	}
	p.SetDefaults()
	if err := p.Validate(); err != nil {
		t.Errorf("Expected valid pipeline, got %v", err)
	}

	p.Steps = append(p.Steps, Step{ID: "a", Role: "editor"})
	if err := p.Validate(); err == nil {
		t.Error("Expected error for duplicate step id")
	}

	p.Steps = p.Steps[:2]
	p.Edges = []Edge{{From: "a", To: ""}}
	if err := p.Validate(); err == nil {
		t.Error("Expected error for edge without endpoint")
	}

	// Edges to unknown steps are NOT structural errors; the validator
	// reports them as issues instead.
	p.Edges = []Edge{{From: "a", To: "ghost"}}
	if err := p.Validate(); err != nil {
		t.Errorf("Dangling edge should pass structural validation, got %v", err)
	}
}

func TestBookPageValidate(t *testing.T) {
	p := &BookPage{ID: "pg", ProjectID: "p1", PageNumber: 1}
	p.SetDefaults()
	if err := p.Validate(); err != nil {
		t.Errorf("Expected valid page, got %v", err)
	}

	p.PageNumber = 0
	if err := p.Validate(); err == nil {
		t.Error("Expected error for page number 0")
	}
}

func TestChapterFileRoundTrip(t *testing.T) {
	dir := t.TempDir()

	c := &Chapter{
		ID:        "ch-1",
		ProjectID: "p1",
		Title:     "Opening",
		Content:   "The fox stepped into the moonlight.",
	}
	c.SetDefaults()

	if err := WriteChapterFile(dir, c); err != nil {
		t.Fatalf("WriteChapterFile failed: %v", err)
	}

	got, err := ReadChapterFile(filepath.Join(dir, c.Filename()))
	if err != nil {
		t.Fatalf("ReadChapterFile failed: %v", err)
	}
	if got.Title != "Opening" {
		t.Errorf("Expected title Opening, got %q", got.Title)
	}
	if !got.CreatedAt.Equal(c.CreatedAt) {
		t.Errorf("CreatedAt mismatch: %v vs %v", got.CreatedAt, c.CreatedAt)
	}
}

func TestReadAllChapterFilesSkipsInvalid(t *testing.T) {
	dir := t.TempDir()

	c := &Chapter{ID: "ch-1", ProjectID: "p1", Title: "Good"}
	c.SetDefaults()
	if err := WriteChapterFile(dir, c); err != nil {
		t.Fatalf("WriteChapterFile failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("Failed to write broken file: %v", err)
	}

	chapters, err := ReadAllChapterFiles(dir)
	if err != nil {
		t.Fatalf("ReadAllChapterFiles failed: %v", err)
	}
	if len(chapters) != 1 {
		t.Errorf("Expected 1 chapter (broken skipped), got %d", len(chapters))
	}
}

func TestReadAllChapterFilesMissingDir(t *testing.T) {
	chapters, err := ReadAllChapterFiles(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("Missing dir should not error: %v", err)
	}
	if chapters != nil {
		t.Errorf("Expected nil slice, got %v", chapters)
	}
}

func TestCharacterFileRoundTrip(t *testing.T) {
	dir := t.TempDir()

	c := &Character{
		ID:        "char-1",
		ProjectID: "p1",
		Name:      "Fox",
		Traits:    []string{"clever"},
	}
	c.SetDefaults()

	if err := WriteCharacterFile(dir, c); err != nil {
		t.Fatalf("WriteCharacterFile failed: %v", err)
	}

	got, err := ReadCharacterFile(filepath.Join(dir, c.Filename()))
	if err != nil {
		t.Fatalf("ReadCharacterFile failed: %v", err)
	}
	if got.Name != "Fox" || len(got.Traits) != 1 {
		t.Errorf("Unexpected character: %+v", got)
	}
}

func TestTouchAdvancesUpdatedAt(t *testing.T) {
	p := &Project{ID: "p1", Title: "Book"}
	p.SetDefaults()
	before := p.UpdatedAt

	time.Sleep(5 * time.Millisecond)
	p.Touch()

	if !p.UpdatedAt.After(before) {
		t.Error("Touch should advance UpdatedAt")
	}
}
