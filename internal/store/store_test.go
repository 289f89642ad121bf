package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectreweave/spectreweave/internal/schema"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.InitSchema(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func newProject(id, title string) *schema.Project {
	p := &schema.Project{ID: id, Title: title}
	p.SetDefaults()
	return p
}

func TestOpenEmbedded(t *testing.T) {
	st := setupStore(t)
	require.NoError(t, st.Ping(context.Background()))
}

func TestProjectCRUD(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	p := newProject("p1", "First Draft")
	deadline := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	p.Deadline = &deadline
	require.NoError(t, st.CreateProject(ctx, "writer-1", p))

	got, err := st.GetProject(ctx, "writer-1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "First Draft", got.Title)
	require.NotNil(t, got.Deadline)
	assert.True(t, got.Deadline.Equal(deadline))

	got.Title = "Second Draft"
	got.Touch()
	require.NoError(t, st.UpdateProject(ctx, "writer-1", got))

	updated, err := st.GetProject(ctx, "writer-1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Second Draft", updated.Title)

	require.NoError(t, st.DeleteProject(ctx, "writer-1", "p1"))
	_, err = st.GetProject(ctx, "writer-1", "p1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProjectDuplicateID(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateProject(ctx, "writer-1", newProject("p1", "One")))
	err := st.CreateProject(ctx, "writer-1", newProject("p1", "Two"))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestProjectOwnerScoping(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateProject(ctx, "writer-1", newProject("p1", "Mine")))

	_, err := st.GetProject(ctx, "writer-2", "p1")
	assert.ErrorIs(t, err, ErrNotFound)

	err = st.UpdateProject(ctx, "writer-2", newProject("p1", "Stolen"))
	assert.ErrorIs(t, err, ErrNotFound)

	err = st.DeleteProject(ctx, "writer-2", "p1")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := st.ListProjects(ctx, "writer-2")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestChapterAppendAndReorder(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateProject(ctx, "writer-1", newProject("p1", "Novel")))

	for _, title := range []string{"One", "Two", "Three"} {
		c := &schema.Chapter{
			ID:        "ch-" + title,
			ProjectID: "p1",
			Title:     title,
			Position:  -1, // append
		}
		c.SetDefaults()
		require.NoError(t, st.CreateChapter(ctx, "writer-1", c))
	}

	chapters, err := st.ListChapters(ctx, "writer-1", "p1")
	require.NoError(t, err)
	require.Len(t, chapters, 3)
	for i, c := range chapters {
		assert.Equal(t, i, c.Position)
	}

	// Deleting the middle chapter shifts the tail down.
	require.NoError(t, st.DeleteChapter(ctx, "writer-1", "ch-Two"))

	chapters, err = st.ListChapters(ctx, "writer-1", "p1")
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, "ch-One", chapters[0].ID)
	assert.Equal(t, 0, chapters[0].Position)
	assert.Equal(t, "ch-Three", chapters[1].ID)
	assert.Equal(t, 1, chapters[1].Position)
}

func TestChapterUpsert(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateProject(ctx, "writer-1", newProject("p1", "Novel")))

	c := &schema.Chapter{ID: "ch-1", ProjectID: "p1", Title: "Draft", WordCount: 10}
	c.SetDefaults()
	require.NoError(t, st.UpsertChapter(ctx, c))

	c.Title = "Revised"
	c.WordCount = 20
	require.NoError(t, st.UpsertChapter(ctx, c))

	got, err := st.GetChapter(ctx, "writer-1", "ch-1")
	require.NoError(t, err)
	assert.Equal(t, "Revised", got.Title)
	assert.Equal(t, 20, got.WordCount)

	words, err := st.ProjectWordCount(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 20, words)
}

func TestProjectCascadeDelete(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateProject(ctx, "writer-1", newProject("p1", "Book")))

	c := &schema.Chapter{ID: "ch-1", ProjectID: "p1", Title: "Only"}
	c.SetDefaults()
	require.NoError(t, st.CreateChapter(ctx, "writer-1", c))

	ch := &schema.Character{ID: "char-1", ProjectID: "p1", Name: "Fox"}
	ch.SetDefaults()
	require.NoError(t, st.CreateCharacter(ctx, "writer-1", ch))

	pg := &schema.BookPage{ID: "pg-1", ProjectID: "p1", PageNumber: 1}
	pg.SetDefaults()
	require.NoError(t, st.CreateBookPage(ctx, "writer-1", pg))

	require.NoError(t, st.DeleteProject(ctx, "writer-1", "p1"))

	_, err := st.GetChapter(ctx, "writer-1", "ch-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.GetCharacter(ctx, "writer-1", "char-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.GetBookPage(ctx, "writer-1", "pg-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCharacterTraitsRoundTrip(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateProject(ctx, "writer-1", newProject("p1", "Book")))

	c := &schema.Character{
		ID:        "char-1",
		ProjectID: "p1",
		Name:      "Fox",
		Traits:    []string{"clever", "curious"},
		Relationships: map[string]string{
			"char-2": "rival",
		},
	}
	c.SetDefaults()
	require.NoError(t, st.CreateCharacter(ctx, "writer-1", c))

	got, err := st.GetCharacter(ctx, "writer-1", "char-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"clever", "curious"}, got.Traits)
	assert.Equal(t, "rival", got.Relationships["char-2"])
}

func TestBookPageUniquePageNumber(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateProject(ctx, "writer-1", newProject("p1", "Book")))

	p1 := &schema.BookPage{ID: "pg-1", ProjectID: "p1", PageNumber: 1}
	p1.SetDefaults()
	require.NoError(t, st.CreateBookPage(ctx, "writer-1", p1))

	p2 := &schema.BookPage{ID: "pg-2", ProjectID: "p1", PageNumber: 1}
	p2.SetDefaults()
	err := st.CreateBookPage(ctx, "writer-1", p2)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAgentUniqueNamePerOwner(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	a := &schema.Agent{ID: "a1", Name: "Outliner", Role: "outliner"}
	a.SetDefaults()
	require.NoError(t, st.CreateAgent(ctx, "writer-1", a))

	dup := &schema.Agent{ID: "a2", Name: "Outliner", Role: "outliner"}
	dup.SetDefaults()
	assert.ErrorIs(t, st.CreateAgent(ctx, "writer-1", dup), ErrConflict)

	// A different owner can reuse the name.
	other := &schema.Agent{ID: "a3", Name: "Outliner", Role: "outliner"}
	other.SetDefaults()
	assert.NoError(t, st.CreateAgent(ctx, "writer-2", other))
}

func TestAgentIDs(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	a := &schema.Agent{ID: "a1", Name: "Outliner", Role: "outliner"}
	a.SetDefaults()
	require.NoError(t, st.CreateAgent(ctx, "writer-1", a))

	ids, err := st.AgentIDs(ctx, "writer-1")
	require.NoError(t, err)
	assert.True(t, ids["a1"])
	assert.False(t, ids["a2"])

	count, err := st.CountAgents(ctx, "writer-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = st.CountAgents(ctx, "writer-2")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestPipelineGraphRoundTrip(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	p := &schema.Pipeline{
		ID:   "pipe-1",
		Name: "Draft Flow",
		Steps: []schema.Step{
			{ID: "outline", Role: "outliner", OrderIndex: 0},
			{ID: "draft", Role: "drafter", AgentID: "a1", OrderIndex: 1},
		},
		Edges: []schema.Edge{{From: "outline", To: "draft"}},
	}
	p.SetDefaults()
	require.NoError(t, st.CreatePipeline(ctx, "writer-1", p))

	got, err := st.GetPipeline(ctx, "writer-1", "pipe-1")
	require.NoError(t, err)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "a1", got.Steps[1].AgentID)
	require.Len(t, got.Edges, 1)
	assert.Equal(t, "outline", got.Edges[0].From)

	require.NoError(t, st.DeletePipeline(ctx, "writer-1", "pipe-1"))
	_, err = st.GetPipeline(ctx, "writer-1", "pipe-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRebindPostgresPlaceholders(t *testing.T) {
	s := &Store{postgres: true}
	assert.Equal(t,
		"SELECT * FROM projects WHERE id = $1 AND owner = $2",
		s.rebind("SELECT * FROM projects WHERE id = ? AND owner = ?"))

	s.postgres = false
	assert.Equal(t,
		"SELECT * FROM projects WHERE id = ? AND owner = ?",
		s.rebind("SELECT * FROM projects WHERE id = ? AND owner = ?"))
}
