package export

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spectreweave/spectreweave/internal/schema"
	"github.com/spectreweave/spectreweave/internal/store"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.InitSchema(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func seedProject(t *testing.T, st *store.Store, owner string) *schema.Project {
	t.Helper()
	ctx := context.Background()

	p := &schema.Project{ID: "proj-1", Title: "The Moonlit Fox", ProjectType: schema.ProjectTypeHybrid}
	p.SetDefaults()
	require.NoError(t, st.CreateProject(ctx, owner, p))

	for i, title := range []string{"Dusk", "Midnight", "Dawn"} {
		c := &schema.Chapter{
			ID:        "ch-" + strings.ToLower(title),
			ProjectID: p.ID,
			Title:     title,
			Content:   "Words for " + title,
			Position:  i,
			WordCount: 3,
		}
		c.SetDefaults()
		require.NoError(t, st.CreateChapter(ctx, owner, c))
	}

	ch := &schema.Character{ID: "char-fox", ProjectID: p.ID, Name: "Fox", Traits: []string{"clever"}}
	ch.SetDefaults()
	require.NoError(t, st.CreateCharacter(ctx, owner, ch))

	page := &schema.BookPage{ID: "page-1", ProjectID: p.ID, PageNumber: 1, Text: "A fox."}
	page.SetDefaults()
	require.NoError(t, st.CreateBookPage(ctx, owner, page))

	agent := &schema.Agent{ID: "agent-1", Name: "Outliner", Role: "outliner"}
	agent.SetDefaults()
	require.NoError(t, st.CreateAgent(ctx, owner, agent))

	pipe := &schema.Pipeline{
		ID:    "pipe-1",
		Name:  "Draft Flow",
		Steps: []schema.Step{{ID: "s1", Role: "outliner", AgentID: "agent-1"}},
	}
	pipe.SetDefaults()
	require.NoError(t, st.CreatePipeline(ctx, owner, pipe))

	return p
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := setupStore(t)
	project := seedProject(t, src, "writer-1")

	var buf bytes.Buffer
	result, err := Export(ctx, src, "writer-1", project.ID, &buf)
	require.NoError(t, err)
	require.Equal(t, 1, result.Projects)
	require.Equal(t, 3, result.Chapters)
	require.Equal(t, 1, result.Characters)
	require.Equal(t, 1, result.Pages)
	require.Equal(t, 1, result.Agents)
	require.Equal(t, 1, result.Pipelines)

	dst := setupStore(t)
	imported, err := Import(ctx, dst, "writer-2", &buf, false)
	require.NoError(t, err)
	require.Empty(t, imported.Errors)
	require.Equal(t, result.Total(), imported.Total())

	restored, err := dst.GetProject(ctx, "writer-2", project.ID)
	require.NoError(t, err)
	require.Equal(t, project.Title, restored.Title)

	chapters, err := dst.ListChapters(ctx, "writer-2", project.ID)
	require.NoError(t, err)
	require.Len(t, chapters, 3)
	require.Equal(t, "Dusk", chapters[0].Title)

	agents, err := dst.ListAgents(ctx, "writer-2")
	require.NoError(t, err)
	require.Len(t, agents, 1)
}

func TestExportUnknownProject(t *testing.T) {
	st := setupStore(t)

	var buf bytes.Buffer
	_, err := Export(context.Background(), st, "writer-1", "missing", &buf)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestImportRejectsForeignStreams(t *testing.T) {
	st := setupStore(t)

	_, err := Import(context.Background(), st, "writer-1", strings.NewReader(`{"kind":"header","format":"something-else","version":"v1.0.0"}`), false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a spectreweave-bundle")
}

func TestImportRejectsIncompatibleVersion(t *testing.T) {
	st := setupStore(t)

	_, err := Import(context.Background(), st, "writer-1", strings.NewReader(`{"kind":"header","format":"spectreweave-bundle","version":"v2.0.0"}`), false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not compatible")
}

func TestImportContinuesPastConflicts(t *testing.T) {
	ctx := context.Background()
	src := setupStore(t)
	project := seedProject(t, src, "writer-1")

	var buf bytes.Buffer
	_, err := Export(ctx, src, "writer-1", project.ID, &buf)
	require.NoError(t, err)

	// Importing into the same store collides on every id, but the import
	// still walks the whole bundle.
	result, err := Import(ctx, src, "writer-1", &buf, false)
	require.NoError(t, err)
	require.NotEmpty(t, result.Errors)
	require.Equal(t, 0, result.Projects)
}

func TestImportDryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	src := setupStore(t)
	project := seedProject(t, src, "writer-1")

	var buf bytes.Buffer
	exported, err := Export(ctx, src, "writer-1", project.ID, &buf)
	require.NoError(t, err)

	dst := setupStore(t)
	result, err := Import(ctx, dst, "writer-2", &buf, true)
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Equal(t, exported.Total(), result.Total())

	_, err = dst.GetProject(ctx, "writer-2", project.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}
