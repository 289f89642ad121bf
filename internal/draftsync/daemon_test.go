package draftsync

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spectreweave/spectreweave/internal/schema"
	"github.com/spectreweave/spectreweave/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func setupTestProject(t *testing.T, st *store.Store) *schema.Project {
	t.Helper()

	p := &schema.Project{ID: "proj-1", Title: "Drafted Novel"}
	p.SetDefaults()
	if err := st.CreateProject(context.Background(), "writer-1", p); err != nil {
		t.Fatalf("Failed to create project: %v", err)
	}
	return p
}

func writeChapterDraft(t *testing.T, dir string, c *schema.Chapter) {
	t.Helper()

	c.SetDefaults()
	if err := schema.WriteChapterFile(dir, c); err != nil {
		t.Fatalf("Failed to write chapter file: %v", err)
	}
}

// recordingNotifier captures published events for assertions.
type recordingNotifier struct {
	mu        sync.Mutex
	syncs     int
	statCalls []string
}

func (n *recordingNotifier) PublishSyncComplete(chapters, characters int, duration time.Duration) {
	n.mu.Lock()
	n.syncs++
	n.mu.Unlock()
}

func (n *recordingNotifier) PublishStats(projectID string, wordCount, chapters int) {
	n.mu.Lock()
	n.statCalls = append(n.statCalls, projectID)
	n.mu.Unlock()
}

func (n *recordingNotifier) syncCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.syncs
}

func TestNewValidation(t *testing.T) {
	st := setupTestStore(t)

	if _, err := New(nil, t.TempDir(), nil, nil); err == nil {
		t.Error("Expected error for nil store")
	}
	if _, err := New(st, "", nil, nil); err == nil {
		t.Error("Expected error for empty drafts dir")
	}
	if _, err := New(st, t.TempDir(), nil, nil); err != nil {
		t.Errorf("Expected valid daemon, got %v", err)
	}
}

func TestFullSync(t *testing.T) {
	st := setupTestStore(t)
	project := setupTestProject(t, st)

	draftsDir := t.TempDir()
	chaptersDir := filepath.Join(draftsDir, "chapters")
	if err := os.MkdirAll(chaptersDir, 0o755); err != nil {
		t.Fatalf("Failed to create chapters dir: %v", err)
	}

	writeChapterDraft(t, chaptersDir, &schema.Chapter{
		ID:        "ch-1",
		ProjectID: project.ID,
		Title:     "Opening",
		Content:   "The fox stepped into the moonlight.",
	})

	notifier := &recordingNotifier{}
	d, err := New(st, draftsDir, notifier, &Config{
		DebounceInterval:     50 * time.Millisecond,
		StatsRefreshInterval: time.Second,
		Logger:               log.New(os.Stderr, "[test] ", log.LstdFlags),
	})
	if err != nil {
		t.Fatalf("Failed to create daemon: %v", err)
	}

	if err := d.PerformFullSync(); err != nil {
		t.Fatalf("Full sync failed: %v", err)
	}

	c, err := st.GetChapter(context.Background(), "writer-1", "ch-1")
	if err != nil {
		t.Fatalf("Chapter not synced: %v", err)
	}
	if c.Title != "Opening" {
		t.Errorf("Expected title Opening, got %q", c.Title)
	}
	if c.WordCount != 6 {
		t.Errorf("Expected word count 6, got %d", c.WordCount)
	}
	if notifier.syncCount() != 1 {
		t.Errorf("Expected 1 sync notification, got %d", notifier.syncCount())
	}
}

func TestFullSyncSkipsOrphanChapters(t *testing.T) {
	st := setupTestStore(t)

	draftsDir := t.TempDir()
	chaptersDir := filepath.Join(draftsDir, "chapters")
	if err := os.MkdirAll(chaptersDir, 0o755); err != nil {
		t.Fatalf("Failed to create chapters dir: %v", err)
	}

	// References a project that does not exist; the foreign key rejects
	// the row and the sync continues.
	writeChapterDraft(t, chaptersDir, &schema.Chapter{
		ID:        "ch-orphan",
		ProjectID: "missing",
		Title:     "Stray",
	})

	d, err := New(st, draftsDir, nil, &Config{
		DebounceInterval:     50 * time.Millisecond,
		StatsRefreshInterval: time.Second,
		Logger:               log.New(os.Stderr, "[test] ", log.LstdFlags),
	})
	if err != nil {
		t.Fatalf("Failed to create daemon: %v", err)
	}

	if err := d.PerformFullSync(); err != nil {
		t.Fatalf("Full sync should not fail on orphans: %v", err)
	}
}

func TestProcessPendingChangesDrainsDueEntries(t *testing.T) {
	st := setupTestStore(t)
	project := setupTestProject(t, st)

	draftsDir := t.TempDir()
	chaptersDir := filepath.Join(draftsDir, "chapters")
	if err := os.MkdirAll(chaptersDir, 0o755); err != nil {
		t.Fatalf("Failed to create chapters dir: %v", err)
	}

	c := &schema.Chapter{
		ID:        "ch-due",
		ProjectID: project.ID,
		Title:     "Due",
		Content:   "Three small words.",
	}
	writeChapterDraft(t, chaptersDir, c)

	d, err := New(st, draftsDir, nil, &Config{
		DebounceInterval:     10 * time.Millisecond,
		StatsRefreshInterval: time.Second,
		Logger:               log.New(os.Stderr, "[test] ", log.LstdFlags),
	})
	if err != nil {
		t.Fatalf("Failed to create daemon: %v", err)
	}

	d.queueChange(filepath.Join(chaptersDir, c.Filename()))
	time.Sleep(20 * time.Millisecond)
	// Queued within the debounce window; must survive this pass.
	d.queueChange(filepath.Join(chaptersDir, "young.json"))

	d.processPendingChanges()

	if _, err := st.GetChapter(context.Background(), "writer-1", "ch-due"); err != nil {
		t.Fatalf("Due change was not synced: %v", err)
	}

	d.changeQueueMu.Lock()
	remaining := len(d.changeQueue)
	d.changeQueueMu.Unlock()
	if remaining != 1 {
		t.Errorf("Expected 1 entry still queued, got %d", remaining)
	}
}

func TestWatchPicksUpNewDraft(t *testing.T) {
	st := setupTestStore(t)
	project := setupTestProject(t, st)

	draftsDir := t.TempDir()

	d, err := New(st, draftsDir, nil, &Config{
		DebounceInterval:     50 * time.Millisecond,
		StatsRefreshInterval: time.Second,
		Logger:               log.New(os.Stderr, "[test] ", log.LstdFlags),
	})
	if err != nil {
		t.Fatalf("Failed to create daemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	// Give the watcher time to install.
	time.Sleep(200 * time.Millisecond)

	writeChapterDraft(t, filepath.Join(draftsDir, "chapters"), &schema.Chapter{
		ID:        "ch-live",
		ProjectID: project.ID,
		Title:     "Written While Running",
		Content:   "New words arrive.",
	})

	// Poll for the upsert; debounce plus processing should finish well
	// within the deadline.
	deadline := time.Now().Add(5 * time.Second)
	for {
		c, err := st.GetChapter(context.Background(), "writer-1", "ch-live")
		if err == nil {
			if c.WordCount != 3 {
				t.Errorf("Expected word count 3, got %d", c.WordCount)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for chapter sync")
		}
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Daemon exited with error: %v", err)
	}
}
