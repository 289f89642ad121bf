// Package draftsync watches a local drafts directory and mirrors it into
// the database.
//
// The drafts layout is one JSON file per entity:
//
//	drafts/
//	  chapters/{id}.json
//	  characters/{id}.json
//
// Writers who prefer their own editor work on these files directly; the
// daemon debounces bursts of writes and upserts changed entities so the
// API and the editor surfaces stay current. File deletions are ignored;
// removing content is an API operation, not a filesystem one.
package draftsync

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spectreweave/spectreweave/internal/schema"
	"github.com/spectreweave/spectreweave/internal/store"
)

// Notifier receives sync lifecycle events. The API server's WebSocket hub
// satisfies this; a nil Notifier disables notifications.
type Notifier interface {
	PublishSyncComplete(chapters, characters int, duration time.Duration)
	PublishStats(projectID string, wordCount, chapters int)
}

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long to wait before processing file changes.
	// Rapid saves from editors batch into one sync.
	DebounceInterval time.Duration

	// StatsRefreshInterval is how often to republish word counts for
	// projects touched since the last refresh.
	StatsRefreshInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval:     100 * time.Millisecond,
		StatsRefreshInterval: 5 * time.Second,
		Logger:               log.New(os.Stderr, "[draftsync] ", log.LstdFlags),
	}
}

// Daemon orchestrates file watching and database synchronization.
type Daemon struct {
	store         *store.Store
	chaptersDir   string
	charactersDir string
	config        *Config
	notifier      Notifier

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time // filepath -> queued at
	changeQueueMu sync.Mutex

	dirtyProjects   map[string]bool
	dirtyProjectsMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon watching draftsDir. Use Start to begin syncing.
func New(st *store.Store, draftsDir string, notifier Notifier, config *Config) (*Daemon, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if draftsDir == "" {
		return nil, fmt.Errorf("draftsDir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		store:         st,
		chaptersDir:   filepath.Join(draftsDir, "chapters"),
		charactersDir: filepath.Join(draftsDir, "characters"),
		config:        config,
		notifier:      notifier,
		watcher:       watcher,
		changeQueue:   make(map[string]time.Time),
		dirtyProjects: make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start runs the daemon: an initial full sync, then watching for changes.
// It blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting drafts sync")

	if err := os.MkdirAll(d.chaptersDir, 0o755); err != nil {
		return fmt.Errorf("failed to create chapters dir: %w", err)
	}
	if err := os.MkdirAll(d.charactersDir, 0o755); err != nil {
		return fmt.Errorf("failed to create characters dir: %w", err)
	}

	if err := d.PerformFullSync(); err != nil {
		return fmt.Errorf("initial sync failed: %w", err)
	}

	if err := d.watcher.Add(d.chaptersDir); err != nil {
		return fmt.Errorf("failed to watch chapters directory: %w", err)
	}
	if err := d.watcher.Add(d.charactersDir); err != nil {
		return fmt.Errorf("failed to watch characters directory: %w", err)
	}

	d.config.Logger.Printf("Watching: %s, %s", d.chaptersDir, d.charactersDir)

	d.wg.Add(3)
	go d.watchFileEvents()
	go d.processChangeQueue()
	go d.refreshStats()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping drafts sync")

	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.wg.Wait()

	d.config.Logger.Println("Drafts sync stopped")
	return nil
}

// PerformFullSync reads every draft file and upserts it.
func (d *Daemon) PerformFullSync() error {
	start := time.Now()
	d.config.Logger.Println("Performing full sync")

	chapters, err := schema.ReadAllChapterFiles(d.chaptersDir)
	if err != nil {
		return fmt.Errorf("failed to read chapters: %w", err)
	}
	for _, c := range chapters {
		if err := d.upsertChapter(c); err != nil {
			d.config.Logger.Printf("Warning: failed to sync chapter %s: %v", c.ID, err)
		}
	}

	characters, err := schema.ReadAllCharacterFiles(d.charactersDir)
	if err != nil {
		return fmt.Errorf("failed to read characters: %w", err)
	}
	for _, c := range characters {
		if err := d.upsertCharacter(c); err != nil {
			d.config.Logger.Printf("Warning: failed to sync character %s: %v", c.ID, err)
		}
	}

	d.config.Logger.Printf("Full sync complete: %d chapters, %d characters", len(chapters), len(characters))
	if d.notifier != nil {
		d.notifier.PublishSyncComplete(len(chapters), len(characters), time.Since(start))
	}
	return nil
}

func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".json" {
				continue
			}

			d.config.Logger.Printf("File event: %s %s", event.Op, event.Name)
			d.queueChange(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

func (d *Daemon) processPendingChanges() {
	// Snapshot the due entries and release the lock before touching the
	// database, so incoming file events never wait on a sync.
	now := time.Now()

	d.changeQueueMu.Lock()
	var due []string
	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		due = append(due, path)
		delete(d.changeQueue, path)
	}
	d.changeQueueMu.Unlock()

	for _, path := range due {
		d.config.Logger.Printf("Processing change: %s", path)

		var err error
		switch filepath.Dir(path) {
		case d.chaptersDir:
			err = d.syncChapterFile(path)
		case d.charactersDir:
			err = d.syncCharacterFile(path)
		}
		if err != nil {
			d.config.Logger.Printf("Error syncing %s: %v", path, err)
		}
	}
}

func (d *Daemon) syncChapterFile(path string) error {
	// Editors often write via rename; the file can be gone by the time
	// the debounce fires. Removal never deletes database rows.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	c, err := schema.ReadChapterFile(path)
	if err != nil {
		return fmt.Errorf("failed to read chapter file: %w", err)
	}
	return d.upsertChapter(c)
}

func (d *Daemon) syncCharacterFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	c, err := schema.ReadCharacterFile(path)
	if err != nil {
		return fmt.Errorf("failed to read character file: %w", err)
	}
	return d.upsertCharacter(c)
}

func (d *Daemon) upsertChapter(c *schema.Chapter) error {
	c.WordCount = schema.CountWords(c.Content)

	ctx, cancel := context.WithTimeout(d.ctx, 10*time.Second)
	defer cancel()

	if err := d.store.UpsertChapter(ctx, c); err != nil {
		return err
	}
	d.markDirty(c.ProjectID)
	return nil
}

func (d *Daemon) upsertCharacter(c *schema.Character) error {
	ctx, cancel := context.WithTimeout(d.ctx, 10*time.Second)
	defer cancel()

	return d.store.UpsertCharacter(ctx, c)
}

func (d *Daemon) markDirty(projectID string) {
	d.dirtyProjectsMu.Lock()
	d.dirtyProjects[projectID] = true
	d.dirtyProjectsMu.Unlock()
}

// refreshStats republishes word counts for projects with synced changes.
func (d *Daemon) refreshStats() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.StatsRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.dirtyProjectsMu.Lock()
			dirty := d.dirtyProjects
			d.dirtyProjects = make(map[string]bool)
			d.dirtyProjectsMu.Unlock()

			for projectID := range dirty {
				d.publishProjectStats(projectID)
			}
		}
	}
}

func (d *Daemon) publishProjectStats(projectID string) {
	if d.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(d.ctx, 10*time.Second)
	defer cancel()

	words, err := d.store.ProjectWordCount(ctx, projectID)
	if err != nil {
		d.config.Logger.Printf("Error computing word count for %s: %v", projectID, err)
		return
	}
	chapters, err := d.store.CountChapters(ctx, projectID)
	if err != nil {
		d.config.Logger.Printf("Error counting chapters for %s: %v", projectID, err)
		return
	}
	d.notifier.PublishStats(projectID, words, chapters)
}
