package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// EventType defines the type of a broadcast event.
type EventType string

const (
	// EventEntityUpdate indicates an entity was created, updated, or deleted.
	EventEntityUpdate EventType = "entity_update"

	// EventSyncComplete indicates a drafts full sync completed.
	EventSyncComplete EventType = "sync_complete"

	// EventStats indicates updated project statistics.
	EventStats EventType = "stats"
)

// Event is one message on the editor's live event stream. Connected editor
// surfaces use it to refresh without polling.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// EntityUpdateData describes an entity change.
type EntityUpdateData struct {
	Entity    string `json:"entity"` // project, chapter, character, page, agent, pipeline
	Action    string `json:"action"` // created, updated, deleted
	ID        string `json:"id"`
	ProjectID string `json:"project_id,omitempty"`
}

// SyncCompleteData describes a completed drafts sync.
type SyncCompleteData struct {
	ChaptersProcessed   int           `json:"chapters_processed"`
	CharactersProcessed int           `json:"characters_processed"`
	Duration            time.Duration `json:"duration"`
}

// StatsData carries recomputed project statistics.
type StatsData struct {
	ProjectID string `json:"project_id"`
	WordCount int    `json:"word_count"`
	Chapters  int    `json:"chapters"`
}

// Hub fans events out to connected WebSocket clients.
type Hub struct {
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewHub creates an event hub. Call Run to start the broadcast loop and
// Close on shutdown.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Event, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}
}

// Run starts the broadcast loop in a background goroutine.
func (h *Hub) Run() {
	h.wg.Add(1)
	go h.broadcastLoop()
}

// Close disconnects all clients and stops the broadcast loop.
func (h *Hub) Close() {
	h.cancel()

	h.clientsMu.Lock()
	for conn := range h.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(h.clients, conn)
	}
	h.clientsMu.Unlock()

	h.wg.Wait()
}

// Publish queues an event for broadcast. Events are dropped (with a
// warning) rather than blocking the caller when the channel is full.
func (h *Hub) Publish(event Event) {
	select {
	case h.broadcast <- event:
	case <-h.ctx.Done():
	default:
		h.logger.Println("Warning: broadcast channel full, dropping event")
	}
}

// PublishEntityUpdate is a convenience wrapper for entity change events.
func (h *Hub) PublishEntityUpdate(entity, action, id, projectID string) {
	data, err := json.Marshal(EntityUpdateData{
		Entity:    entity,
		Action:    action,
		ID:        id,
		ProjectID: projectID,
	})
	if err != nil {
		h.logger.Printf("Failed to marshal entity event: %v", err)
		return
	}
	h.Publish(Event{Type: EventEntityUpdate, Timestamp: time.Now(), Data: data})
}

// PublishSyncComplete reports a finished drafts sync.
func (h *Hub) PublishSyncComplete(chapters, characters int, duration time.Duration) {
	data, err := json.Marshal(SyncCompleteData{
		ChaptersProcessed:   chapters,
		CharactersProcessed: characters,
		Duration:            duration,
	})
	if err != nil {
		h.logger.Printf("Failed to marshal sync event: %v", err)
		return
	}
	h.Publish(Event{Type: EventSyncComplete, Timestamp: time.Now(), Data: data})
}

// PublishStats reports recomputed project statistics.
func (h *Hub) PublishStats(projectID string, wordCount, chapters int) {
	data, err := json.Marshal(StatsData{
		ProjectID: projectID,
		WordCount: wordCount,
		Chapters:  chapters,
	})
	if err != nil {
		h.logger.Printf("Failed to marshal stats event: %v", err)
		return
	}
	h.Publish(Event{Type: EventStats, Timestamp: time.Now(), Data: data})
}

// ClientCount returns the current number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcastLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return

		case event := <-h.broadcast:
			if event.Timestamp.IsZero() {
				event.Timestamp = time.Now()
			}

			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Printf("Failed to marshal event: %v", err)
				continue
			}

			h.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(h.clients))
			for conn := range h.clients {
				clients = append(clients, conn)
			}
			h.clientsMu.RUnlock()

			// Write outside the read lock so a slow client can't stall
			// new subscriptions.
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					h.logger.Printf("Failed to send to client: %v", err)
					h.removeClient(conn)
				}
			}
		}
	}
}

func (h *Hub) addClient(conn *websocket.Conn) int {
	h.clientsMu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.clientsMu.Unlock()
	return count
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.clientsMu.Lock()
	if _, exists := h.clients[conn]; exists {
		delete(h.clients, conn)
		count := len(h.clients)
		h.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		h.logger.Printf("Client disconnected (total: %d)", count)
		return
	}
	h.clientsMu.Unlock()
}

// readLoop keeps a connection alive and reaps it on disconnect. Client
// messages are not processed; the stream is one-way.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.removeClient(conn)
	for {
		if _, _, err := conn.Read(h.ctx); err != nil {
			return
		}
	}
}
