// Package server is the HTTP surface of the writing studio: entity CRUD,
// pipeline validation, AI proxying, and a WebSocket event stream.
//
// Responses use a uniform envelope. Requests are scoped to the caller's
// rows by the subject of their bearer token; AI routes forward the same
// token to the generation engine.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/spectreweave/spectreweave/internal/backend"
	"github.com/spectreweave/spectreweave/internal/store"
)

// Server serves the editor API over HTTP.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	store   *store.Store
	backend *backend.Client
	hub     *Hub

	serviceJWT string
	neo4jURL   string
	httpc      *http.Client

	wg     sync.WaitGroup
	logger *log.Logger
}

// Config holds server configuration.
type Config struct {
	// Addr to listen on (default: ":8080").
	Addr string

	// Store is the persistence layer (required).
	Store *store.Store

	// Backend is the generation engine client (required).
	Backend *backend.Client

	// ServiceJWT authenticates requests that carry no credentials.
	ServiceJWT string

	// Neo4jURL enables the graph-store reachability check in /health.
	Neo4jURL string

	// Logger for server activity (default: stderr logger).
	Logger *log.Logger
}

// NewServer creates the API server. Start begins serving.
func NewServer(cfg *Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	return &Server{
		addr:       cfg.Addr,
		store:      cfg.Store,
		backend:    cfg.Backend,
		hub:        NewHub(cfg.Logger),
		serviceJWT: cfg.ServiceJWT,
		neo4jURL:   cfg.Neo4jURL,
		httpc:      &http.Client{Timeout: 5 * time.Second},
		logger:     cfg.Logger,
	}
}

// Hub returns the event hub, for publishers outside the request path
// (the drafts sync daemon).
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler builds the route table. Exposed for in-process testing.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/projects", s.withAuth(s.handleListProjects))
	mux.HandleFunc("POST /api/projects", s.withAuth(s.handleCreateProject))
	mux.HandleFunc("GET /api/projects/{id}", s.withAuth(s.handleGetProject))
	mux.HandleFunc("PUT /api/projects/{id}", s.withAuth(s.handleUpdateProject))
	mux.HandleFunc("DELETE /api/projects/{id}", s.withAuth(s.handleDeleteProject))
	mux.HandleFunc("GET /api/projects/{id}/stats", s.withAuth(s.handleProjectStats))
	mux.HandleFunc("GET /api/projects/{id}/chapters", s.withAuth(s.handleListChapters))
	mux.HandleFunc("POST /api/projects/{id}/chapters", s.withAuth(s.handleCreateChapter))
	mux.HandleFunc("GET /api/projects/{id}/characters", s.withAuth(s.handleListCharacters))
	mux.HandleFunc("POST /api/projects/{id}/characters", s.withAuth(s.handleCreateCharacter))
	mux.HandleFunc("GET /api/projects/{id}/pages", s.withAuth(s.handleListPages))
	mux.HandleFunc("POST /api/projects/{id}/pages", s.withAuth(s.handleCreatePage))

	mux.HandleFunc("GET /api/chapters/{id}", s.withAuth(s.handleGetChapter))
	mux.HandleFunc("PUT /api/chapters/{id}", s.withAuth(s.handleUpdateChapter))
	mux.HandleFunc("DELETE /api/chapters/{id}", s.withAuth(s.handleDeleteChapter))

	mux.HandleFunc("GET /api/characters/{id}", s.withAuth(s.handleGetCharacter))
	mux.HandleFunc("PUT /api/characters/{id}", s.withAuth(s.handleUpdateCharacter))
	mux.HandleFunc("DELETE /api/characters/{id}", s.withAuth(s.handleDeleteCharacter))

	mux.HandleFunc("GET /api/pages/{id}", s.withAuth(s.handleGetPage))
	mux.HandleFunc("PUT /api/pages/{id}", s.withAuth(s.handleUpdatePage))
	mux.HandleFunc("DELETE /api/pages/{id}", s.withAuth(s.handleDeletePage))

	mux.HandleFunc("GET /api/agents", s.withAuth(s.handleListAgents))
	mux.HandleFunc("POST /api/agents", s.withAuth(s.handleCreateAgent))
	mux.HandleFunc("GET /api/agents/{id}", s.withAuth(s.handleGetAgent))
	mux.HandleFunc("PUT /api/agents/{id}", s.withAuth(s.handleUpdateAgent))
	mux.HandleFunc("DELETE /api/agents/{id}", s.withAuth(s.handleDeleteAgent))

	mux.HandleFunc("GET /api/pipelines", s.withAuth(s.handleListPipelines))
	mux.HandleFunc("POST /api/pipelines", s.withAuth(s.handleCreatePipeline))
	mux.HandleFunc("POST /api/pipelines/validate", s.withAuth(s.handleValidatePipeline))
	mux.HandleFunc("GET /api/pipelines/{id}", s.withAuth(s.handleGetPipeline))
	mux.HandleFunc("PUT /api/pipelines/{id}", s.withAuth(s.handleUpdatePipeline))
	mux.HandleFunc("DELETE /api/pipelines/{id}", s.withAuth(s.handleDeletePipeline))

	mux.HandleFunc("POST /api/ai/generate", s.withAuth(s.handleGenerate))
	mux.HandleFunc("POST /api/ai/search", s.withAuth(s.handleSearch))
	mux.HandleFunc("POST /api/ai/consistency", s.withAuth(s.handleConsistency))

	return s.recoverPanics(mux)
}

// Start begins listening and serving. It returns once the listener is
// bound; serving continues in the background until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	s.hub.Run()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("API server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address. Only valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.logger.Println("Stopping API server")

	s.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()

	s.logger.Println("API server stopped")
	return nil
}

// recoverPanics converts handler panics into 500 responses so one bad
// request can't take the process down.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Printf("Panic in %s %s: %v", r.Method, r.URL.Path, rec)
				writeError(w, http.StatusInternalServerError, "internal", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// handleHealth reports the health of the server and its dependencies.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status":   "ok",
		"database": "ok",
	}

	if err := s.store.Ping(ctx); err != nil {
		health["status"] = "degraded"
		health["database"] = err.Error()
	}

	engine, err := s.backend.Health(ctx)
	if err != nil {
		health["status"] = "degraded"
		health["engine"] = map[string]interface{}{"status": err.Error()}
	} else {
		health["engine"] = engine
	}

	if s.neo4jURL != "" {
		if backend.Reachable(ctx, s.httpc, s.neo4jURL) {
			health["graph_store"] = "ok"
		} else {
			health["graph_store"] = "unreachable"
		}
	}

	writeData(w, http.StatusOK, health)
}

// handleWebSocket upgrades the connection and subscribes it to the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	count := s.hub.addClient(conn)
	s.logger.Printf("Client connected (total: %d)", count)

	go s.hub.readLoop(conn)
}
