package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/spectreweave/spectreweave/internal/schema"
)

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.store.ListAgents(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, agents)
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var a schema.Agent
	if err := decodeJSON(r, &a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.SetDefaults()
	if err := a.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}

	if err := s.store.CreateAgent(r.Context(), ownerFrom(r.Context()), &a); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.PublishEntityUpdate("agent", "created", a.ID, "")
	writeData(w, http.StatusCreated, &a)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetAgent(r.Context(), ownerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, a)
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	a, err := s.store.GetAgent(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if err := decodeJSON(r, a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	a.ID = r.PathValue("id")
	a.UpdatedAt = time.Now()
	if err := a.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}

	if err := s.store.UpdateAgent(r.Context(), owner, a); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.PublishEntityUpdate("agent", "updated", a.ID, "")
	writeData(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteAgent(r.Context(), ownerFrom(r.Context()), id); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.PublishEntityUpdate("agent", "deleted", id, "")
	writeData(w, http.StatusOK, map[string]string{"id": id})
}
