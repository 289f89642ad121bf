package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/spectreweave/spectreweave/internal/schema"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var p schema.Project
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.SetDefaults()
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}

	if err := s.store.CreateProject(r.Context(), ownerFrom(r.Context()), &p); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.PublishEntityUpdate("project", "created", p.ID, p.ID)
	writeData(w, http.StatusCreated, &p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), ownerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	p, err := s.store.GetProject(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if err := decodeJSON(r, p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	p.ID = r.PathValue("id")
	p.Touch()
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}

	if err := s.store.UpdateProject(r.Context(), owner, p); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.PublishEntityUpdate("project", "updated", p.ID, p.ID)
	writeData(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteProject(r.Context(), ownerFrom(r.Context()), id); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.PublishEntityUpdate("project", "deleted", id, id)
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleProjectStats(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	id := r.PathValue("id")

	// Visibility check; word count queries are not owner scoped.
	if _, err := s.store.GetProject(r.Context(), owner, id); err != nil {
		writeStoreError(w, err)
		return
	}

	chapters, err := s.store.ListChapters(r.Context(), owner, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	words, err := s.store.ProjectWordCount(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"project_id": id,
		"chapters":   len(chapters),
		"word_count": words,
	})
}
