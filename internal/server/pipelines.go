package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/spectreweave/spectreweave/internal/pipeline"
	"github.com/spectreweave/spectreweave/internal/schema"
)

func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines, err := s.store.ListPipelines(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, pipelines)
}

func (s *Server) handleCreatePipeline(w http.ResponseWriter, r *http.Request) {
	var p schema.Pipeline
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

	if err := s.store.CreatePipeline(r.Context(), ownerFrom(r.Context()), &p); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.PublishEntityUpdate("pipeline", "created", p.ID, "")
	writeData(w, http.StatusCreated, &p)
}

func (s *Server) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPipeline(r.Context(), ownerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePipeline(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	p, err := s.store.GetPipeline(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if err := decodeJSON(r, p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	p.ID = r.PathValue("id")
	p.UpdatedAt = time.Now()
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}

	if err := s.store.UpdatePipeline(r.Context(), owner, p); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.PublishEntityUpdate("pipeline", "updated", p.ID, "")
	writeData(w, http.StatusOK, p)
}

func (s *Server) handleDeletePipeline(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeletePipeline(r.Context(), ownerFrom(r.Context()), id); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.PublishEntityUpdate("pipeline", "deleted", id, "")
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

// validateRequest carries either an inline pipeline or a stored pipeline's
// id. Exactly one is required.
type validateRequest struct {
	Pipeline   *schema.Pipeline `json:"pipeline,omitempty"`
	PipelineID string           `json:"pipeline_id,omitempty"`
}

// handleValidatePipeline stages a pipeline graph and reports issues.
// Graph anomalies (cycles, dangling edges, unknown agents) are reported
// in the 200 body, never as HTTP errors: the editor shows them inline.
func (s *Server) handleValidatePipeline(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}

	var p *schema.Pipeline
	switch {
	case req.Pipeline != nil && req.PipelineID != "":
		writeError(w, http.StatusBadRequest, "invalid", "provide pipeline or pipeline_id, not both")
		return
	case req.Pipeline != nil:
		p = req.Pipeline
	case req.PipelineID != "":
		stored, err := s.store.GetPipeline(r.Context(), owner, req.PipelineID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		p = stored
	default:
		writeError(w, http.StatusBadRequest, "invalid", "pipeline or pipeline_id is required")
		return
	}

	agents, err := s.store.AgentIDs(r.Context(), owner)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeData(w, http.StatusOK, pipeline.Validate(p, agents))
}
