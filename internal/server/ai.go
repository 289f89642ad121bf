package server

import (
	"net/http"

	"github.com/spectreweave/spectreweave/internal/backend"
)

// AI routes forward to the generation engine with the caller's token.
// Engine outages surface as stubbed responses, not errors; the editor
// stays usable for manual writing.

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req backend.GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "invalid", "prompt is required")
		return
	}

	resp, err := s.backend.Generate(r.Context(), tokenFrom(r.Context()), &req)
	if err != nil {
		writeError(w, http.StatusBadGateway, "engine", err.Error())
		return
	}
	writeData(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req backend.SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "invalid", "query is required")
		return
	}

	resp, err := s.backend.Search(r.Context(), tokenFrom(r.Context()), &req)
	if err != nil {
		writeError(w, http.StatusBadGateway, "engine", err.Error())
		return
	}
	writeData(w, http.StatusOK, resp)
}

func (s *Server) handleConsistency(w http.ResponseWriter, r *http.Request) {
	var req backend.ConsistencyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	if req.CharacterID == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid", "character_id and text are required")
		return
	}

	resp, err := s.backend.CheckConsistency(r.Context(), tokenFrom(r.Context()), &req)
	if err != nil {
		writeError(w, http.StatusBadGateway, "engine", err.Error())
		return
	}
	writeData(w, http.StatusOK, resp)
}
