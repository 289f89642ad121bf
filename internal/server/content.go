package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/spectreweave/spectreweave/internal/schema"
)

// Chapter, character, and page handlers. Creation routes hang off the
// project so the project id can't disagree with the body; item routes
// address entities directly.

func (s *Server) handleListChapters(w http.ResponseWriter, r *http.Request) {
	chapters, err := s.store.ListChapters(r.Context(), ownerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, chapters)
}

func (s *Server) handleCreateChapter(w http.ResponseWriter, r *http.Request) {
	var c schema.Chapter
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.ProjectID = r.PathValue("id")
	c.SetDefaults()

	// A negative position means append; the store assigns the real one.
	appendAtEnd := c.Position < 0
	if appendAtEnd {
		c.Position = 0
	}
	if err := c.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	if appendAtEnd {
		c.Position = -1
	}

	if err := s.store.CreateChapter(r.Context(), ownerFrom(r.Context()), &c); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.PublishEntityUpdate("chapter", "created", c.ID, c.ProjectID)
	writeData(w, http.StatusCreated, &c)
}

func (s *Server) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetChapter(r.Context(), ownerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (s *Server) handleUpdateChapter(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	c, err := s.store.GetChapter(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	projectID := c.ProjectID
	if err := decodeJSON(r, c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	c.ID = r.PathValue("id")
	c.ProjectID = projectID
	c.Touch()
	if err := c.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}

	if err := s.store.UpdateChapter(r.Context(), owner, c); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.PublishEntityUpdate("chapter", "updated", c.ID, c.ProjectID)
	writeData(w, http.StatusOK, c)
}

func (s *Server) handleDeleteChapter(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	id := r.PathValue("id")

	c, err := s.store.GetChapter(r.Context(), owner, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.store.DeleteChapter(r.Context(), owner, id); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.PublishEntityUpdate("chapter", "deleted", id, c.ProjectID)
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleListCharacters(w http.ResponseWriter, r *http.Request) {
	characters, err := s.store.ListCharacters(r.Context(), ownerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, characters)
}

func (s *Server) handleCreateCharacter(w http.ResponseWriter, r *http.Request) {
	var c schema.Character
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.ProjectID = r.PathValue("id")
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}

	if err := s.store.CreateCharacter(r.Context(), ownerFrom(r.Context()), &c); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.PublishEntityUpdate("character", "created", c.ID, c.ProjectID)
	writeData(w, http.StatusCreated, &c)
}

func (s *Server) handleGetCharacter(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCharacter(r.Context(), ownerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCharacter(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	c, err := s.store.GetCharacter(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	projectID := c.ProjectID
	if err := decodeJSON(r, c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	c.ID = r.PathValue("id")
	c.ProjectID = projectID
	c.UpdatedAt = time.Now()
	if err := c.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}

	if err := s.store.UpdateCharacter(r.Context(), owner, c); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.PublishEntityUpdate("character", "updated", c.ID, c.ProjectID)
	writeData(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCharacter(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	id := r.PathValue("id")

	c, err := s.store.GetCharacter(r.Context(), owner, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.store.DeleteCharacter(r.Context(), owner, id); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.PublishEntityUpdate("character", "deleted", id, c.ProjectID)
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.store.ListBookPages(r.Context(), ownerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, pages)
}

func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	var p schema.BookPage
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.ProjectID = r.PathValue("id")
	p.SetDefaults()
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}

	if err := s.store.CreateBookPage(r.Context(), ownerFrom(r.Context()), &p); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.PublishEntityUpdate("page", "created", p.ID, p.ProjectID)
	writeData(w, http.StatusCreated, &p)
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetBookPage(r.Context(), ownerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePage(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	p, err := s.store.GetBookPage(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	projectID := p.ProjectID
	if err := decodeJSON(r, p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	p.ID = r.PathValue("id")
	p.ProjectID = projectID
	p.UpdatedAt = time.Now()
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}

	if err := s.store.UpdateBookPage(r.Context(), owner, p); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.PublishEntityUpdate("page", "updated", p.ID, p.ProjectID)
	writeData(w, http.StatusOK, p)
}

func (s *Server) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	id := r.PathValue("id")

	p, err := s.store.GetBookPage(r.Context(), owner, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.store.DeleteBookPage(r.Context(), owner, id); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.PublishEntityUpdate("page", "deleted", id, p.ProjectID)
	writeData(w, http.StatusOK, map[string]string{"id": id})
}
