package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-gallery/internal/database"
)

// IdentitiesHandler manages the learned identity collection over HTTP.
type IdentitiesHandler struct {
	model IdentityModel
	faces *database.Store
}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler(model IdentityModel, faces *database.Store) *IdentitiesHandler {
	return &IdentitiesHandler{model: model, faces: faces}
}

// List handles GET /api/v1/identities.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	identities := h.model.Identities()
	respondJSON(w, http.StatusOK, map[string]any{
		"identities": identities,
		"count":      len(identities),
	})
}

// Get handles GET /api/v1/identities/{id}.
func (h *IdentitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	summary, ok := h.model.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// Update handles PUT /api/v1/identities/{id}. Only the display name can
// be changed; embeddings are owned by the capture pipeline.
func (h *IdentitiesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name must not be empty")
		return
	}

	if _, ok := h.model.Get(id); !ok {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	if err := h.model.SetName(id, req.Name); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update identity")
		return
	}

	summary, _ := h.model.Get(id)
	respondJSON(w, http.StatusOK, summary)
}

// Photos handles GET /api/v1/identities/{id}/photos. The optional
// event_id query parameter scopes the lookup to one event.
func (h *IdentitiesHandler) Photos(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.model.Get(id); !ok {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}

	eventID := r.URL.Query().Get("event_id")
	if eventID == "" {
		eventID = "default_event"
	}

	var photos []string
	if h.faces != nil {
		photos = h.faces.PhotosByPerson(eventID, id)
	}
	if photos == nil {
		photos = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"person_id": id,
		"event_id":  eventID,
		"photos":    photos,
	})
}
