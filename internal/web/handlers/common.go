// Package handlers implements the HTTP API: live recognition, identity
// management, face similarity search and event processing jobs.
package handlers

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-gallery/internal/database"
	"github.com/kozaktomas/face-gallery/internal/detect"
	"github.com/kozaktomas/face-gallery/internal/identity"
	"github.com/kozaktomas/face-gallery/internal/liveness"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// Capture fuses a frame sequence into a single embedding.
type Capture interface {
	Aggregate(ctx context.Context, frames []image.Image) ([]float32, error)
}

// Liveness decides whether a frame sequence shows a live subject.
type Liveness interface {
	Verify(ctx context.Context, frames []image.Image, challenge liveness.Challenge) (liveness.Result, error)
}

// Detector is the face detection client surface used by the handlers.
type Detector interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]detect.Face, error)
}

// IdentityModel is the identity store surface used by the handlers.
type IdentityModel interface {
	Recognize(embedding []float32) string
	UpdateEncoding(id string, embedding []float32) error
	Identities() []identity.Summary
	Get(id string) (identity.Summary, bool)
	SetName(id, name string) error
	Count() int
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthHandler reports process health and model counters.
type HealthHandler struct {
	model IdentityModel
	faces *database.Store
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(model IdentityModel, faces *database.Store) *HealthHandler {
	return &HealthHandler{model: model, faces: faces}
}

// Get handles the health check endpoint.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
	}
	if h.model != nil {
		resp["identities"] = h.model.Count()
	}
	if h.faces != nil {
		resp["indexed_faces"] = h.faces.Count()
	}
	respondJSON(w, http.StatusOK, resp)
}
