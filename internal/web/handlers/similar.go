package handlers

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"

	"github.com/kozaktomas/face-gallery/internal/constants"
	"github.com/kozaktomas/face-gallery/internal/database"
	"github.com/kozaktomas/face-gallery/internal/detect"
)

// largestFace picks the face with the biggest bounding box area.
func largestFace(faces []detect.Face) detect.Face {
	best := faces[0]
	bestArea := bboxArea(best.BBox)
	for _, f := range faces[1:] {
		if a := bboxArea(f.BBox); a > bestArea {
			best, bestArea = f, a
		}
	}
	return best
}

func bboxArea(b []float64) float64 {
	if len(b) < 4 {
		return 0
	}
	return (b[2] - b[0]) * (b[3] - b[1])
}

// SimilarHandler answers nearest-neighbor queries over the photo-face index.
type SimilarHandler struct {
	detector Detector
	faces    *database.Store
}

// NewSimilarHandler creates a new similarity search handler.
func NewSimilarHandler(detector Detector, faces *database.Store) *SimilarHandler {
	return &SimilarHandler{detector: detector, faces: faces}
}

type similarRequest struct {
	// Image is a base64 photo; the largest detected face becomes the query.
	Image string `json:"image"`
	// Embedding queries the index directly, bypassing detection.
	Embedding []float32 `json:"embedding"`
	Limit     int       `json:"limit"`
}

type similarMatch struct {
	Photo     string  `json:"photo"`
	EventID   string  `json:"event_id"`
	FaceIndex int     `json:"face_index"`
	PersonID  string  `json:"person_id,omitempty"`
	Distance  float64 `json:"distance"`
}

// Find handles POST /api/v1/faces/similar.
func (h *SimilarHandler) Find(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)

	var req similarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = constants.DefaultSimilarLimit
	}
	if limit > constants.MaxSimilarLimit {
		limit = constants.MaxSimilarLimit
	}

	query := req.Embedding
	if len(query) == 0 {
		if req.Image == "" {
			respondError(w, http.StatusBadRequest, "image or embedding required")
			return
		}
		data, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid image data")
			return
		}
		faces, err := h.detector.DetectFaces(r.Context(), data)
		if err != nil {
			log.Printf("[FACES] similarity detection error: %v", err)
			respondError(w, http.StatusBadGateway, "face detection unavailable")
			return
		}
		if len(faces) == 0 {
			respondError(w, http.StatusBadRequest, "no face detected in image")
			return
		}
		query = largestFace(faces).Embedding
	}

	records, distances := h.faces.FindSimilar(query, limit)
	matches := make([]similarMatch, len(records))
	for i, rec := range records {
		matches[i] = similarMatch{
			Photo:     rec.Photo,
			EventID:   rec.EventID,
			FaceIndex: rec.FaceIndex,
			PersonID:  rec.PersonID,
			Distance:  distances[i],
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"matches": matches,
		"count":   len(matches),
	})
}
