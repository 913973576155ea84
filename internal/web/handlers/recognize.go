package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"log"
	"net/http"

	"github.com/kozaktomas/face-gallery/internal/capture"
	"github.com/kozaktomas/face-gallery/internal/config"
	"github.com/kozaktomas/face-gallery/internal/constants"
	"github.com/kozaktomas/face-gallery/internal/liveness"
)

// PhotoFinder lists a person's filed photos for an event.
type PhotoFinder interface {
	PersonPhotos(eventID, personID string) (individual, group []string, err error)
}

// RecognizeHandler handles live face recognition requests.
type RecognizeHandler struct {
	config   *config.Config
	capture  Capture
	liveness Liveness
	detector Detector
	model    IdentityModel
	photos   PhotoFinder
}

// NewRecognizeHandler creates a new recognize handler.
func NewRecognizeHandler(cfg *config.Config, agg Capture, live Liveness, detector Detector, model IdentityModel, photos PhotoFinder) *RecognizeHandler {
	return &RecognizeHandler{
		config:   cfg,
		capture:  agg,
		liveness: live,
		detector: detector,
		model:    model,
		photos:   photos,
	}
}

type recognizeRequest struct {
	// Frames is a burst of base64 JPEG/PNG frames from the capture widget.
	Frames []string `json:"frames"`
	// Image is the legacy single-shot field, kept for old kiosk clients.
	Image     string `json:"image"`
	Challenge string `json:"challenge"`
	EventID   string `json:"event_id"`
}

type recognizeResponse struct {
	Success          bool     `json:"success"`
	PersonID         string   `json:"person_id"`
	Name             string   `json:"name,omitempty"`
	EventID          string   `json:"event_id"`
	IndividualPhotos []string `json:"individual_photos"`
	GroupPhotos      []string `json:"group_photos"`
}

// Recognize handles POST /api/v1/recognize. Multi-frame requests run the
// liveness gate before any embedding work; the legacy single-image path
// skips liveness and never reinforces the model.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)

	var req recognizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	eventID := req.EventID
	if eventID == "" {
		eventID = "default_event"
	}

	var personID string
	if len(req.Frames) > 0 {
		id, ok := h.recognizeFrames(w, r, &req)
		if !ok {
			return
		}
		personID = id
	} else if req.Image != "" {
		id, ok := h.recognizeLegacy(w, r, req.Image)
		if !ok {
			return
		}
		personID = id
	} else {
		respondError(w, http.StatusBadRequest, "no frames provided")
		return
	}

	individual, group, err := h.photos.PersonPhotos(eventID, personID)
	if err != nil {
		log.Printf("[FACES] listing photos for %s/%s: %v", sanitizeForLog(eventID), personID, err)
		respondError(w, http.StatusInternalServerError, "failed to list photos")
		return
	}
	if len(individual) == 0 && len(group) == 0 {
		respondError(w, http.StatusNotFound, "no photos found for this person")
		return
	}

	resp := recognizeResponse{
		Success:          true,
		PersonID:         personID,
		EventID:          eventID,
		IndividualPhotos: individual,
		GroupPhotos:      group,
	}
	if summary, ok := h.model.Get(personID); ok {
		resp.Name = summary.Name
	}
	respondJSON(w, http.StatusOK, resp)
}

// recognizeFrames runs the multi-frame pipeline: liveness, aggregation,
// matching and reinforcement. A false return means the response was
// already written.
func (h *RecognizeHandler) recognizeFrames(w http.ResponseWriter, r *http.Request, req *recognizeRequest) (string, bool) {
	if len(req.Frames) > constants.MaxCaptureFrames {
		respondError(w, http.StatusBadRequest, "too many frames")
		return "", false
	}

	challenge, err := liveness.ParseChallenge(req.Challenge)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", false
	}

	frames := make([]image.Image, 0, len(req.Frames))
	for i, encoded := range req.Frames {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			log.Printf("[CAPTURE] frame %d: invalid base64, skipping", i)
			continue
		}
		img, err := capture.DecodeFrame(data)
		if err != nil {
			log.Printf("[CAPTURE] frame %d: %v, skipping", i, err)
			continue
		}
		frames = append(frames, img)
	}
	if len(frames) == 0 {
		respondError(w, http.StatusBadRequest, "no decodable frames")
		return "", false
	}

	result, err := h.liveness.Verify(r.Context(), frames, challenge)
	if err != nil {
		log.Printf("[LIVENESS] verification error: %v", err)
		respondError(w, http.StatusBadGateway, "liveness verification unavailable")
		return "", false
	}
	if !result.Live {
		log.Printf("[LIVENESS] rejected capture: %s", result.Diagnostics.Reason)
		respondError(w, http.StatusForbidden, "liveness check failed")
		return "", false
	}

	embedding, err := h.capture.Aggregate(r.Context(), frames)
	if err != nil {
		if errors.Is(err, capture.ErrNoUsableFace) {
			respondError(w, http.StatusBadRequest, "no usable face in capture")
			return "", false
		}
		log.Printf("[CAPTURE] aggregation error: %v", err)
		respondError(w, http.StatusBadGateway, "face detection unavailable")
		return "", false
	}

	personID := h.model.Recognize(embedding)
	if personID == "" {
		respondError(w, http.StatusNotFound, "face not recognized")
		return "", false
	}

	if err := h.model.UpdateEncoding(personID, embedding); err != nil {
		log.Printf("[MODEL] reinforcing %s: %v", personID, err)
		respondError(w, http.StatusInternalServerError, "failed to update model")
		return "", false
	}

	return personID, true
}

// recognizeLegacy matches a single still image against the model without
// liveness checks or reinforcement.
func (h *RecognizeHandler) recognizeLegacy(w http.ResponseWriter, r *http.Request, encoded string) (string, bool) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid image data")
		return "", false
	}

	faces, err := h.detector.DetectFaces(r.Context(), data)
	if err != nil {
		log.Printf("[CAPTURE] legacy detection error: %v", err)
		respondError(w, http.StatusBadGateway, "face detection unavailable")
		return "", false
	}
	if len(faces) == 0 {
		respondError(w, http.StatusBadRequest, "no face detected in image")
		return "", false
	}

	personID := h.model.Recognize(faces[0].Embedding)
	if personID == "" {
		respondError(w, http.StatusNotFound, "face not recognized")
		return "", false
	}
	return personID, true
}
