package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-gallery/internal/gallery"
)

// Ingestor runs the offline ingestion pipeline for one event.
type Ingestor interface {
	ProcessEvent(ctx context.Context, eventID string, opts gallery.Options) (*gallery.Report, error)
}

// ProcessHandler starts and tracks async event ingestion jobs.
type ProcessHandler struct {
	processor  Ingestor
	jobManager *JobManager
}

// NewProcessHandler creates a new process handler.
func NewProcessHandler(processor Ingestor, jobManager *JobManager) *ProcessHandler {
	return &ProcessHandler{processor: processor, jobManager: jobManager}
}

// Start handles POST /api/v1/events/{eventID}/process. One job per event
// at a time; a second request while one runs gets 409.
func (h *ProcessHandler) Start(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		respondError(w, http.StatusBadRequest, "missing event ID")
		return
	}

	if active := h.jobManager.ActiveJobForEvent(eventID); active != nil {
		respondError(w, http.StatusConflict, fmt.Sprintf("event already processing (job %s)", active.ID))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := h.jobManager.CreateJob(uuid.New().String(), eventID, cancel)

	go h.runJob(ctx, job)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id":   job.ID,
		"event_id": eventID,
		"status":   string(job.GetStatus()),
	})
}

// runJob drives one ingestion run and mirrors its progress into job events.
func (h *ProcessHandler) runJob(ctx context.Context, job *ProcessJob) {
	job.setStatus(JobStatusRunning)
	job.SendEvent(JobEvent{Type: "started", Message: "Processing started"})

	report, err := h.processor.ProcessEvent(ctx, job.EventID, gallery.Options{
		OnProgress: func(p gallery.Progress) {
			job.mu.Lock()
			job.TotalPhotos = p.Total
			job.ProcessedPhotos = p.Current
			job.mu.Unlock()
			job.SendEvent(JobEvent{Type: "progress", Data: map[string]any{
				"current": p.Current,
				"total":   p.Total,
				"photo":   p.Photo,
				"faces":   p.Faces,
			}})
		},
	})

	switch {
	case ctx.Err() != nil:
		// Cancel already notified listeners; just record the completion time.
		job.finish(JobStatusCancelled, nil, "")
		log.Printf("[PROCESS] job %s for event %s cancelled", job.ID, sanitizeForLog(job.EventID))
	case err != nil:
		log.Printf("[PROCESS] job %s for event %s failed: %v", job.ID, sanitizeForLog(job.EventID), err)
		job.finish(JobStatusFailed, nil, err.Error())
		job.SendEvent(JobEvent{Type: "failed", Message: err.Error()})
	default:
		job.finish(JobStatusCompleted, report, "")
		job.SendEvent(JobEvent{Type: "completed", Data: report})
	}
}

// Status handles GET /api/v1/jobs/{jobId}.
func (h *ProcessHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.jobManager.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.snapshot())
}

// Events handles GET /api/v1/jobs/{jobId}/events as a server-sent event stream.
func (h *ProcessHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r, h.jobManager.GetJob)
}

// Cancel handles DELETE /api/v1/jobs/{jobId}.
func (h *ProcessHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.jobManager.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if isJobTerminal(job.GetStatus()) {
		respondError(w, http.StatusConflict, "job already finished")
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]string{
		"job_id": job.ID,
		"status": string(job.GetStatus()),
	})
}
