package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/face-gallery/internal/constants"
	"github.com/kozaktomas/face-gallery/internal/gallery"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// ProcessJob represents one async event ingestion job.
type ProcessJob struct {
	EventBroadcaster

	ID              string          `json:"id"`
	EventID         string          `json:"event_id"`
	Status          JobStatus       `json:"status"`
	TotalPhotos     int             `json:"total_photos"`
	ProcessedPhotos int             `json:"processed_photos"`
	Error           string          `json:"error,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	Result          *gallery.Report `json:"result,omitempty"`
}

// GetStatus returns the current job status (implements SSEJob).
func (j *ProcessJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// setStatus transitions the job state.
func (j *ProcessJob) setStatus(status JobStatus) {
	j.mu.Lock()
	j.Status = status
	j.mu.Unlock()
}

// finish records the terminal state with its completion time.
func (j *ProcessJob) finish(status JobStatus, result *gallery.Report, errMsg string) {
	now := time.Now()
	j.mu.Lock()
	j.Status = status
	j.Result = result
	j.Error = errMsg
	j.CompletedAt = &now
	j.mu.Unlock()
}

// snapshot returns a copy safe for JSON encoding while the job runs.
func (j *ProcessJob) snapshot() ProcessJob {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return ProcessJob{
		ID:              j.ID,
		EventID:         j.EventID,
		Status:          j.Status,
		TotalPhotos:     j.TotalPhotos,
		ProcessedPhotos: j.ProcessedPhotos,
		Error:           j.Error,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
		Result:          j.Result,
	}
}

// Cancel cancels the job via context and notifies listeners.
func (j *ProcessJob) Cancel() {
	if j.cancel != nil {
		j.cancel()
	}
	j.setStatus(JobStatusCancelled)
	j.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// JobManager manages async ingestion jobs.
type JobManager struct {
	jobs map[string]*ProcessJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*ProcessJob),
	}
}

// CreateJob registers a new pending job for an event.
func (m *JobManager) CreateJob(id, eventID string, cancel context.CancelFunc) *ProcessJob {
	job := &ProcessJob{
		ID:        id,
		EventID:   eventID,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}
	job.cancel = cancel

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	return job
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *ProcessJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ActiveJobForEvent returns the running or pending job for an event, if any.
func (m *JobManager) ActiveJobForEvent(eventID string) *ProcessJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, job := range m.jobs {
		if job.EventID != eventID {
			continue
		}
		if status := job.GetStatus(); status == JobStatusPending || status == JobStatusRunning {
			return job
		}
	}
	return nil
}
