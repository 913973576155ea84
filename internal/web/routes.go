package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-gallery/internal/web/handlers"
)

func (s *Server) setupRoutes(deps Deps) {
	recognizeHandler := handlers.NewRecognizeHandler(s.config, deps.Capture, deps.Liveness, deps.Detector, deps.Model, deps.Processor)
	identitiesHandler := handlers.NewIdentitiesHandler(deps.Model, deps.Faces)
	similarHandler := handlers.NewSimilarHandler(deps.Detector, deps.Faces)
	processHandler := handlers.NewProcessHandler(deps.Processor, s.jobManager)
	healthHandler := handlers.NewHealthHandler(deps.Model, deps.Faces)

	// Health check
	s.router.Get("/api/v1/health", healthHandler.Get)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Live recognition
		r.Post("/recognize", recognizeHandler.Recognize)

		// Identities
		r.Get("/identities", identitiesHandler.List)
		r.Get("/identities/{id}", identitiesHandler.Get)
		r.Put("/identities/{id}", identitiesHandler.Update)
		r.Get("/identities/{id}/photos", identitiesHandler.Photos)

		// Face similarity search
		r.Post("/faces/similar", similarHandler.Find)

		// Event processing (long-running ingestion jobs)
		r.Post("/events/{eventID}/process", processHandler.Start)
		r.Get("/jobs/{jobId}", processHandler.Status)
		r.Get("/jobs/{jobId}/events", processHandler.Events)
		r.Delete("/jobs/{jobId}", processHandler.Cancel)
	})
}
