package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gallery/internal/capture"
	"github.com/kozaktomas/face-gallery/internal/config"
	"github.com/kozaktomas/face-gallery/internal/database"
	"github.com/kozaktomas/face-gallery/internal/database/postgres"
	"github.com/kozaktomas/face-gallery/internal/detect"
	"github.com/kozaktomas/face-gallery/internal/gallery"
	"github.com/kozaktomas/face-gallery/internal/identity"
	"github.com/kozaktomas/face-gallery/internal/liveness"
	"github.com/kozaktomas/face-gallery/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Gallery web server.
The server exposes the kiosk recognition endpoint, identity management,
face similarity search and async event ingestion jobs.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// buildFaceStore wires the photo-face index, with the optional PostgreSQL
// mirror when DATABASE_URL is configured.
func buildFaceStore(cfg *config.Config) (*database.Store, error) {
	var repo database.Repository
	if cfg.Database.URL != "" {
		fmt.Printf("Connecting to PostgreSQL database...\n")
		pool, err := postgres.Connect(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		repo = postgres.NewFaceRepository(pool)
		fmt.Printf("Face persistence enabled (PostgreSQL)\n")
	}

	store := database.NewStore(cfg.Database.HNSWIndexPath, repo)
	if store.Count() > 0 {
		fmt.Printf("Face index ready with %d faces\n", store.Count())
	}
	return store, nil
}

// ingestPendingEvents processes every event upload directory once at boot,
// so photos uploaded while the server was down still get indexed.
func ingestPendingEvents(processor *gallery.Processor) {
	events, err := processor.EventDirs()
	if err != nil {
		fmt.Printf("Warning: could not list event uploads: %v\n", err)
		return
	}
	for _, eventID := range events {
		report, err := processor.ProcessEvent(context.Background(), eventID, gallery.Options{SkipIndexed: true})
		if err != nil {
			fmt.Printf("Warning: startup ingestion of %s failed: %v\n", eventID, err)
			continue
		}
		fmt.Printf("Startup ingestion of %s: %d/%d photos, %d faces\n",
			report.EventID, report.Processed, report.Photos, report.FacesFound)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Detector.URL == "" {
		return errors.New("DETECTOR_URL environment variable is required")
	}

	detector := detect.NewClient(cfg.Detector.URL)

	tol := cfg.Tolerances.Active()
	model := identity.NewStore(cfg.Model.DataFile, identity.Options{
		Strict:       tol.Strict,
		Relaxed:      tol.Relaxed,
		MaxEncodings: cfg.Model.MaxEncoding,
	})
	fmt.Printf("Identity model loaded: %d known people\n", model.Count())

	faces, err := buildFaceStore(cfg)
	if err != nil {
		return err
	}

	deps := web.Deps{
		Capture:   capture.NewAggregator(detector),
		Liveness:  liveness.NewVerifier(detector, liveness.DefaultCalibration()),
		Detector:  detector,
		Model:     model,
		Faces:     faces,
		Processor: gallery.New(detector, model, faces, &cfg.Gallery),
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, port, host, deps)

	if cfg.Gallery.ProcessOnStart {
		go ingestPendingEvents(deps.Processor)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
		if err := faces.Close(); err != nil {
			fmt.Printf("Warning: failed to save face index: %v\n", err)
		} else if faces.Count() > 0 {
			fmt.Println("Face index saved to disk")
		}
	}()

	fmt.Printf("Starting Face Gallery on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
