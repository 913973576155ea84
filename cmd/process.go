package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gallery/internal/config"
	"github.com/kozaktomas/face-gallery/internal/detect"
	"github.com/kozaktomas/face-gallery/internal/gallery"
	"github.com/kozaktomas/face-gallery/internal/identity"
)

var processCmd = &cobra.Command{
	Use:   "process [event-id]",
	Short: "Ingest event photo uploads",
	Long: `Process the uploaded photos of an event: detect faces, teach the
identity model and file each photo under every person found in it.
Without an event id, every event directory under the upload root is
processed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().Int("concurrency", 0, "Number of parallel photos (0 = default pool size)")
	processCmd.Flags().Bool("quiet", false, "Suppress the progress bar")
}

func runProcess(cmd *cobra.Command, args []string) error {
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

	faces, err := buildFaceStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := faces.Close(); err != nil {
			fmt.Printf("Warning: failed to save face index: %v\n", err)
		}
	}()

	processor := gallery.New(detector, model, faces, &cfg.Gallery)

	events := args
	if len(events) == 0 {
		events, err = processor.EventDirs()
		if err != nil {
			return fmt.Errorf("listing events: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No event directories found")
			return nil
		}
	}

	concurrency := mustGetInt(cmd, "concurrency")
	quiet := mustGetBool(cmd, "quiet")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for _, eventID := range events {
		if err := processEvent(ctx, processor, eventID, concurrency, quiet); err != nil {
			return err
		}
		if ctx.Err() != nil {
			fmt.Println("\nInterrupted")
			break
		}
	}

	fmt.Printf("Identity model now knows %d people\n", model.Count())
	return nil
}

func processEvent(ctx context.Context, processor *gallery.Processor, eventID string, concurrency int, quiet bool) error {
	fmt.Printf("Processing event %s...\n", eventID)

	var (
		bar   *progressbar.ProgressBar
		barMu sync.Mutex
	)
	opts := gallery.Options{Concurrency: concurrency}
	if !quiet {
		// Workers report progress concurrently.
		opts.OnProgress = func(p gallery.Progress) {
			barMu.Lock()
			defer barMu.Unlock()
			if bar == nil {
				bar = progressbar.NewOptions(p.Total,
					progressbar.OptionSetDescription("Processing photos"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("photos"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
				)
			}
			_ = bar.Add(1)
		}
	}

	report, err := processor.ProcessEvent(ctx, eventID, opts)
	if err != nil {
		return fmt.Errorf("event %s: %w", eventID, err)
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	fmt.Printf("Event %s: %d/%d photos, %d faces, %d people\n",
		report.EventID, report.Processed, report.Photos, report.FacesFound, len(report.People))
	for _, e := range report.Errors {
		fmt.Printf("  failed: %s\n", e)
	}
	return nil
}
