// Package gallery ingests event photo uploads: it detects faces, teaches
// the identity model, records faces in the photo-face index and files each
// photo under every matched person's processed directory.
package gallery

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kozaktomas/face-gallery/internal/config"
	"github.com/kozaktomas/face-gallery/internal/constants"
	"github.com/kozaktomas/face-gallery/internal/database"
	"github.com/kozaktomas/face-gallery/internal/detect"
)

// Learner is the slice of the identity model ingestion needs. Offline
// photos are historical data, so there is no liveness gate on this path.
type Learner interface {
	LearnOrReinforce(embedding []float32) (string, error)
}

// Progress reports per-photo completion to an optional callback.
type Progress struct {
	Current int
	Total   int
	Photo   string
	Faces   int
}

// Report summarizes one event ingestion run.
type Report struct {
	EventID    string   `json:"event_id"`
	Photos     int      `json:"photos"`
	Processed  int      `json:"processed"`
	FacesFound int      `json:"faces_found"`
	People     []string `json:"people"`
	Errors     []string `json:"errors,omitempty"`
}

// Options tune one ProcessEvent run.
type Options struct {
	Concurrency int
	OnProgress  func(Progress)
	// SkipIndexed leaves out photos that already have faces in the index,
	// so startup re-ingestion does not reinforce the model twice.
	SkipIndexed bool
}

// Processor runs the ingestion pipeline for event upload directories.
type Processor struct {
	detector     Detector
	model        Learner
	faces        *database.Store
	uploadDir    string
	processedDir string
}

// Detector is the slice of the detection client ingestion needs.
type Detector interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]detect.Face, error)
}

// New creates a processor over the configured gallery directories.
func New(detector Detector, model Learner, faces *database.Store, cfg *config.GalleryConfig) *Processor {
	return &Processor{
		detector:     detector,
		model:        model,
		faces:        faces,
		uploadDir:    cfg.UploadDir,
		processedDir: cfg.ProcessedDir,
	}
}

// EventDirs lists the event directories under the upload root.
func (p *Processor) EventDirs() ([]string, error) {
	entries, err := os.ReadDir(p.uploadDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read upload directory: %w", err)
	}
	var events []string
	for _, e := range entries {
		if e.IsDir() {
			events = append(events, e.Name())
		}
	}
	return events, nil
}

// ProcessEvent runs detection and learning over every photo in the event's
// upload directory. Per-photo failures are logged, recorded in the report
// and never abort the rest of the batch.
func (p *Processor) ProcessEvent(ctx context.Context, eventID string, opts Options) (*Report, error) {
	inputDir := filepath.Join(p.uploadDir, eventID)
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", eventID, err)
	}

	var photos []string
	for _, e := range entries {
		if e.IsDir() || !isPhotoFile(e.Name()) {
			continue
		}
		if opts.SkipIndexed && p.faces.HasPhoto(eventID, e.Name()) {
			continue
		}
		photos = append(photos, e.Name())
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = constants.WorkerPoolSize
	}

	log.Printf("[PROCESS] starting event %s: %d photos, %d workers", eventID, len(photos), concurrency)

	report := &Report{EventID: eventID, Photos: len(photos)}
	people := map[string]bool{}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		done      int
		semaphore = make(chan struct{}, concurrency)
	)

	for _, photo := range photos {
		wg.Add(1)
		go func(photo string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			var faceCount int
			var ids []string
			err := ctx.Err()
			if err == nil {
				faceCount, ids, err = p.processPhoto(ctx, eventID, inputDir, photo)
			}

			mu.Lock()
			done++
			current := done
			if err != nil {
				log.Printf("[PROCESS] %s/%s: %v", eventID, photo, err)
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", photo, err))
			} else {
				report.Processed++
				report.FacesFound += faceCount
				for _, id := range ids {
					people[id] = true
				}
			}
			mu.Unlock()

			if opts.OnProgress != nil {
				opts.OnProgress(Progress{Current: current, Total: len(photos), Photo: photo, Faces: faceCount})
			}
		}(photo)
	}
	wg.Wait()

	for id := range people {
		report.People = append(report.People, id)
	}
	sort.Strings(report.People)

	log.Printf("[PROCESS] finished event %s: %d/%d photos, %d faces, %d people",
		eventID, report.Processed, report.Photos, report.FacesFound, len(report.People))
	return report, nil
}

// processPhoto handles one photo: detect, learn each face, index, file.
// Returns the face count and the distinct identity ids seen in the photo.
func (p *Processor) processPhoto(ctx context.Context, eventID, inputDir, photo string) (int, []string, error) {
	data, err := os.ReadFile(filepath.Join(inputDir, photo))
	if err != nil {
		return 0, nil, fmt.Errorf("read photo: %w", err)
	}

	faces, err := p.detector.DetectFaces(ctx, data)
	if err != nil {
		return 0, nil, fmt.Errorf("detect faces: %w", err)
	}
	if len(faces) == 0 {
		log.Printf("[PROCESS] %s/%s: no faces", eventID, photo)
		return 0, nil, nil
	}

	records := make([]database.PhotoFace, 0, len(faces))
	seen := map[string]bool{}
	var ids []string
	for _, face := range faces {
		id, err := p.model.LearnOrReinforce(face.Embedding)
		if err != nil {
			return 0, nil, fmt.Errorf("learn face %d: %w", face.FaceIndex, err)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
		records = append(records, database.PhotoFace{
			FaceIndex: face.FaceIndex,
			Embedding: face.Embedding,
			BBox:      face.BBox,
			DetScore:  face.DetScore,
			PersonID:  id,
			Dim:       len(face.Embedding),
		})
	}

	if err := p.faces.AddFaces(ctx, eventID, photo, records); err != nil {
		return 0, nil, fmt.Errorf("index faces: %w", err)
	}

	if err := p.filePhoto(eventID, photo, data, ids, len(faces)); err != nil {
		return 0, nil, err
	}
	return len(faces), ids, nil
}

// filePhoto copies the photo under processed/<event>/<person>/individual
// or .../group, depending on how many faces the photo holds.
func (p *Processor) filePhoto(eventID, photo string, data []byte, people []string, faceCount int) error {
	subdir := "individual"
	if faceCount > 1 {
		subdir = "group"
	}
	for _, person := range people {
		dir := filepath.Join(p.processedDir, eventID, person, subdir)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		if err := os.WriteFile(filepath.Join(dir, photo), data, 0o640); err != nil {
			return fmt.Errorf("file photo for %s: %w", person, err)
		}
	}
	return nil
}

// PersonPhotos lists a person's filed photos for an event, split into
// individual and group shots.
func (p *Processor) PersonPhotos(eventID, personID string) (individual, group []string, err error) {
	base := filepath.Join(p.processedDir, eventID, personID)
	individual, err = listDir(filepath.Join(base, "individual"))
	if err != nil {
		return nil, nil, err
	}
	group, err = listDir(filepath.Join(base, "group"))
	if err != nil {
		return nil, nil, err
	}
	return individual, group, nil
}

func listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// isPhotoFile accepts the upload formats and skips generated QR codes.
func isPhotoFile(name string) bool {
	if strings.HasSuffix(name, "_qr.png") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
