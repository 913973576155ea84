package gallery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/face-gallery/internal/config"
	"github.com/kozaktomas/face-gallery/internal/database"
	"github.com/kozaktomas/face-gallery/internal/detect"
	"github.com/kozaktomas/face-gallery/internal/identity"
)

// contentDetector fakes the detection server: each comma-separated name in
// the photo file body becomes one face with a name-specific embedding.
type contentDetector struct{}

func (contentDetector) DetectFaces(_ context.Context, data []byte) ([]detect.Face, error) {
	body := strings.TrimSpace(string(data))
	if body == "bad" {
		return nil, errors.New("detector choked")
	}
	if body == "" {
		return nil, nil
	}
	var faces []detect.Face
	for i, name := range strings.Split(body, ",") {
		var x float32
		for _, r := range name {
			x += float32(r)
		}
		faces = append(faces, detect.Face{
			FaceIndex: i,
			Embedding: []float32{x, 0},
			BBox:      []float64{0, 0, 10, 10},
			DetScore:  0.9,
		})
	}
	return faces, nil
}

func testProcessor(t *testing.T) (*Processor, *database.Store, string) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.GalleryConfig{
		UploadDir:    filepath.Join(root, "uploads"),
		ProcessedDir: filepath.Join(root, "processed"),
	}
	model := identity.NewStore(filepath.Join(root, "known_faces.dat"), identity.Options{})
	faces := database.NewStore("", nil)
	return New(contentDetector{}, model, faces, cfg), faces, root
}

func writePhoto(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o640); err != nil {
		t.Fatal(err)
	}
}

func TestProcessEvent(t *testing.T) {
	p, faces, root := testProcessor(t)
	eventDir := filepath.Join(root, "uploads", "wedding")
	writePhoto(t, eventDir, "solo.jpg", "alice")
	writePhoto(t, eventDir, "pair.jpg", "alice,bob")
	writePhoto(t, eventDir, "notes.txt", "not a photo")
	writePhoto(t, eventDir, "wedding_qr.png", "qr code")

	var progressCalls int
	report, err := p.ProcessEvent(context.Background(), "wedding", Options{
		Concurrency: 1,
		OnProgress:  func(Progress) { progressCalls++ },
	})
	if err != nil {
		t.Fatal(err)
	}

	if report.Photos != 2 || report.Processed != 2 {
		t.Errorf("photos/processed = %d/%d, want 2/2", report.Photos, report.Processed)
	}
	if report.FacesFound != 3 {
		t.Errorf("FacesFound = %d, want 3", report.FacesFound)
	}
	if len(report.People) != 2 {
		t.Errorf("People = %v, want two identities", report.People)
	}
	if len(report.Errors) != 0 {
		t.Errorf("unexpected errors: %v", report.Errors)
	}
	if progressCalls != 2 {
		t.Errorf("progress callback ran %d times, want 2", progressCalls)
	}
	if faces.Count() != 3 {
		t.Errorf("indexed %d faces, want 3", faces.Count())
	}

	// alice appears in both photos under one id.
	var alice string
	for _, id := range report.People {
		if photos := faces.PhotosByPerson("wedding", id); len(photos) == 2 {
			alice = id
		}
	}
	if alice == "" {
		t.Fatal("no identity appears in both photos")
	}

	individual, group, err := p.PersonPhotos("wedding", alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(individual) != 1 || individual[0] != "solo.jpg" {
		t.Errorf("individual = %v, want [solo.jpg]", individual)
	}
	if len(group) != 1 || group[0] != "pair.jpg" {
		t.Errorf("group = %v, want [pair.jpg]", group)
	}
}

func TestProcessEventIsolatesFailures(t *testing.T) {
	p, _, root := testProcessor(t)
	eventDir := filepath.Join(root, "uploads", "party")
	writePhoto(t, eventDir, "broken.jpg", "bad")
	writePhoto(t, eventDir, "fine.jpg", "carol")

	report, err := p.ProcessEvent(context.Background(), "party", Options{Concurrency: 1})
	if err != nil {
		t.Fatal(err)
	}
	if report.Processed != 1 {
		t.Errorf("Processed = %d, want 1", report.Processed)
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0], "broken.jpg") {
		t.Errorf("Errors = %v, want one entry for broken.jpg", report.Errors)
	}
}

func TestProcessEventUnknownEvent(t *testing.T) {
	p, _, _ := testProcessor(t)
	if _, err := p.ProcessEvent(context.Background(), "missing", Options{}); err == nil {
		t.Error("expected error for unknown event directory")
	}
}

func TestProcessEventNoFacePhoto(t *testing.T) {
	p, faces, root := testProcessor(t)
	eventDir := filepath.Join(root, "uploads", "empty")
	writePhoto(t, eventDir, "landscape.jpg", "")

	report, err := p.ProcessEvent(context.Background(), "empty", Options{Concurrency: 1})
	if err != nil {
		t.Fatal(err)
	}
	if report.Processed != 1 || report.FacesFound != 0 {
		t.Errorf("processed/faces = %d/%d, want 1/0", report.Processed, report.FacesFound)
	}
	if faces.Count() != 0 {
		t.Errorf("indexed %d faces, want 0", faces.Count())
	}
}

func TestEventDirs(t *testing.T) {
	p, _, root := testProcessor(t)
	writePhoto(t, filepath.Join(root, "uploads", "one"), "a.jpg", "alice")
	writePhoto(t, filepath.Join(root, "uploads", "two"), "b.jpg", "bob")

	events, err := p.EventDirs()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("EventDirs = %v, want two events", events)
	}
}

func TestIsPhotoFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"photo.jpg", true},
		{"photo.JPEG", true},
		{"photo.png", true},
		{"event_qr.png", false},
		{"notes.txt", false},
		{"clip.mp4", false},
	}
	for _, tt := range tests {
		if got := isPhotoFile(tt.name); got != tt.want {
			t.Errorf("isPhotoFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestProcessEventSkipIndexed(t *testing.T) {
	p, faces, root := testProcessor(t)
	eventDir := filepath.Join(root, "uploads", "wedding")
	writePhoto(t, eventDir, "solo.jpg", "alice")

	if _, err := p.ProcessEvent(context.Background(), "wedding", Options{Concurrency: 1}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	indexed := faces.Count()

	writePhoto(t, eventDir, "late.jpg", "bob")
	report, err := p.ProcessEvent(context.Background(), "wedding", Options{Concurrency: 1, SkipIndexed: true})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if report.Photos != 1 {
		t.Errorf("expected only the new photo to be picked up, got %d", report.Photos)
	}
	if faces.Count() != indexed+1 {
		t.Errorf("expected one new indexed face, got %d -> %d", indexed, faces.Count())
	}
}
