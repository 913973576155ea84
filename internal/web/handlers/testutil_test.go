package handlers

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-gallery/internal/config"
	"github.com/kozaktomas/face-gallery/internal/detect"
	"github.com/kozaktomas/face-gallery/internal/identity"
	"github.com/kozaktomas/face-gallery/internal/liveness"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Detector: config.DetectorConfig{
			URL: "http://localhost:8000",
			Dim: 128,
		},
	}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// stubCapture returns a fixed embedding or error and counts calls.
type stubCapture struct {
	embedding []float32
	err       error
	calls     int
}

func (s *stubCapture) Aggregate(ctx context.Context, frames []image.Image) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.embedding, nil
}

// stubLiveness returns a fixed verdict and counts calls.
type stubLiveness struct {
	result liveness.Result
	err    error
	calls  int
}

func (s *stubLiveness) Verify(ctx context.Context, frames []image.Image, challenge liveness.Challenge) (liveness.Result, error) {
	s.calls++
	return s.result, s.err
}

// stubDetectorClient returns fixed faces or an error.
type stubDetectorClient struct {
	faces []detect.Face
	err   error
	calls int
}

func (s *stubDetectorClient) DetectFaces(ctx context.Context, imageData []byte) ([]detect.Face, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.faces, nil
}

// stubModel is a scriptable IdentityModel that counts every call.
type stubModel struct {
	recognizeResult string
	updateErr       error
	setNameErr      error
	summaries       map[string]identity.Summary

	recognizeCalls int
	updateCalls    int
}

func (s *stubModel) Recognize(embedding []float32) string {
	s.recognizeCalls++
	return s.recognizeResult
}

func (s *stubModel) UpdateEncoding(id string, embedding []float32) error {
	s.updateCalls++
	return s.updateErr
}

func (s *stubModel) Identities() []identity.Summary {
	out := make([]identity.Summary, 0, len(s.summaries))
	for _, sum := range s.summaries {
		out = append(out, sum)
	}
	return out
}

func (s *stubModel) Get(id string) (identity.Summary, bool) {
	sum, ok := s.summaries[id]
	return sum, ok
}

func (s *stubModel) SetName(id, name string) error {
	if s.setNameErr != nil {
		return s.setNameErr
	}
	if s.summaries == nil {
		s.summaries = map[string]identity.Summary{}
	}
	sum := s.summaries[id]
	sum.ID = id
	sum.Name = name
	s.summaries[id] = sum
	return nil
}

func (s *stubModel) Count() int {
	return len(s.summaries)
}

// stubPhotos returns fixed photo lists per person.
type stubPhotos struct {
	individual []string
	group      []string
	err        error
}

func (s *stubPhotos) PersonPhotos(eventID, personID string) ([]string, []string, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.individual, s.group, nil
}
