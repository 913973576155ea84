package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-gallery/internal/database"
	"github.com/kozaktomas/face-gallery/internal/identity"
)

func testFaceStore(t *testing.T) *database.Store {
	t.Helper()
	return database.NewStore(filepath.Join(t.TempDir(), "index"), nil)
}

func TestIdentitiesHandler_List(t *testing.T) {
	model := &stubModel{summaries: map[string]identity.Summary{
		"person_0001": {ID: "person_0001", Name: "Alice", EncodingCount: 5},
		"person_0002": {ID: "person_0002", EncodingCount: 1},
	}}
	h := NewIdentitiesHandler(model, testFaceStore(t))

	recorder := httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest("GET", "/api/v1/identities", nil))

	assertStatusCode(t, recorder, http.StatusOK)

	var resp struct {
		Identities []identity.Summary `json:"identities"`
		Count      int                `json:"count"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.Count != 2 || len(resp.Identities) != 2 {
		t.Errorf("expected 2 identities, got count=%d len=%d", resp.Count, len(resp.Identities))
	}
}

func TestIdentitiesHandler_Get(t *testing.T) {
	model := &stubModel{summaries: map[string]identity.Summary{
		"person_0001": {ID: "person_0001", Name: "Alice", EncodingCount: 5},
	}}
	h := NewIdentitiesHandler(model, testFaceStore(t))

	req := requestWithChiParams(
		httptest.NewRequest("GET", "/api/v1/identities/person_0001", nil),
		map[string]string{"id": "person_0001"},
	)
	recorder := httptest.NewRecorder()
	h.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var summary identity.Summary
	parseJSONResponse(t, recorder, &summary)
	if summary.Name != "Alice" || summary.EncodingCount != 5 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestIdentitiesHandler_Get_NotFound(t *testing.T) {
	h := NewIdentitiesHandler(&stubModel{}, testFaceStore(t))

	req := requestWithChiParams(
		httptest.NewRequest("GET", "/api/v1/identities/person_9999", nil),
		map[string]string{"id": "person_9999"},
	)
	recorder := httptest.NewRecorder()
	h.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestIdentitiesHandler_Update_Rename(t *testing.T) {
	model := &stubModel{summaries: map[string]identity.Summary{
		"person_0001": {ID: "person_0001"},
	}}
	h := NewIdentitiesHandler(model, testFaceStore(t))

	req := requestWithChiParams(
		httptest.NewRequest("PUT", "/api/v1/identities/person_0001", bytes.NewBufferString(`{"name":"Bob Novak"}`)),
		map[string]string{"id": "person_0001"},
	)
	recorder := httptest.NewRecorder()
	h.Update(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var summary identity.Summary
	parseJSONResponse(t, recorder, &summary)
	if summary.Name != "Bob Novak" {
		t.Errorf("expected renamed summary, got %+v", summary)
	}
}

func TestIdentitiesHandler_Update_EmptyName(t *testing.T) {
	model := &stubModel{summaries: map[string]identity.Summary{"person_0001": {ID: "person_0001"}}}
	h := NewIdentitiesHandler(model, testFaceStore(t))

	req := requestWithChiParams(
		httptest.NewRequest("PUT", "/api/v1/identities/person_0001", bytes.NewBufferString(`{"name":""}`)),
		map[string]string{"id": "person_0001"},
	)
	recorder := httptest.NewRecorder()
	h.Update(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestIdentitiesHandler_Update_NotFound(t *testing.T) {
	h := NewIdentitiesHandler(&stubModel{}, testFaceStore(t))

	req := requestWithChiParams(
		httptest.NewRequest("PUT", "/api/v1/identities/person_9999", bytes.NewBufferString(`{"name":"X"}`)),
		map[string]string{"id": "person_9999"},
	)
	recorder := httptest.NewRecorder()
	h.Update(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestIdentitiesHandler_Photos(t *testing.T) {
	model := &stubModel{summaries: map[string]identity.Summary{"person_0001": {ID: "person_0001"}}}
	faces := testFaceStore(t)
	err := faces.AddFaces(context.Background(), "wedding", "group.jpg", []database.PhotoFace{
		{FaceIndex: 0, Embedding: []float32{0.1, 0.2}, PersonID: "person_0001", Dim: 2},
	})
	if err != nil {
		t.Fatalf("failed to seed index: %v", err)
	}
	h := NewIdentitiesHandler(model, faces)

	req := requestWithChiParams(
		httptest.NewRequest("GET", "/api/v1/identities/person_0001/photos?event_id=wedding", nil),
		map[string]string{"id": "person_0001"},
	)
	recorder := httptest.NewRecorder()
	h.Photos(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp struct {
		PersonID string   `json:"person_id"`
		EventID  string   `json:"event_id"`
		Photos   []string `json:"photos"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.EventID != "wedding" {
		t.Errorf("expected event wedding, got %s", resp.EventID)
	}
	if len(resp.Photos) != 1 || resp.Photos[0] != "group.jpg" {
		t.Errorf("expected [group.jpg], got %v", resp.Photos)
	}
}

func TestIdentitiesHandler_Photos_EmptyList(t *testing.T) {
	model := &stubModel{summaries: map[string]identity.Summary{"person_0001": {ID: "person_0001"}}}
	h := NewIdentitiesHandler(model, testFaceStore(t))

	req := requestWithChiParams(
		httptest.NewRequest("GET", "/api/v1/identities/person_0001/photos", nil),
		map[string]string{"id": "person_0001"},
	)
	recorder := httptest.NewRecorder()
	h.Photos(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp struct {
		Photos []string `json:"photos"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.Photos == nil || len(resp.Photos) != 0 {
		t.Errorf("expected empty photo list, got %v", resp.Photos)
	}
}
