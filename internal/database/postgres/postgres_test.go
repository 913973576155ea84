//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-gallery/internal/config"
	"github.com/kozaktomas/face-gallery/internal/database"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := Connect(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to connect: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func testEmbedding(fill float32) []float32 {
	emb := make([]float32, 128)
	for i := range emb {
		emb[i] = fill
	}
	return emb
}

func TestFaceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewFaceRepository(pool)

	t.Run("SaveAndGet", func(t *testing.T) {
		faces := []database.PhotoFace{
			{FaceIndex: 0, Embedding: testEmbedding(0.1), BBox: []float64{10, 10, 50, 50}, DetScore: 0.99, PersonID: "person_0001", Dim: 128},
			{FaceIndex: 1, Embedding: testEmbedding(0.9), BBox: []float64{60, 10, 90, 50}, DetScore: 0.87, PersonID: "person_0002", Dim: 128},
		}
		if err := repo.SaveFaces(ctx, "wedding", "group.jpg", faces); err != nil {
			t.Fatalf("Failed to save faces: %v", err)
		}

		got, err := repo.GetFaces(ctx, "wedding", "group.jpg")
		if err != nil {
			t.Fatalf("Failed to get faces: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("Expected 2 faces, got %d", len(got))
		}
		if got[0].PersonID != "person_0001" || got[1].PersonID != "person_0002" {
			t.Errorf("Wrong person ids: %s, %s", got[0].PersonID, got[1].PersonID)
		}
		if len(got[0].Embedding) != 128 {
			t.Errorf("Expected 128 dimensions, got %d", len(got[0].Embedding))
		}
		if len(got[0].BBox) != 4 || got[0].BBox[0] != 10 {
			t.Errorf("BBox did not round-trip: %v", got[0].BBox)
		}
	})

	t.Run("SaveReplacesPhoto", func(t *testing.T) {
		faces := []database.PhotoFace{
			{FaceIndex: 0, Embedding: testEmbedding(0.2), PersonID: "person_0001", Dim: 128},
		}
		if err := repo.SaveFaces(ctx, "wedding", "group.jpg", faces); err != nil {
			t.Fatalf("Failed to re-save faces: %v", err)
		}

		got, err := repo.GetFaces(ctx, "wedding", "group.jpg")
		if err != nil {
			t.Fatalf("Failed to get faces: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("Expected re-save to replace faces, got %d", len(got))
		}
	})

	t.Run("PhotosByPerson", func(t *testing.T) {
		faces := []database.PhotoFace{
			{FaceIndex: 0, Embedding: testEmbedding(0.21), PersonID: "person_0001", Dim: 128},
		}
		if err := repo.SaveFaces(ctx, "wedding", "solo.jpg", faces); err != nil {
			t.Fatalf("Failed to save faces: %v", err)
		}

		photos, err := repo.PhotosByPerson(ctx, "wedding", "person_0001")
		if err != nil {
			t.Fatalf("Failed to query photos: %v", err)
		}
		if len(photos) != 2 || photos[0] != "group.jpg" || photos[1] != "solo.jpg" {
			t.Errorf("Expected [group.jpg solo.jpg], got %v", photos)
		}
	})

	t.Run("FindSimilar", func(t *testing.T) {
		faces, distances, err := repo.FindSimilar(ctx, testEmbedding(0.2), 2)
		if err != nil {
			t.Fatalf("Failed to find similar: %v", err)
		}
		if len(faces) != 2 {
			t.Fatalf("Expected 2 results, got %d", len(faces))
		}
		if faces[0].Photo != "group.jpg" {
			t.Errorf("Expected group.jpg first, got %s", faces[0].Photo)
		}
		if distances[0] > distances[1] {
			t.Errorf("Distances not ascending: %v", distances)
		}
	})

	t.Run("Count", func(t *testing.T) {
		count, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("Failed to count: %v", err)
		}
		if count != 2 {
			t.Errorf("Expected 2 faces, got %d", count)
		}
	})
}
