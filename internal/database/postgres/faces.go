package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-gallery/internal/database"
)

// FaceRepository provides PostgreSQL-backed storage for photo faces.
type FaceRepository struct {
	pool *Pool
}

// NewFaceRepository creates a new PostgreSQL face repository.
func NewFaceRepository(pool *Pool) *FaceRepository {
	return &FaceRepository{pool: pool}
}

// SaveFaces stores all faces of one photo, replacing any previous record of
// that photo within the event.
func (r *FaceRepository) SaveFaces(ctx context.Context, eventID, photo string, faces []database.PhotoFace) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM faces WHERE event_id = $1 AND photo = $2", eventID, photo); err != nil {
		return fmt.Errorf("delete existing faces: %w", err)
	}

	for _, face := range faces {
		vec := pgvector.NewVector(face.Embedding)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO faces (event_id, photo, face_index, embedding, bbox, det_score, person_id, dim, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		`, eventID, photo, face.FaceIndex, vec, pq.Array(face.BBox), face.DetScore, face.PersonID, face.Dim)
		if err != nil {
			return fmt.Errorf("insert face %d of %s: %w", face.FaceIndex, photo, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit faces of %s: %w", photo, err)
	}
	return nil
}

// GetFaces retrieves all faces of one photo, ordered by face index.
func (r *FaceRepository) GetFaces(ctx context.Context, eventID, photo string) ([]database.PhotoFace, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, photo, face_index, embedding, bbox, det_score, person_id, dim, created_at
		FROM faces
		WHERE event_id = $1 AND photo = $2
		ORDER BY face_index
	`, eventID, photo)
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
}

// PhotosByPerson lists the distinct photos of an event containing the
// given person.
func (r *FaceRepository) PhotosByPerson(ctx context.Context, eventID, personID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT photo FROM faces
		WHERE event_id = $1 AND person_id = $2
		ORDER BY photo
	`, eventID, personID)
	if err != nil {
		return nil, fmt.Errorf("query photos by person: %w", err)
	}
	defer rows.Close()

	var photos []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// FindSimilar finds the nearest stored faces by Euclidean distance.
func (r *FaceRepository) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]database.PhotoFace, []float64, error) {
	vec := pgvector.NewVector(embedding)

	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, photo, face_index, embedding, bbox, det_score, person_id, dim, created_at,
		       embedding <-> $1 AS distance
		FROM faces
		ORDER BY embedding <-> $1
		LIMIT $2
	`, vec, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query similar faces: %w", err)
	}
	defer rows.Close()

	var faces []database.PhotoFace
	var distances []float64
	for rows.Next() {
		var face database.PhotoFace
		var vec pgvector.Vector
		var bbox pq.Float64Array
		var distance float64
		if err := rows.Scan(&face.ID, &face.EventID, &face.Photo, &face.FaceIndex, &vec, &bbox,
			&face.DetScore, &face.PersonID, &face.Dim, &face.CreatedAt, &distance); err != nil {
			return nil, nil, fmt.Errorf("scan face: %w", err)
		}
		face.Embedding = vec.Slice()
		face.BBox = bbox
		faces = append(faces, face)
		distances = append(distances, distance)
	}
	return faces, distances, rows.Err()
}

// Count returns the total number of faces stored.
func (r *FaceRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM faces").Scan(&count); err != nil {
		return 0, fmt.Errorf("count faces: %w", err)
	}
	return count, nil
}

// Close releases the underlying pool.
func (r *FaceRepository) Close() error {
	return r.pool.Close()
}

func scanFaces(rows *sql.Rows) ([]database.PhotoFace, error) {
	var faces []database.PhotoFace
	for rows.Next() {
		var face database.PhotoFace
		var vec pgvector.Vector
		var bbox pq.Float64Array
		if err := rows.Scan(&face.ID, &face.EventID, &face.Photo, &face.FaceIndex, &vec, &bbox,
			&face.DetScore, &face.PersonID, &face.Dim, &face.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		face.Embedding = vec.Slice()
		face.BBox = bbox
		faces = append(faces, face)
	}
	return faces, rows.Err()
}
