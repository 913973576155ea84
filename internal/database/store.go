package database

import (
	"context"
	"log"
)

// Repository mirrors indexed faces into durable storage. The in-memory
// index stays authoritative for searches; a repository is optional.
type Repository interface {
	SaveFaces(ctx context.Context, eventID, photo string, faces []PhotoFace) error
	Close() error
}

// Store is the photo-face index facade used by ingestion and the API. It
// always serves from the in-memory HNSW index and write-throughs to the
// configured repository when one is attached.
type Store struct {
	index     *Index
	indexPath string
	repo      Repository // nil without DATABASE_URL
}

// NewStore builds the store, restoring the index from indexPath when a
// previous save exists. A corrupt index logs and starts empty rather than
// failing startup.
func NewStore(indexPath string, repo Repository) *Store {
	index := NewIndex()
	if indexPath == "" {
		return &Store{index: index, repo: repo}
	}
	if err := index.Load(indexPath); err != nil {
		log.Printf("[FACES] could not restore index from %s, starting empty: %v", indexPath, err)
		index = NewIndex()
	}
	if index.Count() > 0 {
		log.Printf("[FACES] restored %d faces from %s", index.Count(), indexPath)
	}
	return &Store{index: index, indexPath: indexPath, repo: repo}
}

// AddFaces records all faces of one photo in the index and, when attached,
// in the repository. The index write always happens; a repository failure
// propagates so the caller can log it per photo.
func (s *Store) AddFaces(ctx context.Context, eventID, photo string, faces []PhotoFace) error {
	for i := range faces {
		faces[i].EventID = eventID
		faces[i].Photo = photo
		faces[i].ID = 0
		faces[i].ID = s.index.Add(faces[i])
	}
	if s.repo == nil {
		return nil
	}
	return s.repo.SaveFaces(ctx, eventID, photo, faces)
}

// FindSimilar returns the k nearest indexed faces to the query embedding.
func (s *Store) FindSimilar(query []float32, k int) ([]PhotoFace, []float64) {
	return s.index.Search(query, k)
}

// PhotosByPerson lists the event's photos containing the given person.
func (s *Store) PhotosByPerson(eventID, personID string) []string {
	return s.index.PhotosByPerson(eventID, personID)
}

// HasPhoto reports whether the photo already has indexed faces.
func (s *Store) HasPhoto(eventID, photo string) bool {
	return s.index.HasPhoto(eventID, photo)
}

// Count returns the number of indexed faces.
func (s *Store) Count() int {
	return s.index.Count()
}

// Save persists the index to its configured path. An empty path means the
// index is in-memory only and there is nothing to do.
func (s *Store) Save() error {
	if s.indexPath == "" {
		return nil
	}
	return s.index.Save(s.indexPath)
}

// Close persists the index and releases the repository.
func (s *Store) Close() error {
	if err := s.Save(); err != nil {
		return err
	}
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}
