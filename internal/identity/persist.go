package identity

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log"
	"os"

	"github.com/google/renameio"
)

// persistedCollection is the gob blob layout. The whole collection is one
// blob and one unit of load/save.
type persistedCollection struct {
	Version    int
	NextSeq    int
	Identities []persistedIdentity
}

type persistedIdentity struct {
	ID         string
	Name       string
	Embeddings [][]float32
}

const blobVersion = 1

// load populates the store from its data file. Called once from NewStore,
// before the store is shared, so no locking is needed.
func (s *Store) load() {
	s.byID = make(map[string]*Identity)
	s.nextSeq = 1

	data, err := os.ReadFile(s.dataFile)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[MODEL] error loading %s: %v, starting fresh", s.dataFile, err)
		}
		return
	}

	var blob persistedCollection
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&blob); err != nil {
		log.Printf("[MODEL] error decoding %s: %v, starting fresh", s.dataFile, err)
		return
	}

	for i := range blob.Identities {
		p := &blob.Identities[i]
		ident := &Identity{ID: p.ID, Name: p.Name, Embeddings: p.Embeddings}
		s.identities = append(s.identities, ident)
		s.byID[p.ID] = ident
		// Blobs written before NextSeq was recorded derive the counter
		// from the highest id seen.
		if seq := parseIDSeq(p.ID); seq >= s.nextSeq {
			s.nextSeq = seq + 1
		}
	}
	if blob.NextSeq > s.nextSeq {
		s.nextSeq = blob.NextSeq
	}

	log.Printf("[MODEL] loaded %d known faces from %s", len(s.identities), s.dataFile)
}

// saveLocked writes the whole collection through to disk. Requires the
// write lock. The blob is replaced atomically, so readers of the file never
// observe a partial write even if the process dies mid-save.
func (s *Store) saveLocked() error {
	blob := persistedCollection{
		Version: blobVersion,
		NextSeq: s.nextSeq,
	}
	for _, ident := range s.identities {
		blob.Identities = append(blob.Identities, persistedIdentity{
			ID:         ident.ID,
			Name:       ident.Name,
			Embeddings: ident.Embeddings,
		})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(blob); err != nil {
		return fmt.Errorf("encoding identity collection: %w", err)
	}

	if err := renameio.WriteFile(s.dataFile, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing identity collection to %s: %w", s.dataFile, err)
	}
	return nil
}
