package identity

import (
	"fmt"
	"log"
	"math"
	"sync"
)

// Options configures a Store. Zero values fall back to the documented
// defaults, so tests can construct stores with only the fields they care
// about.
type Options struct {
	// Strict is the distance at or below which a match is confident.
	Strict float64
	// Relaxed is the distance at or below which a match is still accepted,
	// with weaker confidence (glasses, tilt, group scene distortions).
	Relaxed float64
	// MaxEncodings caps the per-identity encoding history.
	MaxEncodings int
}

const (
	defaultStrictTolerance  = 0.63
	defaultRelaxedTolerance = 0.72
)

// Store is the process-wide identity collection and its persistence. One
// mutex serializes every read-modify-save sequence, so concurrent learners
// can never race on the next sequential id or interleave blob writes.
type Store struct {
	mu         sync.RWMutex
	dataFile   string
	opts       Options
	identities []*Identity // creation order
	byID       map[string]*Identity
	nextSeq    int
}

func (o Options) withDefaults() Options {
	if o.Strict == 0 {
		o.Strict = defaultStrictTolerance
	}
	if o.Relaxed == 0 {
		o.Relaxed = defaultRelaxedTolerance
	}
	if o.MaxEncodings == 0 {
		o.MaxEncodings = DefaultMaxEncodings
	}
	return o
}

// NewStore loads the identity collection from dataFile and returns a store
// over it. A missing or unreadable blob logs the problem and starts from an
// empty collection rather than failing startup; previously committed
// identities are only ever lost if the file itself is gone.
func NewStore(dataFile string, opts Options) *Store {
	s := &Store{
		dataFile: dataFile,
		opts:     opts.withDefaults(),
	}
	s.load()
	return s
}

// Match returns the identity whose centroid is nearest to embedding, along
// with the Euclidean distance to that centroid. An empty collection yields
// ("", +Inf). Exact distance ties resolve to the earliest-created identity.
func (s *Store) Match(embedding []float32) (string, float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matchLocked(embedding)
}

// matchLocked requires at least a read lock. Identities are scanned in
// creation order, so a strict less-than comparison implements the
// lowest-id tie-break.
func (s *Store) matchLocked(embedding []float32) (string, float64) {
	bestID := ""
	bestDistance := math.Inf(1)
	for _, id := range s.identities {
		d := EuclideanDistance(embedding, id.Centroid())
		if d < bestDistance {
			bestID = id.ID
			bestDistance = d
		}
	}
	return bestID, bestDistance
}

// Recognize returns the id of the closest identity if it is confident
// enough, or "" when no identity falls within the relaxed tolerance.
// Recognize never mutates the collection.
func (s *Store) Recognize(embedding []float32) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, distance := s.matchLocked(embedding)
	switch {
	case id == "":
		return ""
	case distance <= s.opts.Strict:
		log.Printf("[MODEL] strong match %s (%.2f)", id, distance)
		return id
	case distance <= s.opts.Relaxed:
		log.Printf("[MODEL] weak match accepted %s (%.2f)", id, distance)
		return id
	default:
		log.Printf("[MODEL] no match (best=%.2f)", distance)
		return ""
	}
}

// LearnOrReinforce folds embedding into the collection: it reinforces the
// nearest identity when the distance is within the relaxed tolerance, and
// creates a new identity otherwise. It always returns a non-empty id. The
// returned error reports a failed persist; the in-memory mutation has
// already been applied in that case and the caller decides whether a lost
// write is fatal.
func (s *Store) LearnOrReinforce(embedding []float32) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matchedID, distance := s.matchLocked(embedding)
	if matchedID != "" && distance <= s.opts.Relaxed {
		if distance > s.opts.Strict {
			log.Printf("[MODEL] weak match accepted (%.2f), reinforcing %s", distance, matchedID)
		}
		s.byID[matchedID].appendEmbedding(embedding, s.opts.MaxEncodings)
		return matchedID, s.saveLocked()
	}

	id := s.createLocked(embedding)
	if matchedID == "" {
		log.Printf("[MODEL] learned first face %s", id)
	} else {
		log.Printf("[MODEL] learned new identity %s (best distance %.2f)", id, distance)
	}
	return id, s.saveLocked()
}

// UpdateEncoding appends a freshly scanned embedding to a known identity,
// subject to the same history cap, and persists. It is the reinforcement
// hook used after a live recognition succeeds.
func (s *Store) UpdateEncoding(id string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("unknown identity %q", id)
	}
	ident.appendEmbedding(embedding, s.opts.MaxEncodings)
	return s.saveLocked()
}

// createLocked requires the write lock.
func (s *Store) createLocked(embedding []float32) string {
	id := formatID(s.nextSeq)
	s.nextSeq++
	ident := &Identity{ID: id, Embeddings: [][]float32{embedding}}
	s.identities = append(s.identities, ident)
	s.byID[id] = ident
	return id
}

// SetName labels an identity with a display name and persists the change.
func (s *Store) SetName(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("unknown identity %q", id)
	}
	ident.Name = name
	return s.saveLocked()
}

// Get returns a snapshot of one identity and whether it exists.
func (s *Store) Get(id string) (Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ident, ok := s.byID[id]
	if !ok {
		return Summary{}, false
	}
	return Summary{ID: ident.ID, Name: ident.Name, EncodingCount: len(ident.Embeddings)}, true
}

// Encodings returns a copy of the stored embedding history for one
// identity, oldest first.
func (s *Store) Encodings(id string) [][]float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ident, ok := s.byID[id]
	if !ok {
		return nil
	}
	out := make([][]float32, len(ident.Embeddings))
	for i, emb := range ident.Embeddings {
		out[i] = append([]float32(nil), emb...)
	}
	return out
}

// FindByName returns the id of the identity whose display name matches name
// after normalization (case and diacritics insensitive), or "".
func (s *Store) FindByName(name string) string {
	want := NormalizePersonName(name)
	if want == "" {
		return ""
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ident := range s.identities {
		if ident.Name != "" && NormalizePersonName(ident.Name) == want {
			return ident.ID
		}
	}
	return ""
}

// Identities returns snapshots of all identities in creation order.
func (s *Store) Identities() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.identities))
	for _, ident := range s.identities {
		out = append(out, Summary{ID: ident.ID, Name: ident.Name, EncodingCount: len(ident.Embeddings)})
	}
	return out
}

// Count returns the number of known identities.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities)
}
