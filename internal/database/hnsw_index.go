package database

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// Index is an in-memory HNSW graph over all ingested photo faces, with the
// face records kept alongside the graph nodes. It persists as two files:
// the exported graph and a gob sidecar holding the records.
type Index struct {
	graph  *hnsw.Graph[int64]
	byID   map[int64]*PhotoFace
	nextID int64
	mu     sync.RWMutex
}

// indexSidecar is the gob payload stored next to the exported graph.
type indexSidecar struct {
	NextID int64
	Faces  []PhotoFace
}

// NewIndex creates an empty face index.
func NewIndex() *Index {
	return &Index{
		byID:   make(map[int64]*PhotoFace),
		nextID: 1,
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Add assigns the face an index id and inserts it into the graph.
func (ix *Index) Add(face PhotoFace) int64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	face.ID = ix.nextID
	ix.nextID++

	if len(face.Embedding) > 0 {
		if ix.graph == nil {
			ix.graph = newGraph()
		}
		ix.graph.Add(hnsw.MakeNode(face.ID, face.Embedding))
	}
	ix.byID[face.ID] = &face
	return face.ID
}

// Search returns the k nearest faces to the query embedding with their
// Euclidean distances, closest first.
func (ix *Index) Search(query []float32, k int) ([]PhotoFace, []float64) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph == nil {
		return nil, nil
	}

	neighbors := ix.graph.Search(query, k)
	faces := make([]PhotoFace, 0, len(neighbors))
	distances := make([]float64, 0, len(neighbors))
	for _, n := range neighbors {
		face, ok := ix.byID[n.Key]
		if !ok {
			continue // removed record, node kept by the graph
		}
		faces = append(faces, *face)
		distances = append(distances, float64(hnsw.EuclideanDistance(query, n.Value)))
	}
	return faces, distances
}

// PhotosByPerson returns the sorted distinct photo names within an event
// that contain the given person.
func (ix *Index) PhotosByPerson(eventID, personID string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := map[string]bool{}
	for _, face := range ix.byID {
		if face.EventID == eventID && face.PersonID == personID && !seen[face.Photo] {
			seen[face.Photo] = true
		}
	}
	photos := make([]string, 0, len(seen))
	for p := range seen {
		photos = append(photos, p)
	}
	sort.Strings(photos)
	return photos
}

// HasPhoto reports whether any face of the given photo is indexed.
func (ix *Index) HasPhoto(eventID, photo string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	for _, face := range ix.byID {
		if face.EventID == eventID && face.Photo == photo {
			return true
		}
	}
	return false
}

// Faces returns a snapshot of all indexed records.
func (ix *Index) Faces() []PhotoFace {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	faces := make([]PhotoFace, 0, len(ix.byID))
	for _, f := range ix.byID {
		faces = append(faces, *f)
	}
	sort.Slice(faces, func(i, j int) bool { return faces[i].ID < faces[j].ID })
	return faces
}

// Count returns the number of indexed faces.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byID)
}

// Save exports the graph to path and the face records to path + ".faces".
// An empty index removes both files.
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if path == "" {
		return nil
	}
	if ix.graph == nil {
		_ = os.Remove(path)
		_ = os.Remove(path + ".faces")
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create face index file: %w", err)
	}
	if err := ix.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("export face index graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close face index file: %w", err)
	}

	sidecar := indexSidecar{NextID: ix.nextID}
	for _, face := range ix.byID {
		sidecar.Faces = append(sidecar.Faces, *face)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(sidecar); err != nil {
		return fmt.Errorf("encode face records: %w", err)
	}
	if err := os.WriteFile(path+".faces", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write face records: %w", err)
	}
	return nil
}

// Load restores a previously saved index. A missing file is not an error;
// the index simply starts empty.
func (ix *Index) Load(path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("load face index graph: %w", err)
	}
	saved.M = HNSWMaxNeighbors
	saved.Ml = 1.0 / float64(HNSWMaxNeighbors)
	saved.Distance = hnsw.EuclideanDistance

	data, err := os.ReadFile(path + ".faces")
	if err != nil {
		return fmt.Errorf("read face records: %w", err)
	}
	var sidecar indexSidecar
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&sidecar); err != nil {
		return fmt.Errorf("decode face records: %w", err)
	}

	ix.graph = saved.Graph
	ix.byID = make(map[int64]*PhotoFace, len(sidecar.Faces))
	for i := range sidecar.Faces {
		ix.byID[sidecar.Faces[i].ID] = &sidecar.Faces[i]
	}
	ix.nextID = sidecar.NextID
	if ix.nextID == 0 {
		ix.nextID = 1
	}
	return nil
}
