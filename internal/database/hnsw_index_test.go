package database

import (
	"os"
	"path/filepath"
	"testing"
)

func indexFace(event, photo, person string, emb []float32) PhotoFace {
	return PhotoFace{
		EventID:   event,
		Photo:     photo,
		PersonID:  person,
		Embedding: emb,
		Dim:       len(emb),
	}
}

func TestIndexSearchOrder(t *testing.T) {
	ix := NewIndex()
	ix.Add(indexFace("wedding", "a.jpg", "person_0001", []float32{0, 0}))
	ix.Add(indexFace("wedding", "b.jpg", "person_0002", []float32{1, 0}))
	ix.Add(indexFace("wedding", "c.jpg", "person_0003", []float32{5, 0}))

	faces, distances := ix.Search([]float32{0.1, 0}, 2)
	if len(faces) != 2 {
		t.Fatalf("got %d results, want 2", len(faces))
	}
	if faces[0].Photo != "a.jpg" || faces[1].Photo != "b.jpg" {
		t.Errorf("wrong order: %s, %s", faces[0].Photo, faces[1].Photo)
	}
	if distances[0] >= distances[1] {
		t.Errorf("distances not ascending: %v", distances)
	}
}

func TestIndexSearchEmpty(t *testing.T) {
	faces, distances := NewIndex().Search([]float32{1, 2}, 3)
	if faces != nil || distances != nil {
		t.Errorf("empty index should return nothing, got %v %v", faces, distances)
	}
}

func TestIndexIDsAreSequential(t *testing.T) {
	ix := NewIndex()
	for i := 1; i <= 3; i++ {
		id := ix.Add(indexFace("e", "p.jpg", "", []float32{float32(i)}))
		if id != int64(i) {
			t.Errorf("Add #%d returned id %d", i, id)
		}
	}
}

func TestIndexPhotosByPerson(t *testing.T) {
	ix := NewIndex()
	ix.Add(indexFace("wedding", "group.jpg", "person_0001", []float32{0}))
	ix.Add(indexFace("wedding", "group.jpg", "person_0002", []float32{1}))
	ix.Add(indexFace("wedding", "solo.jpg", "person_0001", []float32{0.1}))
	ix.Add(indexFace("conference", "other.jpg", "person_0001", []float32{0.2}))

	photos := ix.PhotosByPerson("wedding", "person_0001")
	if len(photos) != 2 || photos[0] != "group.jpg" || photos[1] != "solo.jpg" {
		t.Errorf("got %v, want [group.jpg solo.jpg]", photos)
	}
	if got := ix.PhotosByPerson("wedding", "person_0099"); len(got) != 0 {
		t.Errorf("unknown person returned %v", got)
	}
}

func TestIndexSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.idx")

	ix := NewIndex()
	ix.Add(indexFace("wedding", "a.jpg", "person_0001", []float32{1, 2}))
	ix.Add(indexFace("wedding", "b.jpg", "person_0002", []float32{3, 4}))
	if err := ix.Save(path); err != nil {
		t.Fatal(err)
	}

	restored := NewIndex()
	if err := restored.Load(path); err != nil {
		t.Fatal(err)
	}
	if restored.Count() != 2 {
		t.Fatalf("restored %d faces, want 2", restored.Count())
	}

	faces, _ := restored.Search([]float32{1, 2}, 1)
	if len(faces) != 1 || faces[0].Photo != "a.jpg" {
		t.Errorf("search after restore returned %v", faces)
	}

	// The id sequence continues where it left off.
	if id := restored.Add(indexFace("wedding", "c.jpg", "", []float32{9, 9})); id != 3 {
		t.Errorf("next id after restore = %d, want 3", id)
	}
}

func TestIndexLoadMissingFile(t *testing.T) {
	ix := NewIndex()
	if err := ix.Load(filepath.Join(t.TempDir(), "nope.idx")); err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if ix.Count() != 0 {
		t.Errorf("expected empty index, got %d faces", ix.Count())
	}
}

func TestStoreCorruptIndexStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.idx")
	if err := os.WriteFile(path, []byte("not a graph"), 0600); err != nil {
		t.Fatal(err)
	}

	store := NewStore(path, nil)
	if store.Count() != 0 {
		t.Errorf("corrupt index must start empty, got %d faces", store.Count())
	}
}
