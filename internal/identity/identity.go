// Package identity implements the online nearest-centroid classifier over
// face embeddings. Each identity is a growing cluster of encodings for one
// person; matching compares a scanned embedding against the mean encoding
// of every known identity.
package identity

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultMaxEncodings bounds the per-identity encoding history. Older
// encodings are evicted first, so the cluster tracks a person's recent
// appearance (glasses, lighting, haircuts) instead of their first photo.
const DefaultMaxEncodings = 12

// Identity is one person as currently understood by the model.
type Identity struct {
	ID         string
	Name       string
	Embeddings [][]float32
}

// Centroid returns the component-wise mean of the stored embeddings.
// An identity always holds at least one embedding, so the result is
// well defined for any persisted identity.
func (id *Identity) Centroid() []float32 {
	if len(id.Embeddings) == 0 {
		return nil
	}
	dim := len(id.Embeddings[0])
	centroid := make([]float32, dim)
	for _, emb := range id.Embeddings {
		for i := range emb {
			centroid[i] += emb[i]
		}
	}
	n := float32(len(id.Embeddings))
	for i := range centroid {
		centroid[i] /= n
	}
	return centroid
}

// appendEmbedding adds an encoding, evicting the oldest ones beyond the cap.
func (id *Identity) appendEmbedding(embedding []float32, maxEncodings int) {
	id.Embeddings = append(id.Embeddings, embedding)
	if len(id.Embeddings) > maxEncodings {
		id.Embeddings = id.Embeddings[len(id.Embeddings)-maxEncodings:]
	}
}

// formatID renders a sequential person id, e.g. person_0001.
func formatID(seq int) string {
	return fmt.Sprintf("person_%04d", seq)
}

// parseIDSeq extracts the numeric suffix from a person id.
// Returns 0 for ids that do not follow the person_NNNN scheme.
func parseIDSeq(id string) int {
	suffix, ok := strings.CutPrefix(id, "person_")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0
	}
	return n
}

// Summary is a read-only snapshot of one identity, safe to hand to callers
// outside the store's lock.
type Summary struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	EncodingCount int    `json:"encoding_count"`
}
