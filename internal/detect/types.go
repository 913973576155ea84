package detect

import (
	"encoding/json"
	"fmt"
)

// Point is a single landmark coordinate in pixel space. The detection server
// serializes points as two-element [x, y] arrays.
type Point struct {
	X float64
	Y float64
}

// UnmarshalJSON decodes a [x, y] array into a Point.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("landmark point has %d coordinates, want 2", len(pair))
	}
	p.X, p.Y = pair[0], pair[1]
	return nil
}

// MarshalJSON encodes a Point back into a [x, y] array.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([]float64{p.X, p.Y})
}

// Landmarks maps a named facial feature group ("left_eye", "right_eye",
// "nose_bridge", ...) to its contour points.
type Landmarks map[string][]Point

// Center returns the mean point of the named group and whether it exists.
func (l Landmarks) Center(group string) (Point, bool) {
	pts, ok := l[group]
	if !ok || len(pts) == 0 {
		return Point{}, false
	}
	var c Point
	for _, p := range pts {
		c.X += p.X
		c.Y += p.Y
	}
	c.X /= float64(len(pts))
	c.Y /= float64(len(pts))
	return c, true
}

// Face represents a single detected face.
type Face struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
	Landmarks Landmarks `json:"landmarks,omitempty"`
}

// Response represents the response from the face detection endpoint.
type Response struct {
	FacesCount int    `json:"faces_count"`
	Faces      []Face `json:"faces"`
	Model      string `json:"model"`
}
