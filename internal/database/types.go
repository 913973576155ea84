package database

import (
	"time"
)

// PhotoFace is one detected face in an ingested event photo.
type PhotoFace struct {
	ID        int64
	EventID   string
	Photo     string // file name relative to the event upload directory
	FaceIndex int
	Embedding []float32
	BBox      []float64 // [x1, y1, x2, y2] in raw pixel coordinates
	DetScore  float64
	PersonID  string // identity assigned during ingestion
	Dim       int
	CreatedAt time.Time
}
