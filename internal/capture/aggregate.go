package capture

import (
	"context"
	"errors"
	"image"
	"log"

	"github.com/kozaktomas/face-gallery/internal/detect"
)

// ErrNoUsableFace reports that no frame in the capture survived quality
// filtering with a detectable face. Callers treat it as "couldn't see a
// face", distinct from detector transport failures.
var ErrNoUsableFace = errors.New("no usable face detected in capture")

const (
	// MinSharpness is the hard per-frame rejection threshold for motion blur.
	MinSharpness = 40.0
	// MinBrightness is the hard per-frame rejection threshold for dark frames,
	// on a 0-255 scale.
	MinBrightness = 35.0
	// brightnessWeight scales brightness into the fused quality score.
	brightnessWeight = 0.3
)

// Detector is the slice of the detection client the aggregator needs.
type Detector interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]detect.Face, error)
}

// Aggregator fuses the frames of one live capture into a single embedding.
// It never touches the identity model; the result is handed to the caller
// for matching.
type Aggregator struct {
	detector Detector
}

// NewAggregator creates an aggregator over the given detector.
func NewAggregator(detector Detector) *Aggregator {
	return &Aggregator{detector: detector}
}

// Aggregate filters, aligns and embeds the frames, then averages the
// surviving embeddings weighted by per-frame quality. Returns
// ErrNoUsableFace when nothing survives. Frames are processed in input
// order and weights accumulate sequentially, so the result is
// deterministic for identical frames and detector output.
func (a *Aggregator) Aggregate(ctx context.Context, frames []image.Image) ([]float32, error) {
	var (
		weightedSum []float64
		totalWeight float64
		survived    int
		lastErr     error
	)

	for i, frame := range frames {
		if frame == nil {
			continue
		}

		sharpness := Sharpness(frame)
		brightness := Brightness(frame)
		if sharpness < MinSharpness || brightness < MinBrightness {
			continue
		}

		embedding, err := a.embedAligned(ctx, frame)
		if err != nil {
			log.Printf("[CAPTURE] frame %d: %v", i, err)
			lastErr = err
			continue
		}
		if embedding == nil {
			continue // no face in this frame
		}

		weight := sharpness + brightnessWeight*brightness
		if weightedSum == nil {
			weightedSum = make([]float64, len(embedding))
		}
		if len(embedding) != len(weightedSum) {
			log.Printf("[CAPTURE] frame %d: embedding dim %d != %d, skipping", i, len(embedding), len(weightedSum))
			continue
		}
		for j, v := range embedding {
			weightedSum[j] += float64(v) * weight
		}
		totalWeight += weight
		survived++
	}

	if survived == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, ErrNoUsableFace
	}

	log.Printf("[CAPTURE] using %d good frames for multi-frame encoding", survived)

	result := make([]float32, len(weightedSum))
	for j, v := range weightedSum {
		result[j] = float32(v / totalWeight)
	}
	return result, nil
}

// embedAligned detects the face in one frame, aligns the frame so the eye
// line is horizontal, and returns the embedding of the first detected face
// in the aligned frame. Returns (nil, nil) when the frame holds no face.
func (a *Aggregator) embedAligned(ctx context.Context, frame image.Image) ([]float32, error) {
	data, err := EncodeJPEG(frame)
	if err != nil {
		return nil, err
	}

	faces, err := a.detector.DetectFaces(ctx, data)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, nil
	}
	// Multiple faces resolve to the first detected region.
	first := faces[0]

	aligned, rotated := AlignEyes(frame, first.Landmarks)
	if !rotated {
		// Landmarks missing: use the frame unrotated rather than discarding it.
		return first.Embedding, nil
	}

	alignedData, err := EncodeJPEG(aligned)
	if err != nil {
		return nil, err
	}
	alignedFaces, err := a.detector.DetectFaces(ctx, alignedData)
	if err != nil {
		return nil, err
	}
	if len(alignedFaces) == 0 {
		// Rotation lost the detection; fall back to the unaligned embedding.
		return first.Embedding, nil
	}
	return alignedFaces[0].Embedding, nil
}
