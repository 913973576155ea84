// Package liveness decides whether a capture sequence depicts a live
// subject or a replayed photo/screen. It gates the live recognition path;
// bulk photo ingestion never goes through it.
package liveness

import (
	"context"
	"fmt"
	"image"
	"log"

	"github.com/kozaktomas/face-gallery/internal/capture"
	"github.com/kozaktomas/face-gallery/internal/detect"
)

// Challenge is a user action requested to defeat static-image spoofing.
type Challenge string

const (
	ChallengeNone     Challenge = ""
	ChallengeBlink    Challenge = "blink"
	ChallengeHeadTurn Challenge = "head_turn"
)

// ParseChallenge maps a request parameter to a challenge type.
func ParseChallenge(s string) (Challenge, error) {
	switch Challenge(s) {
	case ChallengeNone, ChallengeBlink, ChallengeHeadTurn:
		return Challenge(s), nil
	}
	return ChallengeNone, fmt.Errorf("unknown liveness challenge %q", s)
}

// Diagnostics carries the measured signals behind a verdict. Log-only:
// callers must base decisions on Result.Live alone.
type Diagnostics struct {
	FramesUsed   int     `json:"frames_used"`
	TextureScore float64 `json:"texture_score"`
	EdgeScore    float64 `json:"edge_score"`
	MotionScore  float64 `json:"motion_score"`
	BlinkCycles  int     `json:"blink_cycles,omitempty"`
	YawSweep     float64 `json:"yaw_sweep,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

// Result is the verdict for one capture sequence.
type Result struct {
	Live        bool        `json:"live"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Calibration holds the decision thresholds. The defaults were tuned
// against synthetic frames only; calibrate against real spoof samples
// before tightening them in production.
type Calibration struct {
	// MinFrames is the minimum number of usable frames per capture.
	MinFrames int
	// MinTextureVariance rejects flat prints and screens (grayscale
	// intensity variance, 0-255 scale squared).
	MinTextureVariance float64
	// MinEdgeDensity is the minimum fraction of strong-gradient pixels.
	MinEdgeDensity float64
	// MinMotion is the minimum mean absolute inter-frame difference on the
	// passive path. A photo held up to the camera scores near zero.
	MinMotion float64
	// BlinkClosedEAR and BlinkOpenEAR bound the eye-aspect-ratio cycle a
	// blink challenge must cross.
	BlinkClosedEAR float64
	BlinkOpenEAR   float64
	// MinYawSweep is the minimum normalized yaw excursion for a head-turn
	// challenge, on the [-1, 1] nose-asymmetry scale.
	MinYawSweep float64
}

// DefaultCalibration returns the built-in thresholds.
func DefaultCalibration() Calibration {
	return Calibration{
		MinFrames:          3,
		MinTextureVariance: 450,
		MinEdgeDensity:     0.02,
		MinMotion:          1.5,
		BlinkClosedEAR:     0.21,
		BlinkOpenEAR:       0.28,
		MinYawSweep:        0.25,
	}
}

// Detector is the slice of the detection client the verifier needs for
// challenge landmark tracking.
type Detector interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]detect.Face, error)
}

// Verifier runs passive spoof heuristics and optional challenge detection
// over a capture sequence.
type Verifier struct {
	detector Detector
	cal      Calibration
}

// NewVerifier creates a verifier with the given calibration.
func NewVerifier(detector Detector, cal Calibration) *Verifier {
	if cal.MinFrames <= 0 {
		cal = DefaultCalibration()
	}
	return &Verifier{detector: detector, cal: cal}
}

// Verify inspects the frame sequence and decides whether it shows a live
// subject. Passive signals are always evaluated; a requested challenge
// additionally requires the matching motion pattern. The error return is
// for detector transport failures only, never for a "not live" verdict.
func (v *Verifier) Verify(ctx context.Context, frames []image.Image, challenge Challenge) (Result, error) {
	usable := make([]image.Image, 0, len(frames))
	for _, f := range frames {
		if f != nil {
			usable = append(usable, f)
		}
	}

	diag := Diagnostics{FramesUsed: len(usable)}
	if len(usable) < v.cal.MinFrames {
		diag.Reason = fmt.Sprintf("need at least %d usable frames, got %d", v.cal.MinFrames, len(usable))
		return Result{Live: false, Diagnostics: diag}, nil
	}

	grays := make([]*image.Gray, len(usable))
	for i, f := range usable {
		grays[i] = toGray(f)
	}

	diag.TextureScore, diag.EdgeScore = surfaceScores(grays)
	diag.MotionScore = motionScore(grays)

	if diag.TextureScore < v.cal.MinTextureVariance {
		diag.Reason = "flat texture suggests a printed or screened surface"
		return Result{Live: false, Diagnostics: diag}, nil
	}
	if diag.EdgeScore < v.cal.MinEdgeDensity {
		diag.Reason = "edge density below live-skin range"
		return Result{Live: false, Diagnostics: diag}, nil
	}

	switch challenge {
	case ChallengeNone:
		if diag.MotionScore < v.cal.MinMotion {
			diag.Reason = "frame sequence is static, consistent with a held-up photo"
			return Result{Live: false, Diagnostics: diag}, nil
		}
	case ChallengeBlink, ChallengeHeadTurn:
		tracked, err := v.trackLandmarks(ctx, usable)
		if err != nil {
			return Result{}, err
		}
		if len(tracked) < v.cal.MinFrames {
			diag.Reason = fmt.Sprintf("face tracked in only %d of %d frames", len(tracked), len(usable))
			return Result{Live: false, Diagnostics: diag}, nil
		}
		if challenge == ChallengeBlink {
			diag.BlinkCycles = blinkCycles(tracked, v.cal.BlinkClosedEAR, v.cal.BlinkOpenEAR)
			if diag.BlinkCycles == 0 {
				diag.Reason = "no eye closure-and-reopen cycle observed"
				return Result{Live: false, Diagnostics: diag}, nil
			}
		} else {
			sweep, reversed := headTurnSweep(tracked)
			diag.YawSweep = sweep
			if sweep < v.cal.MinYawSweep || !reversed {
				diag.Reason = "no monotonic-then-reversing head turn observed"
				return Result{Live: false, Diagnostics: diag}, nil
			}
		}
	}

	log.Printf("[LIVENESS] pass: texture=%.0f edges=%.3f motion=%.2f challenge=%q",
		diag.TextureScore, diag.EdgeScore, diag.MotionScore, challenge)
	return Result{Live: true, Diagnostics: diag}, nil
}

// trackLandmarks detects the primary face per frame and keeps the frames
// where landmarks were found, in order.
func (v *Verifier) trackLandmarks(ctx context.Context, frames []image.Image) ([]detect.Landmarks, error) {
	tracked := make([]detect.Landmarks, 0, len(frames))
	for _, frame := range frames {
		data, err := capture.EncodeJPEG(frame)
		if err != nil {
			return nil, err
		}
		faces, err := v.detector.DetectFaces(ctx, data)
		if err != nil {
			return nil, err
		}
		if len(faces) == 0 || len(faces[0].Landmarks) == 0 {
			continue
		}
		tracked = append(tracked, faces[0].Landmarks)
	}
	return tracked, nil
}
