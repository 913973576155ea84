package liveness

import (
	"math"

	"github.com/kozaktomas/face-gallery/internal/detect"
)

// yawJitter absorbs landmark noise when checking for monotonic movement.
const yawJitter = 0.05

// eyeAspectRatio estimates how open the eyes are from the vertical/
// horizontal extent of both eye landmark clusters, averaged. Returns false
// when either eye is missing or degenerate.
func eyeAspectRatio(lm detect.Landmarks) (float64, bool) {
	var sum float64
	for _, group := range []string{"left_eye", "right_eye"} {
		points := lm[group]
		if len(points) < 2 {
			return 0, false
		}
		minX, maxX := points[0].X, points[0].X
		minY, maxY := points[0].Y, points[0].Y
		for _, p := range points[1:] {
			minX = math.Min(minX, p.X)
			maxX = math.Max(maxX, p.X)
			minY = math.Min(minY, p.Y)
			maxY = math.Max(maxY, p.Y)
		}
		width := maxX - minX
		if width <= 0 {
			return 0, false
		}
		sum += (maxY - minY) / width
	}
	return sum / 2, true
}

// blinkCycles counts full eye closure-and-reopen cycles: the ratio must
// start open, drop below the closed threshold, and rise back above the open
// threshold. Frames without trackable eyes are skipped.
func blinkCycles(tracked []detect.Landmarks, closedEAR, openEAR float64) int {
	const (
		stateOpen = iota
		stateClosed
	)
	cycles := 0
	state := -1
	for _, lm := range tracked {
		ear, ok := eyeAspectRatio(lm)
		if !ok {
			continue
		}
		switch {
		case state == -1:
			if ear >= openEAR {
				state = stateOpen
			}
		case state == stateOpen && ear <= closedEAR:
			state = stateClosed
		case state == stateClosed && ear >= openEAR:
			state = stateOpen
			cycles++
		}
	}
	return cycles
}

// yawEstimate places the nose inside the eye span: 0 is frontal, ±1 means
// the nose projects onto an eye center. Sign is left/right of center.
func yawEstimate(lm detect.Landmarks) (float64, bool) {
	left, lok := lm.Center("left_eye")
	right, rok := lm.Center("right_eye")
	nose, nok := lm.Center("nose_tip")
	if !nok {
		nose, nok = lm.Center("nose_bridge")
	}
	if !lok || !rok || !nok {
		return 0, false
	}
	span := right.X - left.X
	if span == 0 {
		return 0, false
	}
	return (2*nose.X - left.X - right.X) / span, true
}

// headTurnSweep measures the largest yaw excursion from the starting pose
// and whether the head came back. reversed requires the yaw to move toward
// the peak without backtracking (beyond jitter) and then return at least
// half the excursion.
func headTurnSweep(tracked []detect.Landmarks) (sweep float64, reversed bool) {
	yaws := make([]float64, 0, len(tracked))
	for _, lm := range tracked {
		if y, ok := yawEstimate(lm); ok {
			yaws = append(yaws, y)
		}
	}
	if len(yaws) < 3 {
		return 0, false
	}

	peak := 0
	for i := range yaws {
		if math.Abs(yaws[i]-yaws[0]) > math.Abs(yaws[peak]-yaws[0]) {
			peak = i
		}
	}
	sweep = math.Abs(yaws[peak] - yaws[0])
	if peak == 0 || peak == len(yaws)-1 {
		return sweep, false
	}

	dir := 1.0
	if yaws[peak] < yaws[0] {
		dir = -1.0
	}
	for i := 1; i <= peak; i++ {
		if dir*(yaws[i]-yaws[i-1]) < -yawJitter {
			return sweep, false
		}
	}
	returned := math.Abs(yaws[len(yaws)-1] - yaws[peak])
	return sweep, returned >= sweep/2
}
