package liveness

import (
	"image"
	"image/color"
	"math"
)

// edgeGradientThreshold marks a pixel as an edge. Live skin under normal
// lighting produces many mid-strength gradients; flat reproductions do not.
const edgeGradientThreshold = 30.0

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	g := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return g
}

// surfaceScores averages intensity variance and edge density over the
// sequence. Prints and screens score low on both relative to live skin.
func surfaceScores(frames []*image.Gray) (texture, edges float64) {
	if len(frames) == 0 {
		return 0, 0
	}
	for _, f := range frames {
		texture += grayVariance(f)
		edges += edgeDensity(f)
	}
	n := float64(len(frames))
	return texture / n, edges / n
}

func grayVariance(img *image.Gray) float64 {
	bounds := img.Bounds()
	var sum, sumSq float64
	count := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := float64(img.GrayAt(x, y).Y)
			sum += v
			sumSq += v * v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	mean := sum / float64(count)
	return sumSq/float64(count) - mean*mean
}

func edgeDensity(img *image.Gray) float64 {
	bounds := img.Bounds()
	if bounds.Dx() < 3 || bounds.Dy() < 3 {
		return 0
	}
	edgeCount, total := 0, 0
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			gx := float64(img.GrayAt(x+1, y).Y) - float64(img.GrayAt(x-1, y).Y)
			gy := float64(img.GrayAt(x, y+1).Y) - float64(img.GrayAt(x, y-1).Y)
			if math.Sqrt(gx*gx+gy*gy) > edgeGradientThreshold {
				edgeCount++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(edgeCount) / float64(total)
}

// motionScore is the mean absolute pixel difference between consecutive
// frames, averaged over the sequence. Frames of mismatched size contribute
// nothing, which biases a corrupt sequence toward the static verdict.
func motionScore(frames []*image.Gray) float64 {
	if len(frames) < 2 {
		return 0
	}
	var total float64
	pairs := 0
	for i := 1; i < len(frames); i++ {
		d, ok := meanAbsDiff(frames[i-1], frames[i])
		if !ok {
			continue
		}
		total += d
		pairs++
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}

func meanAbsDiff(a, b *image.Gray) (float64, bool) {
	if a.Bounds() != b.Bounds() {
		return 0, false
	}
	bounds := a.Bounds()
	var sum float64
	count := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sum += math.Abs(float64(a.GrayAt(x, y).Y) - float64(b.GrayAt(x, y).Y))
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}
