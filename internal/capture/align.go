package capture

import (
	"image"
	"image/color"
	"math"

	"github.com/kozaktomas/face-gallery/internal/detect"
)

// AlignEyes rotates the full frame about the midpoint between the eyes so
// the line through the two eye centers becomes horizontal. Pixels that fall
// outside the source after rotation replicate the nearest edge pixel, so no
// black wedges appear at the corners. Returns the input unchanged (and
// false) when either eye landmark cluster is missing.
func AlignEyes(img image.Image, landmarks detect.Landmarks) (image.Image, bool) {
	left, lok := landmarks.Center("left_eye")
	right, rok := landmarks.Center("right_eye")
	if !lok || !rok {
		return img, false
	}

	angle := math.Atan2(right.Y-left.Y, right.X-left.X)
	center := detect.Point{X: (left.X + right.X) / 2, Y: (left.Y + right.Y) / 2}
	return rotateAbout(img, center, angle), true
}

// rotateAbout rotates img by -angle radians about the given center using
// inverse mapping with bilinear sampling. Source coordinates are clamped to
// the frame, which replicates edge pixels.
func rotateAbout(img image.Image, center detect.Point, angle float64) image.Image {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	sin, cos := math.Sincos(angle)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			// Inverse rotation: where in the source does this output pixel come from.
			dx := float64(x) - center.X
			dy := float64(y) - center.Y
			srcX := center.X + dx*cos - dy*sin
			srcY := center.Y + dx*sin + dy*cos
			dst.Set(x, y, sampleBilinear(img, srcX, srcY))
		}
	}
	return dst
}

// sampleBilinear samples img at a fractional position, clamping out-of-range
// coordinates to the frame edge.
func sampleBilinear(img image.Image, x, y float64) color.Color {
	bounds := img.Bounds()

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	c00 := clampedAt(img, x0, y0, bounds)
	c10 := clampedAt(img, x0+1, y0, bounds)
	c01 := clampedAt(img, x0, y0+1, bounds)
	c11 := clampedAt(img, x0+1, y0+1, bounds)

	lerp2 := func(a, b [4]float64, t float64) [4]float64 {
		var out [4]float64
		for i := range out {
			out[i] = a[i]*(1-t) + b[i]*t
		}
		return out
	}
	top := lerp2(c00, c10, fx)
	bottom := lerp2(c01, c11, fx)
	c := lerp2(top, bottom, fy)

	return color.RGBA64{
		R: uint16(c[0] + 0.5),
		G: uint16(c[1] + 0.5),
		B: uint16(c[2] + 0.5),
		A: uint16(c[3] + 0.5),
	}
}

func clampedAt(img image.Image, x, y int, bounds image.Rectangle) [4]float64 {
	x = min(max(x, bounds.Min.X), bounds.Max.X-1)
	y = min(max(y, bounds.Min.Y), bounds.Max.Y-1)
	r, g, b, a := img.At(x, y).RGBA()
	return [4]float64{float64(r), float64(g), float64(b), float64(a)}
}
