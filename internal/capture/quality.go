package capture

import (
	"image"
	"image/color"
)

// grayscale converts a frame to 8-bit luma once, so the per-pixel metric
// loops below stay cheap.
func grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// Sharpness returns the variance of the Laplacian response over the frame.
// Higher value = sharper image; motion blur flattens edges and drives the
// variance toward zero.
func Sharpness(img image.Image) float64 {
	gray := grayscale(img)
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	var sum, sumSq float64
	count := 0
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			// 4-neighbor Laplacian kernel.
			center := float64(gray.GrayAt(x, y).Y)
			lap := float64(gray.GrayAt(x-1, y).Y) +
				float64(gray.GrayAt(x+1, y).Y) +
				float64(gray.GrayAt(x, y-1).Y) +
				float64(gray.GrayAt(x, y+1).Y) -
				4*center

			sum += lap
			sumSq += lap * lap
			count++
		}
	}

	mean := sum / float64(count)
	return sumSq/float64(count) - mean*mean
}

// Brightness returns the mean luma of the frame on a 0-255 scale.
func Brightness(img image.Image) float64 {
	gray := grayscale(img)
	bounds := gray.Bounds()
	if bounds.Empty() {
		return 0
	}

	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sum += float64(gray.GrayAt(x, y).Y)
		}
	}
	return sum / float64(bounds.Dx()*bounds.Dy())
}
