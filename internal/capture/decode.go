// Package capture filters and fuses the raw frames of one live webcam
// capture into a single face embedding suitable for matching. Frames are
// scored for sharpness and brightness, aligned so the eye line is
// horizontal, and the surviving embeddings are averaged with
// quality-proportional weights.
package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DecodeFrame decodes one raw frame. JPEG, PNG, BMP and WebP are accepted;
// webcam captures are JPEG in practice.
func DecodeFrame(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

// EncodeJPEG re-encodes a frame for the detection server.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
