package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// PNGBytes encodes a solid-color PNG of the requested size.
func PNGBytes(t testing.TB, width, height int, fill color.Color) []byte {
	t.Helper()

	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
