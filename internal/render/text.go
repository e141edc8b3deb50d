package render

import (
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// TextMetrics is a tight bounding box for a rendered string. Height includes
// descenders; Ascent is the distance from the box top to the baseline.
type TextMetrics struct {
	Width  int
	Height int
	Ascent int
}

// MeasureText computes tight text metrics using the face's glyph bounds
// rather than the nominal line height, so short strings do not carry dead
// vertical space.
func MeasureText(face font.Face, text string) TextMetrics {
	if text == "" {
		return TextMetrics{}
	}
	bounds, advance := font.BoundString(face, text)

	width := ceilFixed(advance)
	if boxWidth := ceilFixed(bounds.Max.X - bounds.Min.X); boxWidth > width {
		width = boxWidth
	}
	// bounds.Min.Y is negative (above baseline), Max.Y positive for
	// descenders.
	ascent := -floorFixed(bounds.Min.Y)
	descent := ceilFixed(bounds.Max.Y)
	return TextMetrics{
		Width:  width,
		Height: ascent + descent,
		Ascent: ascent,
	}
}

// drawText renders the string onto dst with its tight box's top-left at
// (x, y).
func drawText(dst *image.NRGBA, face font.Face, text string, x, y int, src image.Image) {
	metrics := MeasureText(face, text)
	drawer := &font.Drawer{
		Dst:  dst,
		Src:  src,
		Face: face,
		Dot:  fixed.P(x, y+metrics.Ascent),
	}
	drawer.DrawString(text)
}

func ceilFixed(v fixed.Int26_6) int  { return v.Ceil() }
func floorFixed(v fixed.Int26_6) int { return v.Floor() }
