package render

import (
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/jackkerouac/aphrodite-sub000/internal/badge"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

// RenderBadge rasterizes one badge instance onto a transparent bitmap:
// optional shadow, rounded background at the configured opacity and border,
// and the centered text or asset content with padding.
func (r *Renderer) RenderBadge(instance badge.Instance) (*image.NRGBA, error) {
	style := instance.Style

	content, err := r.renderContent(instance)
	if err != nil {
		return nil, err
	}
	contentBounds := content.Bounds()

	width := contentBounds.Dx() + 2*style.Padding
	height := contentBounds.Dy() + 2*style.Padding
	if style.SizePolicy == badge.SizeFixed {
		if style.FixedWidth > 0 {
			width = style.FixedWidth
		}
		if style.FixedHeight > 0 {
			height = style.FixedHeight
		}
		// Fixed badges scale oversized content down to fit the box.
		maxW := width - 2*style.Padding
		maxH := height - 2*style.Padding
		if maxW > 0 && maxH > 0 && (contentBounds.Dx() > maxW || contentBounds.Dy() > maxH) {
			content = imaging.Fit(content, maxW, maxH, imaging.Lanczos)
			contentBounds = content.Bounds()
		}
	}

	shadowOffset := 0
	if style.Shadow {
		shadowOffset = style.ShadowOffset
		if shadowOffset <= 0 {
			shadowOffset = 4
		}
	}

	canvas := imaging.New(width+shadowOffset, height+shadowOffset, color.NRGBA{})
	if style.Shadow {
		shadow := roundedRect(width, height, style.CornerRadius, color.NRGBA{A: 110})
		canvas = imaging.Overlay(canvas, shadow, image.Pt(shadowOffset, shadowOffset), 1.0)
	}

	background := parseColor(style.Background, color.NRGBA{R: 0, G: 0, B: 0, A: 255})
	background.A = uint8(clamp01(style.Opacity) * 255)
	plate := roundedRect(width, height, style.CornerRadius, background)
	if style.BorderWidth > 0 {
		border := parseColor(style.BorderColor, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		plate = addBorder(plate, width, height, style.CornerRadius, style.BorderWidth, border)
	}
	canvas = imaging.Overlay(canvas, plate, image.Pt(0, 0), 1.0)

	contentX := (width - contentBounds.Dx()) / 2
	contentY := (height - contentBounds.Dy()) / 2
	canvas = imaging.Overlay(canvas, content, image.Pt(contentX, contentY), 1.0)
	return canvas, nil
}

// renderContent produces the badge's inner bitmap: measured text or the
// loaded asset image.
func (r *Renderer) renderContent(instance badge.Instance) (*image.NRGBA, error) {
	switch visual := instance.Visual.(type) {
	case badge.TextVisual:
		face, err := r.fonts.Face(instance.Style.Font, instance.Style.FontSize)
		if err != nil {
			return nil, err
		}
		metrics := MeasureText(face, visual.Text)
		if metrics.Width == 0 || metrics.Height == 0 {
			return imaging.New(1, 1, color.NRGBA{}), nil
		}
		foreground := parseColor(instance.Style.Foreground, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		bitmap := imaging.New(metrics.Width, metrics.Height, color.NRGBA{})
		drawText(bitmap, face, visual.Text, 0, 0, image.NewUniform(foreground))
		return bitmap, nil
	case badge.AssetVisual:
		asset, err := imaging.Open(visual.Path)
		if err != nil {
			return nil, services.Wrap(services.ErrStorageIO, "render", "open_asset", visual.Path, err)
		}
		return imaging.Clone(asset), nil
	default:
		return nil, services.Wrap(services.ErrUnknownSymbol, "render", "render_content", "badge has no visual", nil)
	}
}

// roundedRect draws a filled rounded rectangle. Radius is clamped to half the
// short side.
func roundedRect(width, height, radius int, fill color.NRGBA) *image.NRGBA {
	if radius < 0 {
		radius = 0
	}
	if max := min(width, height) / 2; radius > max {
		radius = max
	}
	img := imaging.New(width, height, color.NRGBA{})
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if insideRounded(x, y, width, height, radius) {
				img.SetNRGBA(x, y, fill)
			}
		}
	}
	return img
}

// addBorder strokes the rounded outline by subtracting an inset rounded rect
// from a border-colored one.
func addBorder(plate *image.NRGBA, width, height, radius, borderWidth int, borderColor color.NRGBA) *image.NRGBA {
	outline := roundedRect(width, height, radius, borderColor)
	innerW := width - 2*borderWidth
	innerH := height - 2*borderWidth
	if innerW <= 0 || innerH <= 0 {
		return outline
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			ix := x - borderWidth
			iy := y - borderWidth
			if ix >= 0 && iy >= 0 && ix < innerW && iy < innerH &&
				insideRounded(ix, iy, innerW, innerH, max(radius-borderWidth, 0)) {
				outline.SetNRGBA(x, y, plate.NRGBAAt(x, y))
			}
		}
	}
	return outline
}

// insideRounded reports whether the pixel lies inside a rounded rectangle of
// the given dimensions.
func insideRounded(x, y, width, height, radius int) bool {
	if radius == 0 {
		return x >= 0 && y >= 0 && x < width && y < height
	}
	cx, cy := -1, -1
	switch {
	case x < radius && y < radius:
		cx, cy = radius-1, radius-1
	case x >= width-radius && y < radius:
		cx, cy = width-radius, radius-1
	case x < radius && y >= height-radius:
		cx, cy = radius-1, height-radius
	case x >= width-radius && y >= height-radius:
		cx, cy = width-radius, height-radius
	default:
		return true
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= radius*radius
}

// parseColor decodes #RGB, #RRGGBB, or #RRGGBBAA hex colors, returning the
// fallback on malformed input.
func parseColor(value string, fallback color.NRGBA) color.NRGBA {
	value = strings.TrimSpace(strings.TrimPrefix(value, "#"))
	switch len(value) {
	case 3:
		expanded := make([]byte, 6)
		for i := 0; i < 3; i++ {
			expanded[2*i] = value[i]
			expanded[2*i+1] = value[i]
		}
		value = string(expanded)
	case 6, 8:
	default:
		return fallback
	}
	parsed, err := strconv.ParseUint(value, 16, 64)
	if err != nil {
		return fallback
	}
	if len(value) == 8 {
		return color.NRGBA{
			R: uint8(parsed >> 24),
			G: uint8(parsed >> 16),
			B: uint8(parsed >> 8),
			A: uint8(parsed),
		}
	}
	return color.NRGBA{
		R: uint8(parsed >> 16),
		G: uint8(parsed >> 8),
		B: uint8(parsed),
		A: 255,
	}
}

func clamp01(v float64) float64 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return v
}
