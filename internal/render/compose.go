package render

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/jackkerouac/aphrodite-sub000/internal/badge"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

// jpegQuality is fixed so identical inputs produce identical bytes.
const jpegQuality = 92

// Renderer composites badges onto posters.
type Renderer struct {
	fonts *FontManager
}

// New creates a renderer over a font manager.
func New(fonts *FontManager) *Renderer {
	if fonts == nil {
		fonts = NewFontManager(nil, "")
	}
	return &Renderer{fonts: fonts}
}

// Composite decodes the poster, renders every badge instance, places the
// anchored groups, and re-encodes. PNG input stays PNG; everything else
// encodes as JPEG.
func (r *Renderer) Composite(posterBytes []byte, instances []badge.Instance) ([]byte, error) {
	poster, format, err := image.Decode(bytes.NewReader(posterBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrImageInvalid, "render", "decode_poster", "", err)
	}

	canvas := imaging.Clone(poster)
	for _, group := range groupByAnchor(instances) {
		block, style, err := r.renderGroup(group)
		if err != nil {
			return nil, err
		}
		position := placeAnchor(canvas.Bounds(), block.Bounds(), group[0].Anchor, style.EdgePadding)
		canvas = imaging.Overlay(canvas, block, position, 1.0)
	}

	var out bytes.Buffer
	encodeFormat := imaging.JPEG
	if format == "png" {
		encodeFormat = imaging.PNG
	}
	if err := imaging.Encode(&out, canvas, encodeFormat, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, services.Wrap(services.ErrImageInvalid, "render", "encode_poster", "", err)
	}
	return out.Bytes(), nil
}

// groupByAnchor batches instances sharing an anchor, preserving selection
// order within and across groups.
func groupByAnchor(instances []badge.Instance) [][]badge.Instance {
	var order []badge.Anchor
	byAnchor := make(map[badge.Anchor][]badge.Instance)
	for _, instance := range instances {
		if _, seen := byAnchor[instance.Anchor]; !seen {
			order = append(order, instance.Anchor)
		}
		byAnchor[instance.Anchor] = append(byAnchor[instance.Anchor], instance)
	}
	groups := make([][]badge.Instance, 0, len(order))
	for _, anchor := range order {
		groups = append(groups, byAnchor[anchor])
	}
	return groups
}

// renderGroup renders each badge of an anchor group and stacks them in the
// group's sub-layout. A single badge passes through unstacked.
func (r *Renderer) renderGroup(group []badge.Instance) (*image.NRGBA, badge.Style, error) {
	style := group[0].Style

	bitmaps := make([]*image.NRGBA, 0, len(group))
	for _, instance := range group {
		bitmap, err := r.RenderBadge(instance)
		if err != nil {
			return nil, style, err
		}
		bitmaps = append(bitmaps, bitmap)
	}
	if len(bitmaps) == 1 {
		return bitmaps[0], style, nil
	}

	gap := style.Gap
	if gap < 0 {
		gap = 0
	}

	var width, height int
	if style.Layout == badge.LayoutHorizontal {
		for _, bitmap := range bitmaps {
			bounds := bitmap.Bounds()
			width += bounds.Dx()
			if bounds.Dy() > height {
				height = bounds.Dy()
			}
		}
		width += gap * (len(bitmaps) - 1)
	} else {
		for _, bitmap := range bitmaps {
			bounds := bitmap.Bounds()
			height += bounds.Dy()
			if bounds.Dx() > width {
				width = bounds.Dx()
			}
		}
		height += gap * (len(bitmaps) - 1)
	}

	block := imaging.New(width, height, color.NRGBA{})
	offset := 0
	for _, bitmap := range bitmaps {
		bounds := bitmap.Bounds()
		if style.Layout == badge.LayoutHorizontal {
			block = imaging.Overlay(block, bitmap, image.Pt(offset, (height-bounds.Dy())/2), 1.0)
			offset += bounds.Dx() + gap
		} else {
			block = imaging.Overlay(block, bitmap, image.Pt((width-bounds.Dx())/2, offset), 1.0)
			offset += bounds.Dy() + gap
		}
	}
	return block, style, nil
}

// placeAnchor computes the block's top-left position on the poster for the
// anchor, honoring edge padding and -flush variants.
func placeAnchor(poster, block image.Rectangle, anchor badge.Anchor, edgePadding int) image.Point {
	padding := edgePadding
	if anchor.Flush() {
		padding = 0
	}
	posterW, posterH := poster.Dx(), poster.Dy()
	blockW, blockH := block.Dx(), block.Dy()

	switch anchor.Base() {
	case badge.AnchorTopLeft:
		return image.Pt(padding, padding)
	case badge.AnchorTopRight:
		return image.Pt(posterW-blockW-padding, padding)
	case badge.AnchorBottomLeft:
		return image.Pt(padding, posterH-blockH-padding)
	case badge.AnchorBottomRight:
		return image.Pt(posterW-blockW-padding, posterH-blockH-padding)
	default:
		return image.Pt(padding, padding)
	}
}
