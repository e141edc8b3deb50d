// Package badge turns resolved item attributes into a declarative list of
// badge instances. Selection is policy only; pixel work lives in render.
package badge

import "strings"

// Badge type names, in composition order.
const (
	TypeAudio      = "audio"
	TypeResolution = "resolution"
	TypeReview     = "review"
	TypeAwards     = "awards"
)

// TypeOrder is the canonical composition order of badge types.
var TypeOrder = []string{TypeAudio, TypeResolution, TypeReview, TypeAwards}

// Anchor names a poster corner. The -flush variants drop the edge padding;
// only awards use them in practice.
type Anchor string

const (
	AnchorTopLeft          Anchor = "top-left"
	AnchorTopRight         Anchor = "top-right"
	AnchorBottomLeft       Anchor = "bottom-left"
	AnchorBottomRight      Anchor = "bottom-right"
	AnchorTopLeftFlush     Anchor = "top-left-flush"
	AnchorTopRightFlush    Anchor = "top-right-flush"
	AnchorBottomLeftFlush  Anchor = "bottom-left-flush"
	AnchorBottomRightFlush Anchor = "bottom-right-flush"
)

// Flush reports whether the anchor drops the edge padding.
func (a Anchor) Flush() bool { return strings.HasSuffix(string(a), "-flush") }

// Base returns the anchor without a -flush suffix.
func (a Anchor) Base() Anchor { return Anchor(strings.TrimSuffix(string(a), "-flush")) }

// ParseAnchor validates an anchor name, defaulting to top-right.
func ParseAnchor(value string) Anchor {
	switch Anchor(strings.ToLower(strings.TrimSpace(value))) {
	case AnchorTopLeft, AnchorTopRight, AnchorBottomLeft, AnchorBottomRight,
		AnchorTopLeftFlush, AnchorTopRightFlush, AnchorBottomLeftFlush, AnchorBottomRightFlush:
		return Anchor(strings.ToLower(strings.TrimSpace(value)))
	default:
		return AnchorTopRight
	}
}

// Size policies.
const (
	SizeDynamic = "dynamic"
	SizeFixed   = "fixed"
)

// Sub-layout directions for badges sharing an anchor.
const (
	LayoutVertical   = "vertical"
	LayoutHorizontal = "horizontal"
)

// Style is the visual style block of one badge type.
type Style struct {
	Font         string  `json:"font"`
	FontSize     float64 `json:"font_size"`
	Foreground   string  `json:"fg"`
	Background   string  `json:"bg"`
	Opacity      float64 `json:"opacity"`
	BorderColor  string  `json:"border_color"`
	BorderWidth  int     `json:"border_width"`
	Shadow       bool    `json:"shadow"`
	ShadowOffset int     `json:"shadow_offset"`
	Padding      int     `json:"padding"`
	CornerRadius int     `json:"corner_radius"`
	SizePolicy   string  `json:"size_policy"`
	FixedWidth   int     `json:"fixed_width"`
	FixedHeight  int     `json:"fixed_height"`
	Layout       string  `json:"layout"`
	Gap          int     `json:"gap"`
	EdgePadding  int     `json:"edge_padding"`
}

// Visual is what a badge displays: rendered text or an image asset.
type Visual interface{ visual() }

// TextVisual renders a string in the badge style.
type TextVisual struct {
	Text string
}

func (TextVisual) visual() {}

// AssetVisual renders an image file.
type AssetVisual struct {
	Path string
}

func (AssetVisual) visual() {}

// Instance is one selected badge ready for the renderer.
type Instance struct {
	Type   string
	Visual Visual
	Anchor Anchor
	Style  Style
}

// Skip records a badge that selection dropped, with the reason, for
// provenance.
type Skip struct {
	Type   string
	Symbol string
	Reason string
}
