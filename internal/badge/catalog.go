package badge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"

	"github.com/jackkerouac/aphrodite-sub000/internal/services"
	"github.com/jackkerouac/aphrodite-sub000/internal/settings"
)

// TypeRule is the declarative policy for one badge type.
type TypeRule struct {
	Enabled      bool
	Anchor       Anchor
	Style        Style
	AssetMap     map[string]string
	TextFallback bool
	ColorScheme  string
}

// Catalog holds the per-type rules plus the asset root used to resolve image
// names to files.
type Catalog struct {
	assetsDir string
	rules     map[string]TypeRule
}

// defaultRule returns the built-in policy for a badge type; stored settings
// override field by field.
func defaultRule(badgeType string) TypeRule {
	rule := TypeRule{
		Enabled:      true,
		TextFallback: true,
		AssetMap:     map[string]string{},
		Style: Style{
			FontSize:     28,
			Foreground:   "#FFFFFF",
			Background:   "#000000",
			Opacity:      0.75,
			Padding:      12,
			CornerRadius: 10,
			SizePolicy:   SizeDynamic,
			Layout:       LayoutVertical,
			Gap:          8,
			EdgePadding:  30,
		},
	}
	switch badgeType {
	case TypeAudio:
		rule.Anchor = AnchorTopRight
	case TypeResolution:
		rule.Anchor = AnchorTopLeft
	case TypeReview:
		rule.Anchor = AnchorBottomLeft
	case TypeAwards:
		rule.Anchor = AnchorBottomRightFlush
		rule.TextFallback = false
		rule.ColorScheme = "black"
	default:
		rule.Anchor = AnchorTopRight
	}
	return rule
}

// Load builds the catalog from the settings store, falling back to defaults
// for anything unset. A nil store yields the pure defaults.
func Load(ctx context.Context, store *settings.Store, assetsDir string) (*Catalog, error) {
	catalog := &Catalog{
		assetsDir: assetsDir,
		rules:     make(map[string]TypeRule, len(TypeOrder)),
	}
	for _, badgeType := range TypeOrder {
		rule := defaultRule(badgeType)
		if store != nil {
			stored, err := store.BadgeSettings(ctx, badgeType)
			if err != nil {
				return nil, err
			}
			if err := applyStored(&rule, stored); err != nil {
				return nil, services.Wrap(services.ErrConfigInvalid, "badge", "load",
					fmt.Sprintf("badge type %s", badgeType), err)
			}
		}
		catalog.rules[badgeType] = rule
	}
	return catalog, nil
}

// applyStored overlays stored settings onto a rule. Values are stored as
// strings; coercion mismatches are configuration errors.
func applyStored(rule *TypeRule, stored map[string]string) error {
	for name, value := range stored {
		var err error
		switch name {
		case "enabled":
			rule.Enabled, err = cast.ToBoolE(value)
		case "anchor":
			rule.Anchor = ParseAnchor(value)
		case "text_fallback":
			rule.TextFallback, err = cast.ToBoolE(value)
		case "color_scheme":
			rule.ColorScheme = strings.TrimSpace(value)
		case "assets":
			assetMap := map[string]string{}
			if err = json.Unmarshal([]byte(value), &assetMap); err == nil {
				rule.AssetMap = assetMap
			}
		case "font":
			rule.Style.Font = value
		case "font_size":
			rule.Style.FontSize, err = cast.ToFloat64E(value)
		case "fg":
			rule.Style.Foreground = value
		case "bg":
			rule.Style.Background = value
		case "opacity":
			rule.Style.Opacity, err = cast.ToFloat64E(value)
		case "border_color":
			rule.Style.BorderColor = value
		case "border_width":
			rule.Style.BorderWidth, err = cast.ToIntE(value)
		case "shadow":
			rule.Style.Shadow, err = cast.ToBoolE(value)
		case "shadow_offset":
			rule.Style.ShadowOffset, err = cast.ToIntE(value)
		case "padding":
			rule.Style.Padding, err = cast.ToIntE(value)
		case "corner_radius":
			rule.Style.CornerRadius, err = cast.ToIntE(value)
		case "size_policy":
			if value == SizeFixed || value == SizeDynamic {
				rule.Style.SizePolicy = value
			}
		case "fixed_width":
			rule.Style.FixedWidth, err = cast.ToIntE(value)
		case "fixed_height":
			rule.Style.FixedHeight, err = cast.ToIntE(value)
		case "layout":
			if value == LayoutVertical || value == LayoutHorizontal {
				rule.Style.Layout = value
			}
		case "gap":
			rule.Style.Gap, err = cast.ToIntE(value)
		case "edge_padding":
			rule.Style.EdgePadding, err = cast.ToIntE(value)
		}
		if err != nil {
			return fmt.Errorf("setting %s=%q: %w", name, value, err)
		}
	}
	return nil
}

// Rule returns the policy for one badge type.
func (c *Catalog) Rule(badgeType string) (TypeRule, bool) {
	rule, ok := c.rules[strings.ToLower(strings.TrimSpace(badgeType))]
	return rule, ok
}

// assetPath resolves a badge image name under the asset root. Empty when the
// file is absent.
func (c *Catalog) assetPath(parts ...string) string {
	if c.assetsDir == "" {
		return ""
	}
	path := filepath.Join(append([]string{c.assetsDir}, parts...)...)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return ""
	}
	return path
}
