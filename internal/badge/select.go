package badge

import (
	"fmt"
	"strings"

	"github.com/jackkerouac/aphrodite-sub000/internal/enrich"
	"github.com/jackkerouac/aphrodite-sub000/internal/resolve"
)

// ResolutionSymbol combines a resolution class with a dynamic-range suffix
// into the badge symbol, e.g. 4k + hdr -> "4khdr".
func ResolutionSymbol(class resolve.ResolutionClass, dynamicRange resolve.DynamicRange) string {
	suffix := map[resolve.DynamicRange]string{
		resolve.RangeHDR:       "hdr",
		resolve.RangeHDRPlus:   "hdrplus",
		resolve.RangeDV:        "dv",
		resolve.RangeDVHDR:     "dvhdr",
		resolve.RangeDVHDRPlus: "dvhdrplus",
	}[dynamicRange]
	return string(class) + suffix
}

// Select intersects the job's badge mask with the enabled rules and produces
// the ordered badge instances for an item. Dropped badges come back as skips
// with their reason; selection never fails.
func (c *Catalog) Select(attrs *resolve.ItemAttributes, mask []string) ([]Instance, []Skip) {
	requested := make(map[string]bool, len(mask))
	for _, badgeType := range mask {
		requested[strings.ToLower(strings.TrimSpace(badgeType))] = true
	}

	var instances []Instance
	var skips []Skip
	for _, badgeType := range TypeOrder {
		if len(mask) > 0 && !requested[badgeType] {
			continue
		}
		rule, ok := c.rules[badgeType]
		if !ok || !rule.Enabled {
			continue
		}
		switch badgeType {
		case TypeAudio:
			instances, skips = c.selectAudio(attrs, rule, instances, skips)
		case TypeResolution:
			instances, skips = c.selectResolution(attrs, rule, instances, skips)
		case TypeReview:
			instances = c.selectReviews(attrs, rule, instances)
		case TypeAwards:
			instances, skips = c.selectAwards(attrs, rule, instances, skips)
		}
	}
	return instances, skips
}

func (c *Catalog) selectAudio(attrs *resolve.ItemAttributes, rule TypeRule, instances []Instance, skips []Skip) ([]Instance, []Skip) {
	symbol := attrs.PrimaryAudioCodec
	if symbol == "" {
		return instances, append(skips, Skip{Type: TypeAudio, Reason: "unknown_symbol"})
	}
	visual, ok := c.symbolVisual(TypeAudio, symbol, rule)
	if !ok {
		return instances, append(skips, Skip{Type: TypeAudio, Symbol: symbol, Reason: "missing_asset"})
	}
	return append(instances, Instance{Type: TypeAudio, Visual: visual, Anchor: rule.Anchor, Style: rule.Style}), skips
}

func (c *Catalog) selectResolution(attrs *resolve.ItemAttributes, rule TypeRule, instances []Instance, skips []Skip) ([]Instance, []Skip) {
	if attrs.ResolutionClass == "" {
		return instances, append(skips, Skip{Type: TypeResolution, Reason: "unknown_symbol"})
	}
	symbol := ResolutionSymbol(attrs.ResolutionClass, attrs.DynamicRange)
	visual, ok := c.symbolVisual(TypeResolution, symbol, rule)
	if !ok {
		return instances, append(skips, Skip{Type: TypeResolution, Symbol: symbol, Reason: "missing_asset"})
	}
	return append(instances, Instance{Type: TypeResolution, Visual: visual, Anchor: rule.Anchor, Style: rule.Style}), skips
}

func (c *Catalog) selectReviews(attrs *resolve.ItemAttributes, rule TypeRule, instances []Instance) []Instance {
	for _, review := range attrs.Reviews {
		instances = append(instances, Instance{
			Type:   TypeReview,
			Visual: TextVisual{Text: FormatScore(review)},
			Anchor: rule.Anchor,
			Style:  rule.Style,
		})
	}
	return instances
}

func (c *Catalog) selectAwards(attrs *resolve.ItemAttributes, rule TypeRule, instances []Instance, skips []Skip) ([]Instance, []Skip) {
	for _, award := range attrs.Awards {
		scheme := rule.ColorScheme
		if scheme == "" {
			scheme = "black"
		}
		path := c.assetPath(TypeAwards, scheme, award+".png")
		if path == "" {
			if rule.TextFallback {
				instances = append(instances, Instance{
					Type:   TypeAwards,
					Visual: TextVisual{Text: strings.ToUpper(award)},
					Anchor: rule.Anchor,
					Style:  rule.Style,
				})
				continue
			}
			skips = append(skips, Skip{Type: TypeAwards, Symbol: award, Reason: "missing_asset"})
			continue
		}
		instances = append(instances, Instance{
			Type:   TypeAwards,
			Visual: AssetVisual{Path: path},
			Anchor: rule.Anchor,
			Style:  rule.Style,
		})
	}
	return instances, skips
}

// symbolVisual resolves a symbol to its image asset, honoring the explicit
// asset map first and the conventional <type>/<symbol>.png location second.
// Text fallback applies when the asset is missing and the rule allows it.
func (c *Catalog) symbolVisual(badgeType, symbol string, rule TypeRule) (Visual, bool) {
	name := rule.AssetMap[symbol]
	if name == "" {
		name = symbol + ".png"
	}
	if path := c.assetPath(badgeType, name); path != "" {
		return AssetVisual{Path: path}, true
	}
	if rule.TextFallback {
		return TextVisual{Text: DisplayText(symbol)}, true
	}
	return nil, false
}

// DisplayText renders a badge symbol as human-facing text for the fallback
// path: "dts_x" -> "DTS-X", "4khdr" -> "4KHDR".
func DisplayText(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "_", "-"))
}

// FormatScore renders one review score in its source's conventional form:
// 0-10 scales keep one decimal, 0-100 scales show a percentage.
func FormatScore(review enrich.Review) string {
	if review.Scale == enrich.ScaleHundred {
		return fmt.Sprintf("%.0f%%", review.Score)
	}
	return fmt.Sprintf("%.1f", review.Score)
}
