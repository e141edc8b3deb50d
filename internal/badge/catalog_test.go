package badge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackkerouac/aphrodite-sub000/internal/enrich"
	"github.com/jackkerouac/aphrodite-sub000/internal/resolve"
	"github.com/jackkerouac/aphrodite-sub000/internal/settings"
)

func testSettings(t *testing.T) *settings.Store {
	t.Helper()
	store, err := settings.OpenPath(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("settings.OpenPath: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func writeAsset(t *testing.T, root string, parts ...string) string {
	t.Helper()
	path := filepath.Join(append([]string{root}, parts...)...)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatalf("write asset: %v", err)
	}
	return path
}

func TestResolutionSymbol(t *testing.T) {
	cases := []struct {
		class resolve.ResolutionClass
		rng   resolve.DynamicRange
		want  string
	}{
		{resolve.Res4K, resolve.RangeHDR, "4khdr"},
		{resolve.Res4K, resolve.RangeSDR, "4k"},
		{resolve.Res1080p, resolve.RangeDVHDR, "1080pdvhdr"},
		{resolve.Res720p, resolve.RangeSDR, "720p"},
		{resolve.Res4K, resolve.RangeDVHDRPlus, "4kdvhdrplus"},
	}
	for _, tc := range cases {
		if got := ResolutionSymbol(tc.class, tc.rng); got != tc.want {
			t.Errorf("ResolutionSymbol(%s, %s) = %q, want %q", tc.class, tc.rng, got, tc.want)
		}
	}
}

func TestSelectUsesAssetsWhenPresent(t *testing.T) {
	assets := t.TempDir()
	writeAsset(t, assets, "audio", "atmos.png")
	writeAsset(t, assets, "resolution", "4khdr.png")
	writeAsset(t, assets, "awards", "black", "crunchyroll.png")

	catalog, err := Load(context.Background(), nil, assets)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	attrs := &resolve.ItemAttributes{
		ResolutionClass:   resolve.Res4K,
		DynamicRange:      resolve.RangeHDR,
		PrimaryAudioCodec: resolve.CodecAtmos,
		Reviews: []enrich.Review{
			{Source: enrich.SourceIMDb, Score: 8.0, Scale: enrich.ScaleTen},
			{Source: enrich.SourceRottenTomatoes, Score: 95, Scale: enrich.ScaleHundred},
			{Source: enrich.SourceMetacritic, Score: 80, Scale: enrich.ScaleHundred},
		},
		Awards: []string{"crunchyroll"},
	}
	instances, skips := catalog.Select(attrs, []string{"audio", "resolution", "review", "awards"})
	if len(skips) != 0 {
		t.Fatalf("unexpected skips: %+v", skips)
	}
	if len(instances) != 6 {
		t.Fatalf("got %d instances, want 6 (audio+resolution+3 reviews+award)", len(instances))
	}

	if asset, ok := instances[0].Visual.(AssetVisual); !ok || filepath.Base(asset.Path) != "atmos.png" {
		t.Errorf("audio badge = %+v, want atmos asset", instances[0].Visual)
	}
	if asset, ok := instances[1].Visual.(AssetVisual); !ok || filepath.Base(asset.Path) != "4khdr.png" {
		t.Errorf("resolution badge = %+v, want 4khdr asset", instances[1].Visual)
	}
	if text, ok := instances[2].Visual.(TextVisual); !ok || text.Text != "8.0" {
		t.Errorf("imdb review = %+v, want text 8.0", instances[2].Visual)
	}
	if text, ok := instances[3].Visual.(TextVisual); !ok || text.Text != "95%" {
		t.Errorf("rt review = %+v, want text 95%%", instances[3].Visual)
	}
}

func TestSelectTextFallbackAndSkips(t *testing.T) {
	// No assets on disk at all.
	catalog, err := Load(context.Background(), nil, t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	attrs := &resolve.ItemAttributes{
		ResolutionClass:   resolve.Res1080p,
		DynamicRange:      resolve.RangeSDR,
		PrimaryAudioCodec: resolve.CodecDTSX,
		Awards:            []string{"crunchyroll"},
	}
	instances, skips := catalog.Select(attrs, nil)

	var foundAudioText, foundResolutionText bool
	for _, instance := range instances {
		text, ok := instance.Visual.(TextVisual)
		if !ok {
			continue
		}
		switch instance.Type {
		case TypeAudio:
			foundAudioText = text.Text == "DTS-X"
		case TypeResolution:
			foundResolutionText = text.Text == "1080P"
		}
	}
	if !foundAudioText {
		t.Error("audio badge should fall back to DTS-X text")
	}
	if !foundResolutionText {
		t.Error("resolution badge should fall back to 1080P text")
	}

	// Awards default to no text fallback, so the missing asset is a skip.
	var awardSkip bool
	for _, skip := range skips {
		if skip.Type == TypeAwards && skip.Reason == "missing_asset" {
			awardSkip = true
		}
	}
	if !awardSkip {
		t.Errorf("expected missing-asset skip for awards, got %+v", skips)
	}
}

func TestSelectUnknownSymbolSkips(t *testing.T) {
	catalog, err := Load(context.Background(), nil, t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	attrs := &resolve.ItemAttributes{
		ResolutionClass: resolve.Res720p,
		DynamicRange:    resolve.RangeSDR,
		// No audio codec resolved.
	}
	_, skips := catalog.Select(attrs, []string{"audio"})
	if len(skips) != 1 || skips[0].Reason != "unknown_symbol" {
		t.Fatalf("skips = %+v, want one unknown_symbol", skips)
	}
}

func TestSelectHonorsMask(t *testing.T) {
	catalog, err := Load(context.Background(), nil, t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	attrs := &resolve.ItemAttributes{
		ResolutionClass:   resolve.Res4K,
		DynamicRange:      resolve.RangeSDR,
		PrimaryAudioCodec: resolve.CodecTrueHD,
		Reviews:           []enrich.Review{{Source: enrich.SourceIMDb, Score: 7.5, Scale: enrich.ScaleTen}},
	}
	instances, _ := catalog.Select(attrs, []string{"review"})
	if len(instances) != 1 || instances[0].Type != TypeReview {
		t.Fatalf("mask violated: %+v", instances)
	}
}

func TestLoadOverlaysStoredSettings(t *testing.T) {
	store := testSettings(t)
	ctx := context.Background()
	for name, value := range map[string]string{
		"enabled":   "true",
		"anchor":    "bottom-right",
		"font_size": "36",
		"opacity":   "0.9",
		"layout":    "horizontal",
	} {
		if err := store.SetBadgeSetting(ctx, TypeReview, name, value); err != nil {
			t.Fatalf("SetBadgeSetting(%s): %v", name, err)
		}
	}

	catalog, err := Load(ctx, store, t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rule, ok := catalog.Rule(TypeReview)
	if !ok {
		t.Fatal("review rule missing")
	}
	if rule.Anchor != AnchorBottomRight || rule.Style.FontSize != 36 || rule.Style.Opacity != 0.9 || rule.Style.Layout != LayoutHorizontal {
		t.Fatalf("stored settings not applied: %+v", rule)
	}
}

func TestLoadRejectsBadCoercion(t *testing.T) {
	store := testSettings(t)
	ctx := context.Background()
	if err := store.SetBadgeSetting(ctx, TypeAudio, "font_size", "huge"); err != nil {
		t.Fatalf("SetBadgeSetting: %v", err)
	}
	if _, err := Load(ctx, store, t.TempDir()); err == nil {
		t.Fatal("expected config error for non-numeric font_size")
	}
}

func TestAnchorFlushVariants(t *testing.T) {
	anchor := ParseAnchor("bottom-right-flush")
	if !anchor.Flush() {
		t.Fatal("flush anchor not detected")
	}
	if anchor.Base() != AnchorBottomRight {
		t.Fatalf("Base = %s, want bottom-right", anchor.Base())
	}
	if ParseAnchor("weird") != AnchorTopRight {
		t.Fatal("invalid anchor must default to top-right")
	}
}
