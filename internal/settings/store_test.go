package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTypedSettingsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "badges", "max_review_badges", "3", TypeInteger); err != nil {
		t.Fatalf("Set integer: %v", err)
	}
	if err := store.Set(ctx, "badges", "default_opacity", "0.85", TypeFloat); err != nil {
		t.Fatalf("Set float: %v", err)
	}
	if err := store.Set(ctx, "badges", "series_hdr_any", "true", TypeBoolean); err != nil {
		t.Fatalf("Set bool: %v", err)
	}
	if err := store.Set(ctx, "badges", "review_layout", `{"direction":"vertical","gap":6}`, TypeJSON); err != nil {
		t.Fatalf("Set json: %v", err)
	}

	if n, err := store.Int(ctx, "max_review_badges"); err != nil || n != 3 {
		t.Fatalf("Int: %d %v", n, err)
	}
	if f, err := store.Float(ctx, "default_opacity"); err != nil || f != 0.85 {
		t.Fatalf("Float: %f %v", f, err)
	}
	if b, err := store.Bool(ctx, "series_hdr_any"); err != nil || !b {
		t.Fatalf("Bool: %v %v", b, err)
	}
	var layout struct {
		Direction string `json:"direction"`
		Gap       int    `json:"gap"`
	}
	if err := store.JSON(ctx, "review_layout", &layout); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if layout.Direction != "vertical" || layout.Gap != 6 {
		t.Fatalf("unexpected layout %+v", layout)
	}
}

func TestTypeMismatchIsConfigInvalid(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "badges", "font_size", "24", TypeInteger); err != nil {
		t.Fatalf("Set: %v", err)
	}
	_, err := store.String(ctx, "font_size")
	if !errors.Is(err, services.ErrConfigInvalid) {
		t.Fatalf("expected config_invalid, got %v", err)
	}

	_, err = store.Int(ctx, "does_not_exist")
	if !errors.Is(err, services.ErrConfigMissing) {
		t.Fatalf("expected config_missing, got %v", err)
	}

	if err := store.Set(ctx, "badges", "bad_json", "{not json", TypeJSON); !errors.Is(err, services.ErrConfigInvalid) {
		t.Fatalf("expected config_invalid for malformed json, got %v", err)
	}
}

func TestVersionBumpsOnEveryWrite(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	before, err := store.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if err := store.Set(ctx, "catalog", "tag", "aphrodite-overlay", TypeString); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.SetAPIKey(ctx, "omdb", "api_key", "secret", ""); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	after, err := store.Version(ctx)
	if err != nil {
		t.Fatalf("Version after: %v", err)
	}
	if after != before+2 {
		t.Fatalf("expected version %d, got %d", before+2, after)
	}
}

func TestCategoryReadWrite(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.SetCategory(ctx, "audio_badge", map[string]Setting{
		"anchor":  {Value: "top-right", Type: TypeString},
		"padding": {Value: "30", Type: TypeInteger},
	})
	if err != nil {
		t.Fatalf("SetCategory: %v", err)
	}

	values, err := store.Category(ctx, "audio_badge")
	if err != nil {
		t.Fatalf("Category: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("expected 2 settings, got %d", len(values))
	}
	if values["anchor"].Value != "top-right" || values["anchor"].Type != TypeString {
		t.Fatalf("unexpected anchor row %+v", values["anchor"])
	}
}

func TestAPIKeysAndBadgeSettings(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SetAPIKey(ctx, "OMDb", "api_key", "abc123", "ratings"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	value, ok, err := store.APIKey(ctx, "omdb", "api_key")
	if err != nil || !ok || value != "abc123" {
		t.Fatalf("APIKey: %q ok=%v err=%v", value, ok, err)
	}
	if _, ok, _ := store.APIKey(ctx, "omdb", "missing"); ok {
		t.Fatal("expected miss for unknown key name")
	}

	if err := store.SetBadgeSetting(ctx, "audio", "anchor", "top-left"); err != nil {
		t.Fatalf("SetBadgeSetting: %v", err)
	}
	if err := store.SetBadgeSetting(ctx, "audio", "anchor", "top-right"); err != nil {
		t.Fatalf("SetBadgeSetting overwrite: %v", err)
	}
	styles, err := store.BadgeSettings(ctx, "audio")
	if err != nil {
		t.Fatalf("BadgeSettings: %v", err)
	}
	if styles["anchor"] != "top-right" {
		t.Fatalf("expected overwritten anchor, got %v", styles)
	}
}

func TestReviewSourcePriorityOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, source := range []ReviewSource{
		{Name: "metacritic", Enabled: true, Priority: 30},
		{Name: "imdb", Enabled: true, Priority: 10},
		{Name: "rotten_tomatoes", Enabled: false, Priority: 20},
	} {
		if err := store.UpsertReviewSource(ctx, source); err != nil {
			t.Fatalf("UpsertReviewSource %s: %v", source.Name, err)
		}
	}

	sources, err := store.ReviewSources(ctx)
	if err != nil {
		t.Fatalf("ReviewSources: %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
	if sources[0].Name != "imdb" || sources[1].Name != "rotten_tomatoes" || sources[2].Name != "metacritic" {
		t.Fatalf("unexpected order: %+v", sources)
	}
	if sources[1].Enabled {
		t.Fatal("rotten_tomatoes should be disabled")
	}
}
