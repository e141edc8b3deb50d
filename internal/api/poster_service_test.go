package api

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/jackkerouac/aphrodite-sub000/internal/catalog"
	"github.com/jackkerouac/aphrodite-sub000/internal/enrich"
	"github.com/jackkerouac/aphrodite-sub000/internal/jobs"
	"github.com/jackkerouac/aphrodite-sub000/internal/posters"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

type stubCatalog struct {
	item        *catalog.ItemMetadata
	uploaded    []byte
	removedTags []string
}

func (s *stubCatalog) GetItem(_ context.Context, itemID string) (*catalog.ItemMetadata, error) {
	if s.item == nil || s.item.ID != itemID {
		return nil, services.Wrap(services.ErrCatalogNotFound, "catalog", "get_item", itemID, nil)
	}
	return s.item, nil
}

func (s *stubCatalog) SetPrimaryImage(_ context.Context, _ string, data []byte, _ string) error {
	s.uploaded = data
	return nil
}

func (s *stubCatalog) RemoveTag(_ context.Context, _ string, tag string) error {
	s.removedTags = append(s.removedTags, tag)
	return nil
}

func (s *stubCatalog) Tag() string { return "aphrodite-overlay" }

type stubDiscovery struct {
	sources  []enrich.PosterSource
	poster   []byte
	lastKind catalog.ItemKind
	lastID   string
}

func (s *stubDiscovery) ListPosterSources(_ context.Context, kind catalog.ItemKind, tmdbID string) ([]enrich.PosterSource, error) {
	s.lastKind = kind
	s.lastID = tmdbID
	return s.sources, nil
}

func (s *stubDiscovery) DownloadPoster(context.Context, string) ([]byte, error) {
	return s.poster, nil
}

type stubSubmitter struct {
	itemID string
	kind   string
	mask   []string
}

func (s *stubSubmitter) SubmitSingle(_ context.Context, itemID, kind string, badgeTypes []string, _ string) (*jobs.Job, error) {
	s.itemID = itemID
	s.kind = kind
	s.mask = badgeTypes
	return &jobs.Job{ID: "job-badge", Type: jobs.TypeSingle}, nil
}

func testPosterStore(t *testing.T) *posters.Store {
	t.Helper()
	store, err := posters.New(t.TempDir())
	if err != nil {
		t.Fatalf("posters.New: %v", err)
	}
	return store
}

func movieItem(id string) *catalog.ItemMetadata {
	return &catalog.ItemMetadata{
		ID:          id,
		Type:        "Movie",
		ProviderIDs: map[string]string{"Tmdb": "603"},
	}
}

func TestSourcesResolvesTmdbID(t *testing.T) {
	discovery := &stubDiscovery{sources: []enrich.PosterSource{{URL: "https://image.tmdb.org/t/p/original/a.jpg"}}}
	svc := NewPosterService(&stubCatalog{item: movieItem("m1")}, discovery, testPosterStore(t), nil)

	resp, err := svc.Sources(context.Background(), "m1")
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	if resp.TmdbID != "603" || discovery.lastKind != catalog.KindMovie {
		t.Fatalf("resp = %+v, kind = %q", resp, discovery.lastKind)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("sources = %+v", resp.Sources)
	}
}

func TestSourcesWithoutTmdbIDFails(t *testing.T) {
	item := movieItem("m1")
	item.ProviderIDs = nil
	svc := NewPosterService(&stubCatalog{item: item}, &stubDiscovery{}, testPosterStore(t), nil)

	_, err := svc.Sources(context.Background(), "m1")
	if !errors.Is(err, services.ErrSourceNotFound) {
		t.Fatalf("expected source_not_found, got %v", err)
	}
}

func TestReplaceInstallsNewOriginal(t *testing.T) {
	cat := &stubCatalog{item: movieItem("m1")}
	store := testPosterStore(t)
	if _, err := store.SaveOriginal("m1", []byte("old poster")); err != nil {
		t.Fatalf("SaveOriginal: %v", err)
	}
	if _, err := store.SaveModified("m1", []byte("old badged")); err != nil {
		t.Fatalf("SaveModified: %v", err)
	}
	submitter := &stubSubmitter{}
	svc := NewPosterService(cat, &stubDiscovery{poster: []byte("new poster")}, store, submitter)

	resp, err := svc.Replace(context.Background(), "m1", ReplacePosterRequest{
		SourceURL:   "https://image.tmdb.org/t/p/original/b.jpg",
		ApplyBadges: true,
		BadgeTypes:  []string{"audio"},
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if !resp.Stored || resp.Job == nil || resp.Job.ID != "job-badge" {
		t.Fatalf("resp = %+v", resp)
	}
	if data, _, err := store.Read("m1", posters.BucketOriginal); err != nil || string(data) != "new poster" {
		t.Fatalf("original = %q, err = %v", data, err)
	}
	if store.Exists("m1", posters.BucketModified) {
		t.Fatal("stale badged poster should be deleted")
	}
	if string(cat.uploaded) != "new poster" {
		t.Fatalf("uploaded = %q", cat.uploaded)
	}
	if len(cat.removedTags) != 1 || cat.removedTags[0] != "aphrodite-overlay" {
		t.Fatalf("removed tags = %v", cat.removedTags)
	}
	if submitter.itemID != "m1" || submitter.kind != "movie" || len(submitter.mask) != 1 {
		t.Fatalf("badge job = %+v", submitter)
	}
}

func TestCustomDecodesBase64(t *testing.T) {
	cat := &stubCatalog{item: movieItem("m1")}
	store := testPosterStore(t)
	svc := NewPosterService(cat, nil, store, nil)

	resp, err := svc.Custom(context.Background(), "m1", CustomPosterRequest{
		ImageBase64: base64.StdEncoding.EncodeToString([]byte("custom art")),
	})
	if err != nil {
		t.Fatalf("Custom: %v", err)
	}
	if !resp.Stored || resp.Job != nil {
		t.Fatalf("resp = %+v", resp)
	}
	if data, _, err := store.Read("m1", posters.BucketOriginal); err != nil || string(data) != "custom art" {
		t.Fatalf("original = %q, err = %v", data, err)
	}
}

func TestCustomRejectsBadPayload(t *testing.T) {
	svc := NewPosterService(&stubCatalog{item: movieItem("m1")}, nil, testPosterStore(t), nil)

	if _, err := svc.Custom(context.Background(), "m1", CustomPosterRequest{}); !errors.Is(err, services.ErrConfigInvalid) {
		t.Fatalf("expected config_invalid for empty payload, got %v", err)
	}
	if _, err := svc.Custom(context.Background(), "m1", CustomPosterRequest{ImageBase64: "!!not base64!!"}); !errors.Is(err, services.ErrImageInvalid) {
		t.Fatalf("expected image_invalid for bad base64, got %v", err)
	}
}
