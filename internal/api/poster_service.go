package api

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/jackkerouac/aphrodite-sub000/internal/catalog"
	"github.com/jackkerouac/aphrodite-sub000/internal/enrich"
	"github.com/jackkerouac/aphrodite-sub000/internal/jobs"
	"github.com/jackkerouac/aphrodite-sub000/internal/posters"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

// tmdbProvider is the catalog's provider-ID key for TMDb.
const tmdbProvider = "Tmdb"

// PosterCatalog abstracts the catalog operations poster management needs.
type PosterCatalog interface {
	GetItem(ctx context.Context, itemID string) (*catalog.ItemMetadata, error)
	SetPrimaryImage(ctx context.Context, itemID string, data []byte, mime string) error
	RemoveTag(ctx context.Context, itemID, tag string) error
	Tag() string
}

// PosterDiscovery abstracts TMDb poster discovery and download.
type PosterDiscovery interface {
	ListPosterSources(ctx context.Context, kind catalog.ItemKind, tmdbID string) ([]enrich.PosterSource, error)
	DownloadPoster(ctx context.Context, sourceURL string) ([]byte, error)
}

// SingleSubmitter submits a one-item badge job after a poster swap.
type SingleSubmitter interface {
	SubmitSingle(ctx context.Context, itemID, kind string, badgeTypes []string, optionsJSON string) (*jobs.Job, error)
}

// PosterService manages poster discovery, replacement, and custom uploads.
type PosterService struct {
	catalog PosterCatalog
	tmdb    PosterDiscovery
	store   *posters.Store
	engine  SingleSubmitter
}

// NewPosterService wires a poster service. The discovery client may be nil
// when TMDb is not configured; source listing then fails with source_not_found.
func NewPosterService(cat PosterCatalog, tmdb PosterDiscovery, store *posters.Store, engine SingleSubmitter) *PosterService {
	return &PosterService{catalog: cat, tmdb: tmdb, store: store, engine: engine}
}

// Sources discovers alternative posters for an item via its TMDb provider ID.
func (s *PosterService) Sources(ctx context.Context, itemID string) (PosterSourcesResponse, error) {
	if s.tmdb == nil {
		return PosterSourcesResponse{}, services.Wrap(services.ErrSourceNotFound, "api", "poster_sources", "tmdb is not configured", nil)
	}
	item, err := s.catalog.GetItem(ctx, itemID)
	if err != nil {
		return PosterSourcesResponse{}, err
	}
	tmdbID, ok := item.ProviderID(tmdbProvider)
	if !ok {
		return PosterSourcesResponse{}, services.Wrap(services.ErrSourceNotFound, "api", "poster_sources", "item has no tmdb id", nil)
	}
	sources, err := s.tmdb.ListPosterSources(ctx, item.Kind(), tmdbID)
	if err != nil {
		return PosterSourcesResponse{}, err
	}
	return PosterSourcesResponse{ItemID: item.ID, TmdbID: tmdbID, Sources: sources}, nil
}

// Replace downloads a discovered poster and installs it as the item's new
// base image, optionally submitting a badge job on top of it.
func (s *PosterService) Replace(ctx context.Context, itemID string, req ReplacePosterRequest) (PosterActionResponse, error) {
	if s.tmdb == nil {
		return PosterActionResponse{}, services.Wrap(services.ErrSourceNotFound, "api", "poster_replace", "tmdb is not configured", nil)
	}
	if strings.TrimSpace(req.SourceURL) == "" {
		return PosterActionResponse{}, services.Wrap(services.ErrConfigInvalid, "api", "poster_replace", "source url required", nil)
	}
	data, err := s.tmdb.DownloadPoster(ctx, req.SourceURL)
	if err != nil {
		return PosterActionResponse{}, err
	}
	return s.install(ctx, itemID, data, req.ApplyBadges, req.BadgeTypes)
}

// Custom installs operator-provided poster bytes as the item's new base
// image, optionally submitting a badge job on top of it.
func (s *PosterService) Custom(ctx context.Context, itemID string, req CustomPosterRequest) (PosterActionResponse, error) {
	encoded := strings.TrimSpace(req.ImageBase64)
	if encoded == "" {
		return PosterActionResponse{}, services.Wrap(services.ErrConfigInvalid, "api", "poster_custom", "image payload required", nil)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return PosterActionResponse{}, services.Wrap(services.ErrImageInvalid, "api", "poster_custom", "image payload is not valid base64", err)
	}
	return s.install(ctx, itemID, data, req.ApplyBadges, req.BadgeTypes)
}

// install makes data the item's new original: the poster store and the
// catalog are updated and the processed tag is cleared because the new base
// image carries no badges yet.
func (s *PosterService) install(ctx context.Context, itemID string, data []byte, applyBadges bool, badgeTypes []string) (PosterActionResponse, error) {
	item, err := s.catalog.GetItem(ctx, itemID)
	if err != nil {
		return PosterActionResponse{}, err
	}
	if _, err := s.store.ReplaceOriginal(itemID, data); err != nil {
		return PosterActionResponse{}, err
	}
	if err := s.store.DeleteModified(itemID); err != nil {
		return PosterActionResponse{}, err
	}
	if err := s.catalog.SetPrimaryImage(ctx, itemID, data, ""); err != nil {
		return PosterActionResponse{}, err
	}
	// Tag removal is best-effort; a leftover tag only suppresses re-badging
	// until the next job touches the item.
	_ = s.catalog.RemoveTag(ctx, itemID, s.catalog.Tag())

	resp := PosterActionResponse{ItemID: itemID, Stored: true}
	if applyBadges && s.engine != nil {
		job, err := s.engine.SubmitSingle(ctx, itemID, string(item.Kind()), badgeTypes, "")
		if err != nil {
			return resp, err
		}
		dto := FromJob(job)
		resp.Job = &dto
	}
	return resp, nil
}
