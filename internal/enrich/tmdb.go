package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackkerouac/aphrodite-sub000/internal/cachestore"
	"github.com/jackkerouac/aphrodite-sub000/internal/catalog"
	"github.com/jackkerouac/aphrodite-sub000/internal/config"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

// TMDbClient resolves ratings from The Movie Database and doubles as the
// poster-source discovery backend for the replace-poster flow.
type TMDbClient struct {
	apiKey   string
	baseURL  string
	language string
	region   string
	fetcher  *fetcher
}

// NewTMDb creates a TMDb source from configuration.
func NewTMDb(cfg config.TMDB, cache *cachestore.Store) (*TMDbClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfigMissing, SourceTMDb, "new", "api key required", nil)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfigMissing, SourceTMDb, "new", "base url required", nil)
	}
	return &TMDbClient{
		apiKey:   apiKey,
		baseURL:  baseURL,
		language: strings.TrimSpace(cfg.Language),
		region:   strings.TrimSpace(cfg.Region),
		fetcher: newFetcher(fetcherConfig{
			Source:         SourceTMDb,
			RPS:            cfg.RateLimitRPS,
			Burst:          cfg.RateLimitBurst,
			TimeoutSeconds: cfg.TimeoutSeconds,
			CacheTTLDays:   cfg.CacheTTLDays,
		}, cache, nil),
	}, nil
}

// Name implements Source.
func (c *TMDbClient) Name() string { return SourceTMDb }

// Supports implements Source: TMDb needs a TMDb ID or a title.
func (c *TMDbClient) Supports(hints Hints) bool {
	if _, ok := hints.ProviderID("Tmdb"); ok {
		return true
	}
	return strings.TrimSpace(hints.Title) != ""
}

type tmdbDetails struct {
	ID          int64   `json:"id"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int64   `json:"vote_count"`
}

// Fetch implements Source.
func (c *TMDbClient) Fetch(ctx context.Context, hints Hints) (*Result, error) {
	tmdbID, ok := hints.ProviderID("Tmdb")
	if !ok {
		var err error
		tmdbID, err = c.search(ctx, hints)
		if err != nil {
			return nil, err
		}
		if tmdbID == "" {
			return notFoundResult(SourceTMDb), nil
		}
	}

	kind := c.pathKind(hints.Kind)
	endpoint := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, kind, url.PathEscape(tmdbID), c.params(nil).Encode())
	body, err := c.fetcher.get(ctx, fmt.Sprintf("%s/%s", kind, tmdbID), endpoint, nil)
	if err != nil {
		return nil, err
	}

	var details tmdbDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, services.Wrap(services.ErrSourceInvalidResponse, SourceTMDb, "decode", "", err)
	}

	result := &Result{
		Source: SourceTMDb,
		Found:  true,
		IDs:    map[string]string{"Tmdb": tmdbID},
	}
	if details.VoteCount > 0 && details.VoteAverage > 0 {
		result.Reviews = append(result.Reviews, Review{
			Source: SourceTMDb,
			Score:  details.VoteAverage,
			Scale:  ScaleTen,
			Raw:    strconv.FormatFloat(details.VoteAverage, 'f', 1, 64),
		})
	}
	return result, nil
}

// PosterSource is one downloadable poster candidate discovered on TMDb.
type PosterSource struct {
	URL         string  `json:"url"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Language    string  `json:"language"`
	VoteAverage float64 `json:"vote_average"`
}

// ListPosterSources discovers alternative posters for an item by TMDb ID.
func (c *TMDbClient) ListPosterSources(ctx context.Context, kind catalog.ItemKind, tmdbID string) ([]PosterSource, error) {
	tmdbID = strings.TrimSpace(tmdbID)
	if tmdbID == "" {
		return nil, services.Wrap(services.ErrSourceNotFound, SourceTMDb, "posters", "tmdb id required", nil)
	}
	pathKind := c.pathKind(kind)
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	endpoint := fmt.Sprintf("%s/%s/%s/images?%s", c.baseURL, pathKind, url.PathEscape(tmdbID), params.Encode())
	body, err := c.fetcher.get(ctx, fmt.Sprintf("images:%s/%s", pathKind, tmdbID), endpoint, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Posters []struct {
			FilePath    string  `json:"file_path"`
			Width       int     `json:"width"`
			Height      int     `json:"height"`
			Language    string  `json:"iso_639_1"`
			VoteAverage float64 `json:"vote_average"`
		} `json:"posters"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, services.Wrap(services.ErrSourceInvalidResponse, SourceTMDb, "decode_posters", "", err)
	}

	sources := make([]PosterSource, 0, len(payload.Posters))
	for _, poster := range payload.Posters {
		if poster.FilePath == "" {
			continue
		}
		sources = append(sources, PosterSource{
			URL:         "https://image.tmdb.org/t/p/original" + poster.FilePath,
			Width:       poster.Width,
			Height:      poster.Height,
			Language:    poster.Language,
			VoteAverage: poster.VoteAverage,
		})
	}
	return sources, nil
}

// DownloadPoster fetches poster bytes from a discovered source URL. Poster
// downloads bypass the response cache.
func (c *TMDbClient) DownloadPoster(ctx context.Context, sourceURL string) ([]byte, error) {
	data, err := c.fetcher.get(ctx, "", sourceURL, nil)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrImageInvalid, SourceTMDb, "download_poster", "empty poster payload", nil)
	}
	return data, nil
}

func (c *TMDbClient) search(ctx context.Context, hints Hints) (string, error) {
	title := CleanTitle(hints.Title)
	if title == "" {
		return "", nil
	}
	pathKind := c.pathKind(hints.Kind)
	searchKind := "movie"
	yearParam := "primary_release_year"
	if pathKind == "tv" {
		searchKind = "tv"
		yearParam = "first_air_date_year"
	}

	params := c.params(nil)
	params.Set("query", title)
	if hints.Year > 0 {
		params.Set(yearParam, strconv.Itoa(hints.Year))
	}
	endpoint := fmt.Sprintf("%s/search/%s?%s", c.baseURL, searchKind, params.Encode())
	cacheKey := fmt.Sprintf("search:%s:%s:%d", searchKind, NormalizeTitle(title), hints.Year)

	body, err := c.fetcher.get(ctx, cacheKey, endpoint, nil)
	if err != nil {
		return "", err
	}
	var payload struct {
		Results []struct {
			ID int64 `json:"id"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", services.Wrap(services.ErrSourceInvalidResponse, SourceTMDb, "decode_search", "", err)
	}
	if len(payload.Results) == 0 {
		return "", nil
	}
	return strconv.FormatInt(payload.Results[0].ID, 10), nil
}

func (c *TMDbClient) pathKind(kind catalog.ItemKind) string {
	switch kind {
	case catalog.KindSeries, catalog.KindEpisode:
		return "tv"
	default:
		return "movie"
	}
}

func (c *TMDbClient) params(base url.Values) url.Values {
	if base == nil {
		base = url.Values{}
	}
	base.Set("api_key", c.apiKey)
	if c.language != "" {
		base.Set("language", c.language)
	}
	if c.region != "" {
		base.Set("region", c.region)
	}
	return base
}
