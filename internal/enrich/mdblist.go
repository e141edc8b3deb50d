package enrich

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackkerouac/aphrodite-sub000/internal/cachestore"
	"github.com/jackkerouac/aphrodite-sub000/internal/config"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

// MDBListClient resolves aggregate ratings through the MDBList API.
type MDBListClient struct {
	apiKey  string
	baseURL string
	fetcher *fetcher
}

// NewMDBList creates an MDBList source from configuration.
func NewMDBList(cfg config.MDBList, cache *cachestore.Store) (*MDBListClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfigMissing, SourceMDBList, "new", "api key required", nil)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfigMissing, SourceMDBList, "new", "base url required", nil)
	}
	return &MDBListClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		fetcher: newFetcher(fetcherConfig{
			Source:         SourceMDBList,
			RPS:            cfg.RateLimitRPS,
			Burst:          cfg.RateLimitBurst,
			TimeoutSeconds: cfg.TimeoutSeconds,
			CacheTTLDays:   cfg.CacheTTLDays,
		}, cache, nil),
	}, nil
}

// Name implements Source.
func (c *MDBListClient) Name() string { return SourceMDBList }

// Supports implements Source: MDBList looks up by IMDb or TMDb ID.
func (c *MDBListClient) Supports(hints Hints) bool {
	if _, ok := hints.ProviderID("Imdb"); ok {
		return true
	}
	_, ok := hints.ProviderID("Tmdb")
	return ok
}

// Fetch implements Source. The aggregate 0-100 score is reported as the
// mdblist review; individual source entries feed through untouched so the
// resolver can prefer direct sources.
func (c *MDBListClient) Fetch(ctx context.Context, hints Hints) (*Result, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)

	var cacheKey string
	if imdbID, ok := hints.ProviderID("Imdb"); ok {
		params.Set("i", imdbID)
		cacheKey = "imdb:" + imdbID
	} else if tmdbID, ok := hints.ProviderID("Tmdb"); ok {
		params.Set("tm", tmdbID)
		cacheKey = "tmdb:" + tmdbID
	} else {
		return notFoundResult(SourceMDBList), nil
	}

	body, err := c.fetcher.get(ctx, cacheKey, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Response bool   `json:"response"`
		ImdbID   string `json:"imdbid"`
		Score    int    `json:"score"`
		Ratings  []struct {
			Source string  `json:"source"`
			Score  float64 `json:"score"`
		} `json:"ratings"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, services.Wrap(services.ErrSourceInvalidResponse, SourceMDBList, "decode", "", err)
	}
	if !payload.Response && payload.Score == 0 && len(payload.Ratings) == 0 {
		return notFoundResult(SourceMDBList), nil
	}

	result := &Result{Source: SourceMDBList, Found: true, IDs: map[string]string{}}
	if payload.ImdbID != "" {
		result.IDs["Imdb"] = payload.ImdbID
	}
	if payload.Score > 0 {
		result.Reviews = append(result.Reviews, Review{
			Source: SourceMDBList,
			Score:  float64(payload.Score),
			Scale:  ScaleHundred,
			Raw:    strconv.Itoa(payload.Score),
		})
	}
	return result, nil
}
