package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackkerouac/aphrodite-sub000/internal/cachestore"
	"github.com/jackkerouac/aphrodite-sub000/internal/config"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

// OMDbClient resolves ratings through the OMDb API. A single lookup by IMDb
// ID yields IMDb, Rotten Tomatoes, and Metacritic scores at once.
type OMDbClient struct {
	apiKey  string
	baseURL string
	fetcher *fetcher
}

// NewOMDb creates an OMDb source from configuration.
func NewOMDb(cfg config.OMDb, cache *cachestore.Store) (*OMDbClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfigMissing, SourceOMDb, "new", "api key required", nil)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfigMissing, SourceOMDb, "new", "base url required", nil)
	}
	return &OMDbClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		fetcher: newFetcher(fetcherConfig{
			Source:         SourceOMDb,
			RPS:            cfg.RateLimitRPS,
			Burst:          cfg.RateLimitBurst,
			TimeoutSeconds: cfg.TimeoutSeconds,
			CacheTTLDays:   cfg.CacheTTLDays,
		}, cache, nil),
	}, nil
}

// Name implements Source.
func (c *OMDbClient) Name() string { return SourceOMDb }

// Supports implements Source: OMDb needs an IMDb ID or a title.
func (c *OMDbClient) Supports(hints Hints) bool {
	if _, ok := hints.ProviderID("Imdb"); ok {
		return true
	}
	return strings.TrimSpace(hints.Title) != ""
}

type omdbPayload struct {
	Response   string `json:"Response"`
	Error      string `json:"Error"`
	ImdbID     string `json:"imdbID"`
	ImdbRating string `json:"imdbRating"`
	Metascore  string `json:"Metascore"`
	Ratings    []struct {
		Source string `json:"Source"`
		Value  string `json:"Value"`
	} `json:"Ratings"`
}

// Fetch implements Source.
func (c *OMDbClient) Fetch(ctx context.Context, hints Hints) (*Result, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)

	var cacheKey string
	if imdbID, ok := hints.ProviderID("Imdb"); ok {
		params.Set("i", imdbID)
		cacheKey = "id:" + imdbID
	} else {
		title := CleanTitle(hints.Title)
		if title == "" {
			return notFoundResult(SourceOMDb), nil
		}
		params.Set("t", title)
		if hints.Year > 0 {
			params.Set("y", strconv.Itoa(hints.Year))
		}
		cacheKey = fmt.Sprintf("title:%s:%d", NormalizeTitle(title), hints.Year)
	}

	body, err := c.fetcher.get(ctx, cacheKey, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var payload omdbPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, services.Wrap(services.ErrSourceInvalidResponse, SourceOMDb, "decode", "", err)
	}
	if !strings.EqualFold(payload.Response, "True") {
		// OMDb reports misses in-band with Response=False.
		return notFoundResult(SourceOMDb), nil
	}

	result := &Result{Source: SourceOMDb, Found: true, IDs: map[string]string{}}
	if payload.ImdbID != "" {
		result.IDs["Imdb"] = payload.ImdbID
	}
	for _, rating := range payload.Ratings {
		if review, ok := parseOMDbRating(rating.Source, rating.Value); ok {
			result.Reviews = append(result.Reviews, review)
		}
	}
	// imdbRating covers older responses without a Ratings array.
	if !hasReview(result.Reviews, SourceIMDb) && payload.ImdbRating != "" && payload.ImdbRating != "N/A" {
		if score, err := strconv.ParseFloat(payload.ImdbRating, 64); err == nil {
			result.Reviews = append(result.Reviews, Review{
				Source: SourceIMDb, Score: score, Scale: ScaleTen, Raw: payload.ImdbRating,
			})
		}
	}
	return result, nil
}

// parseOMDbRating normalizes one entry of OMDb's Ratings array: IMDb "8.7/10",
// Rotten Tomatoes "87%", Metacritic "73/100".
func parseOMDbRating(source, value string) (Review, bool) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "internet movie database":
		score, err := strconv.ParseFloat(strings.TrimSuffix(value, "/10"), 64)
		if err != nil {
			return Review{}, false
		}
		return Review{Source: SourceIMDb, Score: score, Scale: ScaleTen, Raw: value}, true
	case "rotten tomatoes":
		score, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
		if err != nil {
			return Review{}, false
		}
		return Review{Source: SourceRottenTomatoes, Score: score, Scale: ScaleHundred, Raw: value}, true
	case "metacritic":
		score, err := strconv.ParseFloat(strings.TrimSuffix(value, "/100"), 64)
		if err != nil {
			return Review{}, false
		}
		return Review{Source: SourceMetacritic, Score: score, Scale: ScaleHundred, Raw: value}, true
	default:
		return Review{}, false
	}
}

func hasReview(reviews []Review, source string) bool {
	for _, review := range reviews {
		if review.Source == source {
			return true
		}
	}
	return false
}
