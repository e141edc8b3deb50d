package enrich

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackkerouac/aphrodite-sub000/internal/cachestore"
	"github.com/jackkerouac/aphrodite-sub000/internal/config"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

//go:embed data/mal_mapping.json
var malMappingJSON []byte

// MALMapping is the offline ID translation table shipped with the binary.
// It resolves MyAnimeList IDs from AniDB or AniList IDs without a network
// round trip.
type MALMapping struct {
	AniDBToMAL   map[string]int64 `json:"anidb_to_mal"`
	AniListToMAL map[string]int64 `json:"anilist_to_mal"`
}

func loadMALMapping() (*MALMapping, error) {
	var mapping MALMapping
	if err := json.Unmarshal(malMappingJSON, &mapping); err != nil {
		return nil, fmt.Errorf("decode embedded mal mapping: %w", err)
	}
	return &mapping, nil
}

// MALClient resolves anime ratings through the MyAnimeList API. ID
// resolution prefers the offline mapping database; title search is the
// fallback. The source is gated on anime classification.
type MALClient struct {
	clientID string
	baseURL  string
	mapping  *MALMapping
	fetcher  *fetcher
}

// NewMAL creates a MAL source from configuration with the embedded mapping.
func NewMAL(cfg config.MAL, cache *cachestore.Store) (*MALClient, error) {
	mapping, err := loadMALMapping()
	if err != nil {
		return nil, err
	}
	return NewMALWithMapping(cfg, cache, mapping)
}

// NewMALWithMapping creates a MAL source with an explicit mapping table.
func NewMALWithMapping(cfg config.MAL, cache *cachestore.Store, mapping *MALMapping) (*MALClient, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, services.Wrap(services.ErrConfigMissing, SourceMAL, "new", "client id required", nil)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfigMissing, SourceMAL, "new", "base url required", nil)
	}
	if mapping == nil {
		mapping = &MALMapping{}
	}
	return &MALClient{
		clientID: clientID,
		baseURL:  baseURL,
		mapping:  mapping,
		fetcher: newFetcher(fetcherConfig{
			Source:         SourceMAL,
			RPS:            cfg.RateLimitRPS,
			Burst:          cfg.RateLimitBurst,
			TimeoutSeconds: cfg.TimeoutSeconds,
			CacheTTLDays:   cfg.CacheTTLDays,
		}, cache, nil),
	}, nil
}

// Name implements Source.
func (c *MALClient) Name() string { return SourceMAL }

// Supports implements Source: MAL only applies to anime items.
func (c *MALClient) Supports(hints Hints) bool {
	return hints.IsAnime()
}

// ConsumesDiscoveredIDs implements IDConsumer: the offline mapping turns an
// AniDB or AniList ID found by another source into a MAL ID, skipping the
// network title search.
func (c *MALClient) ConsumesDiscoveredIDs() bool { return true }

// ResolveID translates catalog provider IDs into a MAL ID using the offline
// mapping. Returns 0 when no mapping applies.
func (c *MALClient) ResolveID(hints Hints) int64 {
	if malID, ok := hints.ProviderID("Mal"); ok {
		if id, err := strconv.ParseInt(malID, 10, 64); err == nil {
			return id
		}
	}
	if anidbID, ok := hints.ProviderID("AniDB"); ok {
		if id, found := c.mapping.AniDBToMAL[anidbID]; found {
			return id
		}
	}
	if anilistID, ok := hints.ProviderID("AniList"); ok {
		if id, found := c.mapping.AniListToMAL[anilistID]; found {
			return id
		}
	}
	return 0
}

type malAnime struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Mean  float64 `json:"mean"`
}

// Fetch implements Source.
func (c *MALClient) Fetch(ctx context.Context, hints Hints) (*Result, error) {
	malID := c.ResolveID(hints)
	if malID == 0 {
		var err error
		malID, err = c.search(ctx, hints)
		if err != nil {
			return nil, err
		}
		if malID == 0 {
			return notFoundResult(SourceMAL), nil
		}
	}

	endpoint := fmt.Sprintf("%s/anime/%d?fields=mean", c.baseURL, malID)
	body, err := c.fetcher.get(ctx, fmt.Sprintf("anime:%d", malID), endpoint, c.headers())
	if err != nil {
		return nil, err
	}

	var anime malAnime
	if err := json.Unmarshal(body, &anime); err != nil {
		return nil, services.Wrap(services.ErrSourceInvalidResponse, SourceMAL, "decode", "", err)
	}
	if anime.ID == 0 {
		return notFoundResult(SourceMAL), nil
	}

	result := &Result{
		Source: SourceMAL,
		Found:  true,
		IDs:    map[string]string{"Mal": strconv.FormatInt(anime.ID, 10)},
	}
	if anime.Mean > 0 {
		result.Reviews = append(result.Reviews, Review{
			Source: SourceMAL,
			Score:  anime.Mean,
			Scale:  ScaleTen,
			Raw:    strconv.FormatFloat(anime.Mean, 'f', 2, 64),
		})
	}
	return result, nil
}

func (c *MALClient) search(ctx context.Context, hints Hints) (int64, error) {
	title := CleanTitle(hints.Title)
	if title == "" {
		return 0, nil
	}
	params := url.Values{}
	params.Set("q", title)
	params.Set("limit", "5")
	endpoint := c.baseURL + "/anime?" + params.Encode()
	cacheKey := "search:" + NormalizeTitle(title)

	body, err := c.fetcher.get(ctx, cacheKey, endpoint, c.headers())
	if err != nil {
		return 0, err
	}
	var payload struct {
		Data []struct {
			Node malAnime `json:"node"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, services.Wrap(services.ErrSourceInvalidResponse, SourceMAL, "decode_search", "", err)
	}

	// Prefer an exact normalized title match over the first hit.
	want := NormalizeTitle(title)
	for _, entry := range payload.Data {
		if NormalizeTitle(entry.Node.Title) == want {
			return entry.Node.ID, nil
		}
	}
	if len(payload.Data) > 0 {
		return payload.Data[0].Node.ID, nil
	}
	return 0, nil
}

func (c *MALClient) headers() map[string]string {
	return map[string]string{"X-MAL-CLIENT-ID": c.clientID}
}
