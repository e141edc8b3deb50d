package enrich

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackkerouac/aphrodite-sub000/internal/cachestore"
	"github.com/jackkerouac/aphrodite-sub000/internal/config"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

// AniDBClient resolves anime ratings through the AniDB HTTP API. AniDB bans
// aggressive clients, so on top of the token bucket every request honors a
// hard minimum interval (at least one second).
type AniDBClient struct {
	baseURL       string
	clientName    string
	clientVersion int
	fetcher       *fetcher
}

// NewAniDB creates an AniDB source from configuration.
func NewAniDB(cfg config.AniDB, cache *cachestore.Store) (*AniDBClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfigMissing, SourceAniDB, "new", "base url required", nil)
	}
	clientName := strings.TrimSpace(cfg.ClientName)
	if clientName == "" {
		return nil, services.Wrap(services.ErrConfigMissing, SourceAniDB, "new", "client name required", nil)
	}

	minInterval := time.Duration(cfg.MinIntervalSeconds) * time.Second
	if minInterval < time.Second {
		minInterval = time.Second
	}
	clientVersion := cfg.ClientVersion
	if clientVersion <= 0 {
		clientVersion = 1
	}

	return &AniDBClient{
		baseURL:       baseURL,
		clientName:    clientName,
		clientVersion: clientVersion,
		fetcher: newFetcher(fetcherConfig{
			Source:         SourceAniDB,
			RPS:            cfg.RateLimitRPS,
			Burst:          cfg.RateLimitBurst,
			TimeoutSeconds: cfg.TimeoutSeconds,
			CacheTTLDays:   cfg.CacheTTLDays,
			MinInterval:    minInterval,
		}, cache, nil),
	}, nil
}

// Name implements Source.
func (c *AniDBClient) Name() string { return SourceAniDB }

// Supports implements Source: AniDB only applies to anime items.
func (c *AniDBClient) Supports(hints Hints) bool {
	return hints.IsAnime() || func() bool { _, ok := hints.ProviderID("AniDB"); return ok }()
}

type anidbAnime struct {
	XMLName xml.Name `xml:"anime"`
	ID      int64    `xml:"id,attr"`
	Error   string   `xml:",chardata"`
	Titles  struct {
		Title []struct {
			Type  string `xml:"type,attr"`
			Value string `xml:",chardata"`
		} `xml:"title"`
	} `xml:"titles"`
	Ratings struct {
		Permanent struct {
			Count int64  `xml:"count,attr"`
			Value string `xml:",chardata"`
		} `xml:"permanent"`
		Temporary struct {
			Count int64  `xml:"count,attr"`
			Value string `xml:",chardata"`
		} `xml:"temporary"`
	} `xml:"ratings"`
}

// Fetch implements Source. When the catalog already carries an AniDB ID it is
// used directly; otherwise the cleaned title is searched.
func (c *AniDBClient) Fetch(ctx context.Context, hints Hints) (*Result, error) {
	params := url.Values{}
	params.Set("request", "anime")
	params.Set("client", c.clientName)
	params.Set("clientver", strconv.Itoa(c.clientVersion))
	params.Set("protover", "1")

	var cacheKey string
	if anidbID, ok := hints.ProviderID("AniDB"); ok {
		params.Set("aid", anidbID)
		cacheKey = "aid:" + anidbID
	} else {
		title := CleanTitle(hints.Title)
		if title == "" {
			return notFoundResult(SourceAniDB), nil
		}
		params.Set("aname", title)
		cacheKey = "aname:" + NormalizeTitle(title)
	}

	body, err := c.fetcher.get(ctx, cacheKey, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	// AniDB reports errors in-band as <error>...</error> with HTTP 200.
	if strings.Contains(string(body), "<error") {
		return notFoundResult(SourceAniDB), nil
	}

	var anime anidbAnime
	if err := xml.Unmarshal(body, &anime); err != nil {
		return nil, services.Wrap(services.ErrSourceInvalidResponse, SourceAniDB, "decode", "", err)
	}
	if anime.ID == 0 {
		return notFoundResult(SourceAniDB), nil
	}

	result := &Result{
		Source: SourceAniDB,
		Found:  true,
		IDs:    map[string]string{"AniDB": strconv.FormatInt(anime.ID, 10)},
	}

	rating := strings.TrimSpace(anime.Ratings.Permanent.Value)
	if rating == "" {
		rating = strings.TrimSpace(anime.Ratings.Temporary.Value)
	}
	if rating != "" {
		if score, err := strconv.ParseFloat(rating, 64); err == nil {
			result.Reviews = append(result.Reviews, Review{
				Source: SourceAniDB,
				Score:  score,
				Scale:  ScaleTen,
				Raw:    fmt.Sprintf("%s/10", rating),
			})
		}
	}
	return result, nil
}
