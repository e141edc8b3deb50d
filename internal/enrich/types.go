package enrich

import (
	"context"
	"strings"

	"github.com/jackkerouac/aphrodite-sub000/internal/catalog"
)

// Review source names. Scores are normalized per source class: IMDb, TMDb,
// AniDB, and MAL use 0-10; Rotten Tomatoes, Metacritic, and MDBList use 0-100.
const (
	SourceIMDb           = "imdb"
	SourceRottenTomatoes = "rotten_tomatoes"
	SourceMetacritic     = "metacritic"
	SourceTMDb           = "tmdb"
	SourceAniDB          = "anidb"
	SourceMAL            = "mal"
	SourceMDBList        = "mdblist"
	SourceOMDb           = "omdb"
	SourceAwards         = "awards"
)

// Scale describes the numeric range a normalized score uses.
type Scale string

const (
	ScaleTen     Scale = "0-10"
	ScaleHundred Scale = "0-100"
)

// Review is one normalized rating from an external source.
type Review struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Scale  Scale   `json:"scale"`
	Raw    string  `json:"raw"`
}

// Result is what one source contributes for an item.
type Result struct {
	Source  string            `json:"source"`
	Found   bool              `json:"found"`
	Reviews []Review          `json:"reviews,omitempty"`
	Awards  []string          `json:"awards,omitempty"`
	IDs     map[string]string `json:"ids,omitempty"`
}

// Hints carries everything a source may need to locate an item.
type Hints struct {
	ItemID        string
	Kind          catalog.ItemKind
	Title         string
	OriginalTitle string
	Year          int
	Genres        []string
	ProviderIDs   map[string]string
}

// ProviderID looks up an external identifier case-insensitively.
func (h Hints) ProviderID(name string) (string, bool) {
	for key, value := range h.ProviderIDs {
		if strings.EqualFold(key, name) && strings.TrimSpace(value) != "" {
			return value, true
		}
	}
	return "", false
}

// IsAnime reports whether the item classifies as anime: an anime genre tag or
// an AniDB/AniList provider ID.
func (h Hints) IsAnime() bool {
	for _, genre := range h.Genres {
		if strings.EqualFold(strings.TrimSpace(genre), "anime") {
			return true
		}
	}
	if _, ok := h.ProviderID("AniDB"); ok {
		return true
	}
	if _, ok := h.ProviderID("AniList"); ok {
		return true
	}
	return false
}

// HintsFromItem builds lookup hints from catalog metadata.
func HintsFromItem(item *catalog.ItemMetadata) Hints {
	if item == nil {
		return Hints{}
	}
	return Hints{
		ItemID:        item.ID,
		Kind:          item.Kind(),
		Title:         item.Name,
		OriginalTitle: item.OriginalTitle,
		Year:          item.ProductionYear,
		Genres:        append([]string(nil), item.Genres...),
		ProviderIDs:   item.ProviderIDs,
	}
}

// MergeIDs returns a copy of the hints with discovered provider IDs folded
// in. Catalog-provided identifiers win on conflict.
func (h Hints) MergeIDs(ids map[string]string) Hints {
	if len(ids) == 0 {
		return h
	}
	merged := make(map[string]string, len(h.ProviderIDs)+len(ids))
	for key, value := range ids {
		if strings.TrimSpace(value) != "" {
			merged[key] = value
		}
	}
	for key, value := range h.ProviderIDs {
		if strings.TrimSpace(value) != "" {
			merged[key] = value
		}
	}
	h.ProviderIDs = merged
	return h
}

// Source is one enrichment backend. Fetch returns a Result with Found=false
// (and a nil error) when the source simply has no record of the item;
// errors are reserved for transport and protocol failures.
type Source interface {
	Name() string
	Supports(hints Hints) bool
	Fetch(ctx context.Context, hints Hints) (*Result, error)
}

// IDConsumer marks a source that can locate items through identifiers other
// sources discover (offline ID mappings). The resolver fetches consumers
// after the discovering wave, with found IDs folded into the hints.
type IDConsumer interface {
	ConsumesDiscoveredIDs() bool
}
