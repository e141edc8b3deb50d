package enrich

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed data/crunchyroll_awards.json
var crunchyrollAwardsJSON []byte

// AwardEntry is one row of the static awards dataset.
type AwardEntry struct {
	Source   string `json:"source"`
	TMDbID   string `json:"tmdb_id"`
	Title    string `json:"title"`
	Year     int    `json:"year"`
	Category string `json:"category"`
	Tier     int    `json:"tier"`
}

// AwardsSource matches items against a local awards dataset. There is no
// network involved; matching is by TMDb ID first, then by title variants.
type AwardsSource struct {
	entries []AwardEntry
	byTMDb  map[string][]AwardEntry
	byTitle map[string][]AwardEntry
}

// NewAwards builds the awards source from the embedded dataset.
func NewAwards() (*AwardsSource, error) {
	var entries []AwardEntry
	if err := json.Unmarshal(crunchyrollAwardsJSON, &entries); err != nil {
		return nil, fmt.Errorf("decode embedded awards dataset: %w", err)
	}
	return NewAwardsWithEntries(entries), nil
}

// NewAwardsWithEntries builds the awards source from an explicit dataset.
func NewAwardsWithEntries(entries []AwardEntry) *AwardsSource {
	source := &AwardsSource{
		entries: entries,
		byTMDb:  make(map[string][]AwardEntry),
		byTitle: make(map[string][]AwardEntry),
	}
	for _, entry := range entries {
		if entry.TMDbID != "" {
			source.byTMDb[entry.TMDbID] = append(source.byTMDb[entry.TMDbID], entry)
		}
		if key := NormalizeTitle(entry.Title); key != "" {
			source.byTitle[key] = append(source.byTitle[key], entry)
		}
	}
	return source
}

// Name implements Source.
func (s *AwardsSource) Name() string { return SourceAwards }

// Supports implements Source: every item can be checked against the dataset.
func (s *AwardsSource) Supports(hints Hints) bool {
	return strings.TrimSpace(hints.Title) != "" || func() bool { _, ok := hints.ProviderID("Tmdb"); return ok }()
}

// Fetch implements Source.
func (s *AwardsSource) Fetch(ctx context.Context, hints Hints) (*Result, error) {
	matches := s.Match(hints)
	if len(matches) == 0 {
		return notFoundResult(SourceAwards), nil
	}

	result := &Result{Source: SourceAwards, Found: true}
	seen := make(map[string]struct{})
	for _, entry := range matches {
		if _, dup := seen[entry.Source]; dup {
			continue
		}
		seen[entry.Source] = struct{}{}
		result.Awards = append(result.Awards, entry.Source)
	}
	return result, nil
}

// Match returns dataset rows for the item, TMDb ID matches first.
func (s *AwardsSource) Match(hints Hints) []AwardEntry {
	if tmdbID, ok := hints.ProviderID("Tmdb"); ok {
		if entries, found := s.byTMDb[tmdbID]; found {
			return entries
		}
	}
	for _, variant := range TitleVariants(hints.Title, hints.OriginalTitle) {
		if entries, found := s.byTitle[NormalizeTitle(variant)]; found {
			return entries
		}
	}
	return nil
}

// BestTier returns the lowest (best) tier among the matched entries, or 0
// when nothing matched.
func (s *AwardsSource) BestTier(hints Hints) int {
	best := 0
	for _, entry := range s.Match(hints) {
		if best == 0 || entry.Tier < best {
			best = entry.Tier
		}
	}
	return best
}
