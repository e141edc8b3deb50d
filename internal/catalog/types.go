package catalog

import "strings"

// ItemKind classifies a catalog item for pipeline routing.
type ItemKind string

const (
	KindMovie   ItemKind = "movie"
	KindSeries  ItemKind = "series"
	KindEpisode ItemKind = "episode"
	KindOther   ItemKind = "other"
)

// KindFromType maps the server's item type strings onto pipeline kinds.
func KindFromType(itemType string) ItemKind {
	switch strings.ToLower(strings.TrimSpace(itemType)) {
	case "movie":
		return KindMovie
	case "series":
		return KindSeries
	case "episode":
		return KindEpisode
	default:
		return KindOther
	}
}

// Library is one top-level view on the media server.
type Library struct {
	ID             string `json:"Id"`
	Name           string `json:"Name"`
	CollectionType string `json:"CollectionType"`
}

// ItemSummary is the lightweight listing record returned by enumeration.
// SeasonNumber is only populated for episode listings.
type ItemSummary struct {
	ID             string `json:"Id"`
	Name           string `json:"Name"`
	Type           string `json:"Type"`
	ProductionYear int    `json:"ProductionYear"`
	SeasonNumber   int    `json:"ParentIndexNumber"`
}

// Kind returns the pipeline kind for the summary.
func (s ItemSummary) Kind() ItemKind { return KindFromType(s.Type) }

// MediaStream is one audio/video/subtitle stream of an item's media source.
type MediaStream struct {
	Type           string `json:"Type"`
	Codec          string `json:"Codec"`
	Profile        string `json:"Profile"`
	Title          string `json:"Title"`
	DisplayTitle   string `json:"DisplayTitle"`
	Width          int    `json:"Width"`
	Height         int    `json:"Height"`
	Channels       int    `json:"Channels"`
	IsDefault      bool   `json:"IsDefault"`
	ColorTransfer  string `json:"ColorTransfer"`
	ColorPrimaries string `json:"ColorPrimaries"`
	VideoRange     string `json:"VideoRange"`
	VideoRangeType string `json:"VideoRangeType"`
	VideoDoViTitle string `json:"VideoDoViTitle"`
}

// IsAudio reports whether the stream carries audio.
func (m MediaStream) IsAudio() bool { return strings.EqualFold(m.Type, "Audio") }

// IsVideo reports whether the stream carries video.
func (m MediaStream) IsVideo() bool { return strings.EqualFold(m.Type, "Video") }

// ItemMetadata is the full item record used by the attribute resolver.
type ItemMetadata struct {
	ID             string            `json:"Id"`
	Name           string            `json:"Name"`
	OriginalTitle  string            `json:"OriginalTitle"`
	Type           string            `json:"Type"`
	Overview       string            `json:"Overview"`
	Path           string            `json:"Path"`
	ProductionYear int               `json:"ProductionYear"`
	Genres         []string          `json:"Genres"`
	Tags           []string          `json:"Tags"`
	ProviderIDs    map[string]string `json:"ProviderIds"`
	MediaStreams   []MediaStream     `json:"MediaStreams"`
	SeriesID       string            `json:"SeriesId"`
	SeasonNumber   int               `json:"ParentIndexNumber"`
	EpisodeNumber  int               `json:"IndexNumber"`
}

// Kind returns the pipeline kind for the item.
func (m *ItemMetadata) Kind() ItemKind { return KindFromType(m.Type) }

// ProviderID looks up an external identifier case-insensitively.
func (m *ItemMetadata) ProviderID(name string) (string, bool) {
	for key, value := range m.ProviderIDs {
		if strings.EqualFold(key, name) && strings.TrimSpace(value) != "" {
			return value, true
		}
	}
	return "", false
}

// HasTag reports tag membership case-insensitively.
func (m *ItemMetadata) HasTag(tag string) bool {
	for _, existing := range m.Tags {
		if strings.EqualFold(existing, tag) {
			return true
		}
	}
	return false
}

// HasGenre reports genre membership case-insensitively.
func (m *ItemMetadata) HasGenre(genre string) bool {
	for _, existing := range m.Genres {
		if strings.EqualFold(existing, genre) {
			return true
		}
	}
	return false
}
