package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackkerouac/aphrodite-sub000/internal/catalog"
	"github.com/jackkerouac/aphrodite-sub000/internal/config"
	"github.com/jackkerouac/aphrodite-sub000/internal/enrich"
)

func testCatalogClient(t *testing.T, serverURL string) *catalog.Client {
	t.Helper()
	client, err := catalog.New(config.Catalog{
		URL:            serverURL,
		APIKey:         "token",
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		TimeoutSeconds: 5,
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return client
}

func TestSampleEpisodesSpreadsAcrossSeasons(t *testing.T) {
	episodes := []catalog.ItemSummary{
		{ID: "s1e1", SeasonNumber: 1},
		{ID: "s1e2", SeasonNumber: 1},
		{ID: "s1e3", SeasonNumber: 1},
		{ID: "s1e4", SeasonNumber: 1},
		{ID: "s2e1", SeasonNumber: 2},
		{ID: "s2e2", SeasonNumber: 2},
		{ID: "s3e1", SeasonNumber: 3},
	}
	picked := SampleEpisodes(episodes, 5)
	if len(picked) != 5 {
		t.Fatalf("picked %d episodes, want 5", len(picked))
	}
	// Round one takes the first episode of every season before season one
	// gets a second slot.
	want := []string{"s1e1", "s2e1", "s3e1", "s1e2", "s2e2"}
	for i, id := range want {
		if picked[i] != id {
			t.Fatalf("picked[%d] = %s, want %s (full pick %v)", i, picked[i], id, picked)
		}
	}
}

func TestSampleEpisodesShortSeries(t *testing.T) {
	episodes := []catalog.ItemSummary{
		{ID: "e1", SeasonNumber: 1},
		{ID: "e2", SeasonNumber: 1},
	}
	if picked := SampleEpisodes(episodes, 5); len(picked) != 2 {
		t.Fatalf("picked %d, want all 2", len(picked))
	}
}

func TestElectSeriesDominantValues(t *testing.T) {
	samples := []episodeAttributes{
		{Class: Res1080p, Codec: CodecEAC3, Range: RangeSDR},
		{Class: Res1080p, Codec: CodecEAC3, Range: RangeSDR},
		{Class: Res1080p, Codec: CodecEAC3, Range: RangeHDR},
		{Class: Res1080p, Codec: CodecEAC3, Range: RangeSDR},
		{Class: Res720p, Codec: CodecAAC, Range: RangeSDR},
	}
	class, codec, dynamicRange, _ := electSeries(samples, true)
	if class != Res1080p {
		t.Errorf("class = %s, want 1080p", class)
	}
	if codec != CodecEAC3 {
		t.Errorf("codec = %s, want eac3", codec)
	}
	if dynamicRange != RangeHDR {
		t.Errorf("range = %s, want hdr (any-episode policy)", dynamicRange)
	}
}

func TestElectSeriesTieBreaks(t *testing.T) {
	samples := []episodeAttributes{
		{Class: Res1080p, Codec: CodecAC3, Range: RangeSDR},
		{Class: Res4K, Codec: CodecTrueHD, Range: RangeSDR},
	}
	class, codec, _, _ := electSeries(samples, false)
	if class != Res4K {
		t.Errorf("tied class = %s, want the higher 4k", class)
	}
	if codec != CodecTrueHD {
		t.Errorf("tied codec = %s, want the richer truehd", codec)
	}
}

func TestElectSeriesModalRangeWhenHDRAnyDisabled(t *testing.T) {
	samples := []episodeAttributes{
		{Class: Res1080p, Codec: CodecEAC3, Range: RangeSDR},
		{Class: Res1080p, Codec: CodecEAC3, Range: RangeSDR},
		{Class: Res1080p, Codec: CodecEAC3, Range: RangeHDR},
	}
	_, _, dynamicRange, _ := electSeries(samples, false)
	if dynamicRange != RangeSDR {
		t.Fatalf("range = %s, want modal sdr", dynamicRange)
	}
}

// stubSource is a canned enrichment source for resolver tests.
type stubSource struct {
	name    string
	result  *enrich.Result
	err     error
	support bool
}

func (s *stubSource) Name() string               { return s.name }
func (s *stubSource) Supports(enrich.Hints) bool { return s.support }
func (s *stubSource) Fetch(context.Context, enrich.Hints) (*enrich.Result, error) {
	return s.result, s.err
}

func TestResolveMovieEndToEnd(t *testing.T) {
	registry := enrich.NewRegistry(
		&stubSource{
			name:    enrich.SourceOMDb,
			support: true,
			result: &enrich.Result{
				Source: enrich.SourceOMDb,
				Found:  true,
				Reviews: []enrich.Review{
					{Source: enrich.SourceIMDb, Score: 8.0, Scale: enrich.ScaleTen},
					{Source: enrich.SourceRottenTomatoes, Score: 95, Scale: enrich.ScaleHundred},
					{Source: enrich.SourceMetacritic, Score: 80, Scale: enrich.ScaleHundred},
				},
			},
		},
		&stubSource{
			name:    enrich.SourceAwards,
			support: true,
			result:  &enrich.Result{Source: enrich.SourceAwards, Found: true, Awards: []string{"crunchyroll"}},
		},
	)

	resolver := New(nil, registry, Options{
		ReviewSources:   []string{"imdb", "rotten_tomatoes", "metacritic"},
		MaxReviewBadges: 3,
		AwardsPriority:  []string{"oscars", "crunchyroll"},
	}, nil)

	item := &catalog.ItemMetadata{
		ID:   "movie-1",
		Type: "Movie",
		Path: "/media/Feature.2160p.mkv",
		MediaStreams: []catalog.MediaStream{
			{Type: "Video", Codec: "hevc", Width: 3840, Height: 2160, ColorTransfer: "smpte2084"},
			{Type: "Audio", Codec: "truehd", Title: "TrueHD Atmos", Channels: 8, IsDefault: true},
		},
	}
	attrs, err := resolver.Resolve(context.Background(), item)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if attrs.ResolutionClass != Res4K {
		t.Errorf("resolution = %s, want 4k", attrs.ResolutionClass)
	}
	if attrs.DynamicRange != RangeHDR {
		t.Errorf("range = %s, want hdr", attrs.DynamicRange)
	}
	if attrs.PrimaryAudioCodec != CodecAtmos {
		t.Errorf("audio = %s, want atmos", attrs.PrimaryAudioCodec)
	}
	if len(attrs.Reviews) != 3 || attrs.Reviews[0].Source != enrich.SourceIMDb {
		t.Errorf("reviews = %+v, want imdb first of 3", attrs.Reviews)
	}
	if len(attrs.Awards) != 1 || attrs.Awards[0] != "crunchyroll" {
		t.Errorf("awards = %v, want [crunchyroll]", attrs.Awards)
	}
}

func TestResolveDegradesOnSourceFailure(t *testing.T) {
	registry := enrich.NewRegistry(
		&stubSource{
			name:    enrich.SourceOMDb,
			support: true,
			err:     fmt.Errorf("omdb exploded"),
		},
		&stubSource{
			name:    enrich.SourceMDBList,
			support: true,
			result: &enrich.Result{
				Source:  enrich.SourceMDBList,
				Found:   true,
				Reviews: []enrich.Review{{Source: enrich.SourceMDBList, Score: 84, Scale: enrich.ScaleHundred}},
			},
		},
	)

	resolver := New(nil, registry, Options{
		ReviewSources:   []string{"imdb", "mdblist"},
		MaxReviewBadges: 3,
	}, nil)

	item := &catalog.ItemMetadata{
		ID:   "movie-2",
		Type: "Movie",
		MediaStreams: []catalog.MediaStream{
			{Type: "Video", Width: 1920, Height: 1080},
			{Type: "Audio", Codec: "aac", Channels: 2},
		},
	}
	attrs, err := resolver.Resolve(context.Background(), item)
	if err != nil {
		t.Fatalf("Resolve must degrade, got %v", err)
	}
	if len(attrs.Reviews) != 1 || attrs.Reviews[0].Source != enrich.SourceMDBList {
		t.Fatalf("reviews = %+v, want the surviving mdblist score", attrs.Reviews)
	}
	if attrs.Provenance["reviews:omdb"] == "" {
		t.Fatal("failed source must leave provenance")
	}
}

// mappingSource consumes identifiers discovered by earlier sources, the way
// the MAL offline mapping turns an AniDB ID into a MAL ID.
type mappingSource struct {
	stubSource
	gotHints enrich.Hints
}

func (s *mappingSource) ConsumesDiscoveredIDs() bool { return true }

func (s *mappingSource) Supports(hints enrich.Hints) bool {
	_, ok := hints.ProviderID("AniDB")
	return ok
}

func (s *mappingSource) Fetch(_ context.Context, hints enrich.Hints) (*enrich.Result, error) {
	s.gotHints = hints
	return s.result, s.err
}

func TestResolveFeedsDiscoveredIDsForward(t *testing.T) {
	mal := &mappingSource{stubSource: stubSource{
		name: enrich.SourceMAL,
		result: &enrich.Result{
			Source:  enrich.SourceMAL,
			Found:   true,
			Reviews: []enrich.Review{{Source: enrich.SourceMAL, Score: 8.6, Scale: enrich.ScaleTen}},
		},
	}}
	registry := enrich.NewRegistry(
		&stubSource{
			name:    enrich.SourceAniDB,
			support: true,
			result: &enrich.Result{
				Source:  enrich.SourceAniDB,
				Found:   true,
				IDs:     map[string]string{"AniDB": "777"},
				Reviews: []enrich.Review{{Source: enrich.SourceAniDB, Score: 8.1, Scale: enrich.ScaleTen}},
			},
		},
		mal,
	)

	resolver := New(nil, registry, Options{
		ReviewSources:   []string{"anidb", "mal"},
		MaxReviewBadges: 3,
	}, nil)

	// The catalog item carries no provider IDs: the AniDB title search is the
	// only thing that identifies it, and MAL must see what AniDB found.
	item := &catalog.ItemMetadata{
		ID:   "anime-1",
		Type: "Movie",
		Name: "Cowboy Bebop",
		MediaStreams: []catalog.MediaStream{
			{Type: "Video", Width: 1920, Height: 1080},
			{Type: "Audio", Codec: "aac", Channels: 2},
		},
	}
	attrs, err := resolver.Resolve(context.Background(), item)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if id, ok := mal.gotHints.ProviderID("AniDB"); !ok || id != "777" {
		t.Fatalf("mal hints AniDB = %q (found=%t), want the discovered 777", id, ok)
	}
	if len(attrs.Reviews) != 2 {
		t.Fatalf("reviews = %+v, want anidb + mal", attrs.Reviews)
	}
}

func TestReviewCapAndPriority(t *testing.T) {
	pooled := []enrich.Review{
		{Source: "metacritic", Score: 73},
		{Source: "imdb", Score: 8.7},
		{Source: "mdblist", Score: 84},
		{Source: "rotten_tomatoes", Score: 87},
	}
	selected := selectReviews(pooled, []string{"imdb", "rotten_tomatoes", "metacritic", "mdblist"}, 3)
	if len(selected) != 3 {
		t.Fatalf("selected %d reviews, want 3", len(selected))
	}
	want := []string{"imdb", "rotten_tomatoes", "metacritic"}
	for i, name := range want {
		if selected[i].Source != name {
			t.Fatalf("selected[%d] = %s, want %s", i, selected[i].Source, name)
		}
	}
}

func TestAwardSelection(t *testing.T) {
	pooled := []string{"crunchyroll", "emmys"}
	if got := selectAwards(pooled, []string{"oscars", "emmys", "crunchyroll"}, false); len(got) != 1 || got[0] != "emmys" {
		t.Fatalf("single award = %v, want [emmys]", got)
	}
	if got := selectAwards(pooled, []string{"oscars", "emmys", "crunchyroll"}, true); len(got) != 2 {
		t.Fatalf("multi award = %v, want both", got)
	}
}

func TestResolveSeriesElection(t *testing.T) {
	episodes := map[string]catalog.ItemMetadata{}
	for i := 1; i <= 4; i++ {
		episodes[fmt.Sprintf("ep-%d", i)] = catalog.ItemMetadata{
			ID:   fmt.Sprintf("ep-%d", i),
			Type: "Episode",
			MediaStreams: []catalog.MediaStream{
				{Type: "Video", Width: 1920, Height: 1080},
				{Type: "Audio", Codec: "eac3", Channels: 6, IsDefault: true},
			},
		}
	}
	hdrEpisode := episodes["ep-2"]
	hdrEpisode.MediaStreams[0].ColorTransfer = "smpte2084"
	episodes["ep-2"] = hdrEpisode
	episodes["ep-5"] = catalog.ItemMetadata{
		ID:   "ep-5",
		Type: "Episode",
		MediaStreams: []catalog.MediaStream{
			{Type: "Video", Width: 1280, Height: 720},
			{Type: "Audio", Codec: "aac", Channels: 2, IsDefault: true},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/Shows/series-1/Episodes"):
			json.NewEncoder(w).Encode(map[string]any{
				"Items": []map[string]any{
					{"Id": "ep-1", "ParentIndexNumber": 1},
					{"Id": "ep-2", "ParentIndexNumber": 1},
					{"Id": "ep-3", "ParentIndexNumber": 1},
					{"Id": "ep-4", "ParentIndexNumber": 2},
					{"Id": "ep-5", "ParentIndexNumber": 2},
				},
			})
		case strings.HasPrefix(r.URL.Path, "/Items/"):
			id := strings.TrimPrefix(r.URL.Path, "/Items/")
			episode, ok := episodes[id]
			if !ok {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(episode)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	resolver := New(testCatalogClient(t, server.URL), nil, Options{
		SeriesSampleEpisodes: 5,
		SeriesHDRAny:         true,
	}, nil)

	attrs, err := resolver.Resolve(context.Background(), &catalog.ItemMetadata{ID: "series-1", Type: "Series"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if attrs.ResolutionClass != Res1080p {
		t.Errorf("series class = %s, want dominant 1080p", attrs.ResolutionClass)
	}
	if attrs.PrimaryAudioCodec != CodecEAC3 {
		t.Errorf("series codec = %s, want dominant eac3", attrs.PrimaryAudioCodec)
	}
	if attrs.DynamicRange != RangeHDR {
		t.Errorf("series range = %s, want hdr from the single HDR episode", attrs.DynamicRange)
	}
}
