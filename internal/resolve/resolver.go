package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jackkerouac/aphrodite-sub000/internal/catalog"
	"github.com/jackkerouac/aphrodite-sub000/internal/config"
	"github.com/jackkerouac/aphrodite-sub000/internal/enrich"
	"github.com/jackkerouac/aphrodite-sub000/internal/logging"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

const enrichmentConcurrency = 4

// Options controls resolution policy. Zero values fall back to the defaults
// applied by New.
type Options struct {
	ReviewSources        []string
	MaxReviewBadges      int
	ResolutionPreference string
	SeriesSampleEpisodes int
	SeriesSampleTimeout  time.Duration
	SeriesHDRAny         bool
	AwardsPriority       []string
	AllowMultipleAwards  bool
}

// OptionsFromConfig maps the badge policy sections onto resolver options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ReviewSources:        append([]string(nil), cfg.Badges.ReviewSources...),
		MaxReviewBadges:      cfg.Badges.MaxReviewBadges,
		ResolutionPreference: cfg.Badges.ResolutionPreference,
		SeriesSampleEpisodes: cfg.Badges.SeriesSampleEpisodes,
		SeriesSampleTimeout:  time.Duration(cfg.Badges.SeriesSampleTimeout) * time.Second,
		SeriesHDRAny:         cfg.Badges.SeriesHDRAny,
		AwardsPriority:       append([]string(nil), cfg.Awards.Sources...),
		AllowMultipleAwards:  cfg.Awards.AllowMultiple,
	}
}

// Resolver derives ItemAttributes from catalog metadata and the enrichment
// sources. Enrichment failures degrade to missing reviews; only catalog
// failures surface as errors.
type Resolver struct {
	catalog  *catalog.Client
	registry *enrich.Registry
	opts     Options
	logger   *slog.Logger
}

// New creates a resolver. The registry may be empty; reviews and awards then
// resolve to nothing.
func New(client *catalog.Client, registry *enrich.Registry, opts Options, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	if registry == nil {
		registry = enrich.NewRegistry()
	}
	if opts.MaxReviewBadges <= 0 {
		opts.MaxReviewBadges = 3
	}
	if opts.SeriesSampleEpisodes <= 0 {
		opts.SeriesSampleEpisodes = 5
	}
	if opts.SeriesSampleTimeout <= 0 {
		opts.SeriesSampleTimeout = 30 * time.Second
	}
	if opts.ResolutionPreference == "" {
		opts.ResolutionPreference = PreferHigher
	}
	return &Resolver{catalog: client, registry: registry, opts: opts, logger: logger}
}

// Resolve computes the full attribute record for one item.
func (r *Resolver) Resolve(ctx context.Context, item *catalog.ItemMetadata) (*ItemAttributes, error) {
	if item == nil {
		return nil, services.Wrap(services.ErrCatalogNotFound, "resolve", "resolve", "nil item", nil)
	}

	attrs := &ItemAttributes{Provenance: make(map[string]string)}

	if item.Kind() == catalog.KindSeries {
		if err := r.resolveSeries(ctx, item, attrs); err != nil {
			return nil, err
		}
	} else {
		class, dynamicRange, provenance := TechnicalAttributes(item, r.opts.ResolutionPreference)
		attrs.ResolutionClass = class
		attrs.DynamicRange = dynamicRange
		for field, source := range provenance {
			attrs.setProvenance(field, source)
		}

		symbol, provenance2, ok := PrimaryAudio(item.MediaStreams)
		attrs.setProvenance("primary_audio_codec", provenance2)
		if ok {
			attrs.PrimaryAudioCodec = symbol
		}
	}

	r.resolveEnrichment(ctx, item, attrs)
	return attrs, nil
}

// resolveSeries elects dominant values from a sampled episode set.
func (r *Resolver) resolveSeries(ctx context.Context, item *catalog.ItemMetadata, attrs *ItemAttributes) error {
	episodes, err := r.catalog.SeriesEpisodes(ctx, item.ID)
	if err != nil {
		return err
	}
	sampled := SampleEpisodes(episodes, r.opts.SeriesSampleEpisodes)
	if len(sampled) == 0 {
		attrs.ResolutionClass = Res480p
		attrs.DynamicRange = RangeSDR
		attrs.setProvenance("resolution_class", "series has no episodes")
		return nil
	}

	sampleCtx, cancel := context.WithTimeout(ctx, r.opts.SeriesSampleTimeout)
	defer cancel()

	var mu sync.Mutex
	var samples []episodeAttributes

	group, groupCtx := errgroup.WithContext(sampleCtx)
	group.SetLimit(enrichmentConcurrency)
	for _, episodeID := range sampled {
		group.Go(func() error {
			episode, err := r.catalog.GetItem(groupCtx, episodeID)
			if err != nil {
				// A failed episode shrinks the sample instead of failing the
				// whole series.
				r.logger.Warn("episode sample failed",
					logging.FieldItemID, episodeID,
					logging.FieldErrorKind, services.Kind(err))
				return nil
			}
			class, dynamicRange, _ := TechnicalAttributes(episode, r.opts.ResolutionPreference)
			sample := episodeAttributes{Class: class, Range: dynamicRange}
			if symbol, _, ok := PrimaryAudio(episode.MediaStreams); ok {
				sample.Codec = symbol
			}
			mu.Lock()
			samples = append(samples, sample)
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	if len(samples) == 0 {
		return services.Wrap(services.ErrCatalogUnreachable, "resolve", "sample_series",
			fmt.Sprintf("all %d sampled episodes failed", len(sampled)), nil)
	}

	class, codec, dynamicRange, detail := electSeries(samples, r.opts.SeriesHDRAny)
	attrs.ResolutionClass = class
	attrs.PrimaryAudioCodec = codec
	attrs.DynamicRange = dynamicRange
	attrs.setProvenance("resolution_class", detail)
	attrs.setProvenance("primary_audio_codec", detail)
	attrs.setProvenance("dynamic_range", fmt.Sprintf("series election hdr_any=%t", r.opts.SeriesHDRAny))
	return nil
}

// resolveEnrichment fans fetches out across the applicable sources and folds
// reviews and awards into the attributes. Sources run in two waves: the
// discovering wave first, then sources that consume identifiers discovered by
// others (MAL's offline mapping reads an AniDB ID found by title search).
// Individual source failures are logged and recorded in provenance; they
// never fail the item.
func (r *Resolver) resolveEnrichment(ctx context.Context, item *catalog.ItemMetadata, attrs *ItemAttributes) {
	hints := enrich.HintsFromItem(item)

	var mu sync.Mutex
	var pooledReviews []enrich.Review
	var pooledAwards []string
	discovered := make(map[string]string)

	fetchWave := func(sources []enrich.Source, hints enrich.Hints) {
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(enrichmentConcurrency)
		for _, source := range sources {
			if !source.Supports(hints) {
				continue
			}
			group.Go(func() error {
				result, err := source.Fetch(groupCtx, hints)
				if err != nil {
					r.logger.Warn("enrichment source failed",
						logging.FieldItemID, item.ID,
						logging.FieldSource, source.Name(),
						logging.FieldErrorKind, services.Kind(err))
					mu.Lock()
					attrs.setProvenance("reviews:"+source.Name(), services.Kind(err))
					mu.Unlock()
					return nil
				}
				if !result.Found {
					return nil
				}
				mu.Lock()
				pooledReviews = append(pooledReviews, result.Reviews...)
				pooledAwards = append(pooledAwards, result.Awards...)
				for key, value := range result.IDs {
					discovered[key] = value
				}
				mu.Unlock()
				return nil
			})
		}
		_ = group.Wait()
	}

	discovering, consumers := partitionSources(r.registry.Sources())
	fetchWave(discovering, hints)
	if len(consumers) > 0 {
		fetchWave(consumers, hints.MergeIDs(discovered))
	}

	attrs.Reviews = selectReviews(pooledReviews, r.opts.ReviewSources, r.opts.MaxReviewBadges)
	for _, review := range attrs.Reviews {
		attrs.setProvenance("reviews:"+review.Source, "fetched")
	}
	attrs.Awards = selectAwards(pooledAwards, r.opts.AwardsPriority, r.opts.AllowMultipleAwards)
	if len(attrs.Awards) > 0 {
		attrs.setProvenance("awards", strings.Join(attrs.Awards, ","))
	}
}

// partitionSources splits the registry into the discovering wave and the
// sources that want identifiers discovered by others.
func partitionSources(sources []enrich.Source) (discovering, consumers []enrich.Source) {
	for _, source := range sources {
		if consumer, ok := source.(enrich.IDConsumer); ok && consumer.ConsumesDiscoveredIDs() {
			consumers = append(consumers, source)
			continue
		}
		discovering = append(discovering, source)
	}
	return discovering, consumers
}

// selectReviews orders pooled reviews by the configured source priority,
// keeps one review per source, and caps the result.
func selectReviews(pooled []enrich.Review, priority []string, max int) []enrich.Review {
	if len(pooled) == 0 {
		return nil
	}
	bySource := make(map[string]enrich.Review, len(pooled))
	var pooledOrder []string
	for _, review := range pooled {
		name := strings.ToLower(review.Source)
		if _, seen := bySource[name]; !seen {
			bySource[name] = review
			pooledOrder = append(pooledOrder, name)
		}
	}

	order := priority
	if len(order) == 0 {
		order = pooledOrder
	}

	var selected []enrich.Review
	for _, name := range order {
		review, ok := bySource[strings.ToLower(name)]
		if !ok {
			continue
		}
		selected = append(selected, review)
		if len(selected) == max {
			break
		}
	}
	return selected
}

// selectAwards applies the award priority: first non-empty source wins unless
// multiple awards are allowed, in which case every matched source survives in
// priority order.
func selectAwards(pooled, priority []string, allowMultiple bool) []string {
	if len(pooled) == 0 {
		return nil
	}
	present := make(map[string]bool, len(pooled))
	var pooledOrder []string
	for _, symbol := range pooled {
		name := strings.ToLower(strings.TrimSpace(symbol))
		if name == "" || present[name] {
			continue
		}
		present[name] = true
		pooledOrder = append(pooledOrder, name)
	}

	order := priority
	if len(order) == 0 {
		order = pooledOrder
	}

	var selected []string
	for _, name := range order {
		name = strings.ToLower(strings.TrimSpace(name))
		if !present[name] {
			continue
		}
		selected = append(selected, name)
		if !allowMultiple {
			break
		}
	}
	return selected
}
