package enrich

import (
	"log/slog"
	"strings"

	"github.com/jackkerouac/aphrodite-sub000/internal/cachestore"
	"github.com/jackkerouac/aphrodite-sub000/internal/config"
	"github.com/jackkerouac/aphrodite-sub000/internal/logging"
)

// Registry holds the enabled enrichment sources in registration order. The
// resolver iterates them; adding a source never touches resolver code.
type Registry struct {
	sources []Source
	byName  map[string]Source
}

// NewRegistry builds a registry from explicit sources, keeping order.
func NewRegistry(sources ...Source) *Registry {
	registry := &Registry{byName: make(map[string]Source, len(sources))}
	for _, source := range sources {
		if source == nil {
			continue
		}
		name := strings.ToLower(source.Name())
		if _, dup := registry.byName[name]; dup {
			continue
		}
		registry.byName[name] = source
		registry.sources = append(registry.sources, source)
	}
	return registry
}

// BuildRegistry constructs every source the configuration enables. Sources
// with missing credentials are skipped with a log line rather than failing
// startup; the pipeline degrades to the sources that remain.
func BuildRegistry(cfg *config.Config, cache *cachestore.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	var sources []Source

	if cfg.OMDb.Enabled {
		if client, err := NewOMDb(cfg.OMDb, cache); err != nil {
			logger.Warn("omdb source disabled", logging.FieldSource, SourceOMDb, logging.FieldErrorHint, err.Error())
		} else {
			sources = append(sources, client)
		}
	}
	if cfg.TMDB.Enabled {
		if client, err := NewTMDb(cfg.TMDB, cache); err != nil {
			logger.Warn("tmdb source disabled", logging.FieldSource, SourceTMDb, logging.FieldErrorHint, err.Error())
		} else {
			sources = append(sources, client)
		}
	}
	if cfg.AniDB.Enabled {
		if client, err := NewAniDB(cfg.AniDB, cache); err != nil {
			logger.Warn("anidb source disabled", logging.FieldSource, SourceAniDB, logging.FieldErrorHint, err.Error())
		} else {
			sources = append(sources, client)
		}
	}
	if cfg.MAL.Enabled {
		if client, err := NewMAL(cfg.MAL, cache); err != nil {
			logger.Warn("mal source disabled", logging.FieldSource, SourceMAL, logging.FieldErrorHint, err.Error())
		} else {
			sources = append(sources, client)
		}
	}
	if cfg.MDBList.Enabled {
		if client, err := NewMDBList(cfg.MDBList, cache); err != nil {
			logger.Warn("mdblist source disabled", logging.FieldSource, SourceMDBList, logging.FieldErrorHint, err.Error())
		} else {
			sources = append(sources, client)
		}
	}
	if cfg.Awards.Enabled {
		if source, err := NewAwards(); err != nil {
			logger.Warn("awards source disabled", logging.FieldSource, SourceAwards, logging.FieldErrorHint, err.Error())
		} else {
			sources = append(sources, source)
		}
	}

	return NewRegistry(sources...)
}

// Sources returns the registered sources in order.
func (r *Registry) Sources() []Source {
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Get returns a source by name.
func (r *Registry) Get(name string) (Source, bool) {
	source, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return source, ok
}

// TMDb returns the TMDb client when registered, for poster source discovery.
func (r *Registry) TMDb() (*TMDbClient, bool) {
	source, ok := r.byName[SourceTMDb]
	if !ok {
		return nil, false
	}
	client, ok := source.(*TMDbClient)
	return client, ok
}

// Awards returns the awards source when registered.
func (r *Registry) Awards() (*AwardsSource, bool) {
	source, ok := r.byName[SourceAwards]
	if !ok {
		return nil, false
	}
	awards, ok := source.(*AwardsSource)
	return awards, ok
}
