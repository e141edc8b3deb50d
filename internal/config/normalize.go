package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCatalog()
	c.normalizeSources()
	c.normalizeBadges()
	c.normalizeWorkers()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.PostersDir) == "" {
		c.Paths.PostersDir = filepath.Join(c.Paths.StateDir, "posters")
	}
	if c.Paths.PostersDir, err = expandPath(c.Paths.PostersDir); err != nil {
		return fmt.Errorf("paths.posters_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AssetsDir) == "" {
		c.Paths.AssetsDir = filepath.Join(c.Paths.StateDir, "assets")
	}
	if c.Paths.AssetsDir, err = expandPath(c.Paths.AssetsDir); err != nil {
		return fmt.Errorf("paths.assets_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.FontsDir) == "" {
		c.Paths.FontsDir = filepath.Join(c.Paths.StateDir, "fonts")
	}
	if c.Paths.FontsDir, err = expandPath(c.Paths.FontsDir); err != nil {
		return fmt.Errorf("paths.fonts_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeCatalog() {
	c.Catalog.URL = strings.TrimRight(strings.TrimSpace(c.Catalog.URL), "/")
	c.Catalog.APIKey = strings.TrimSpace(c.Catalog.APIKey)
	c.Catalog.UserID = strings.TrimSpace(c.Catalog.UserID)
	c.Catalog.Tag = strings.TrimSpace(c.Catalog.Tag)
	if c.Catalog.Tag == "" {
		c.Catalog.Tag = defaultCatalogTag
	}
	if c.Catalog.PageSize <= 0 {
		c.Catalog.PageSize = defaultCatalogPageSize
	}
	if c.Catalog.RateLimitRPS <= 0 {
		c.Catalog.RateLimitRPS = defaultCatalogRPS
	}
	if c.Catalog.RateLimitBurst <= 0 {
		c.Catalog.RateLimitBurst = defaultCatalogBurst
	}
	if c.Catalog.MaxInFlight <= 0 {
		c.Catalog.MaxInFlight = defaultCatalogInFlight
	}
	if c.Catalog.TimeoutSeconds <= 0 {
		c.Catalog.TimeoutSeconds = defaultCatalogTimeout
	}
	if c.Catalog.MaxImageMB <= 0 {
		c.Catalog.MaxImageMB = defaultMaxImageMB
	}
}

func (c *Config) normalizeSources() {
	c.OMDb.APIKey = strings.TrimSpace(c.OMDb.APIKey)
	c.OMDb.BaseURL = defaultIfBlank(c.OMDb.BaseURL, defaultOMDbBaseURL)
	normalizeLimits(&c.OMDb.RateLimitRPS, &c.OMDb.RateLimitBurst, &c.OMDb.CacheTTLDays, &c.OMDb.TimeoutSeconds, defaultOMDbTTLDays)

	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	c.TMDB.BaseURL = defaultIfBlank(c.TMDB.BaseURL, defaultTMDBBaseURL)
	c.TMDB.Language = defaultIfBlank(c.TMDB.Language, defaultTMDBLanguage)
	c.TMDB.Region = strings.TrimSpace(c.TMDB.Region)
	normalizeLimits(&c.TMDB.RateLimitRPS, &c.TMDB.RateLimitBurst, &c.TMDB.CacheTTLDays, &c.TMDB.TimeoutSeconds, defaultTMDBTTLDays)

	c.AniDB.BaseURL = defaultIfBlank(c.AniDB.BaseURL, defaultAniDBBaseURL)
	c.AniDB.ClientName = defaultIfBlank(c.AniDB.ClientName, defaultAniDBClient)
	if c.AniDB.ClientVersion <= 0 {
		c.AniDB.ClientVersion = defaultAniDBClientVer
	}
	if c.AniDB.MinIntervalSeconds < 1 {
		// The AniDB API bans clients that poll faster than once per second.
		c.AniDB.MinIntervalSeconds = 1
	}
	normalizeLimits(&c.AniDB.RateLimitRPS, &c.AniDB.RateLimitBurst, &c.AniDB.CacheTTLDays, &c.AniDB.TimeoutSeconds, defaultAniDBTTLDays)

	c.MAL.ClientID = strings.TrimSpace(c.MAL.ClientID)
	c.MAL.BaseURL = defaultIfBlank(c.MAL.BaseURL, defaultMALBaseURL)
	normalizeLimits(&c.MAL.RateLimitRPS, &c.MAL.RateLimitBurst, &c.MAL.CacheTTLDays, &c.MAL.TimeoutSeconds, defaultMALTTLDays)

	c.MDBList.APIKey = strings.TrimSpace(c.MDBList.APIKey)
	c.MDBList.BaseURL = defaultIfBlank(c.MDBList.BaseURL, defaultMDBListBaseURL)
	normalizeLimits(&c.MDBList.RateLimitRPS, &c.MDBList.RateLimitBurst, &c.MDBList.CacheTTLDays, &c.MDBList.TimeoutSeconds, defaultMDBListTTLDays)

	if len(c.Awards.Sources) == 0 {
		c.Awards.Sources = append([]string(nil), AwardsSourceNames...)
	} else {
		c.Awards.Sources = dedupeLower(c.Awards.Sources)
	}
	c.Awards.ColorScheme = strings.ToLower(defaultIfBlank(c.Awards.ColorScheme, "black"))
}

func (c *Config) normalizeBadges() {
	if len(c.Badges.Types) == 0 {
		c.Badges.Types = append([]string(nil), BadgeTypes...)
	} else {
		c.Badges.Types = dedupeLower(c.Badges.Types)
	}
	if len(c.Badges.ReviewSources) == 0 {
		c.Badges.ReviewSources = append([]string(nil), ReviewSourceNames...)
	} else {
		c.Badges.ReviewSources = dedupeLower(c.Badges.ReviewSources)
	}
	if c.Badges.MaxReviewBadges <= 0 {
		c.Badges.MaxReviewBadges = defaultMaxReviewBadges
	}
	c.Badges.ResolutionPreference = strings.ToLower(strings.TrimSpace(c.Badges.ResolutionPreference))
	if c.Badges.ResolutionPreference == "" {
		c.Badges.ResolutionPreference = defaultResolutionPreference
	}
	if c.Badges.SeriesSampleEpisodes <= 0 {
		c.Badges.SeriesSampleEpisodes = defaultSeriesSampleEpisodes
	}
	if c.Badges.SeriesSampleTimeout <= 0 {
		c.Badges.SeriesSampleTimeout = defaultSeriesSampleTimeout
	}
}

func (c *Config) normalizeWorkers() {
	if c.Workers.Count <= 0 {
		c.Workers.Count = defaultWorkerCount
	}
	if c.Workers.ItemTimeout <= 0 {
		c.Workers.ItemTimeout = defaultItemTimeout
	}
	if c.Workers.RetryAttempts <= 0 {
		c.Workers.RetryAttempts = defaultRetryAttempts
	}
	if c.Workers.RetryBaseDelayMS <= 0 {
		c.Workers.RetryBaseDelayMS = defaultRetryBaseDelayMS
	}
	if c.Workers.RetryMaxDelayMS <= 0 {
		c.Workers.RetryMaxDelayMS = defaultRetryMaxDelayMS
	}
	if c.Workers.CancelGraceMS <= 0 {
		c.Workers.CancelGraceMS = defaultCancelGraceMS
	}
	if c.Workers.EventBuffer <= 0 {
		c.Workers.EventBuffer = defaultEventBuffer
	}
	if c.Workers.PollIntervalMS <= 0 {
		c.Workers.PollIntervalMS = defaultPollIntervalMS
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}

func normalizeLimits(rps *float64, burst, ttlDays, timeout *int, defaultTTL int) {
	if *rps <= 0 {
		*rps = defaultSourceRPS
	}
	if *burst <= 0 {
		*burst = defaultSourceBurst
	}
	if *ttlDays <= 0 {
		*ttlDays = defaultTTL
	}
	if *timeout <= 0 {
		*timeout = defaultSourceTimeout
	}
}

func defaultIfBlank(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func dedupeLower(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
