package config

const (
	defaultStateDir = "~/.local/share/aphrodite"
	defaultLogDir   = "~/.local/share/aphrodite/logs"
	defaultAPIBind  = "127.0.0.1:7788"

	defaultCatalogTag      = "aphrodite-overlay"
	defaultCatalogPageSize = 200
	defaultCatalogRPS      = 10.0
	defaultCatalogBurst    = 20
	defaultCatalogInFlight = 8
	defaultCatalogTimeout  = 30
	defaultMaxImageMB      = 20

	defaultOMDbBaseURL    = "https://www.omdbapi.com"
	defaultTMDBBaseURL    = "https://api.themoviedb.org/3"
	defaultTMDBLanguage   = "en-US"
	defaultAniDBBaseURL   = "http://api.anidb.net:9001/httpapi"
	defaultAniDBClient    = "aphrodite"
	defaultAniDBClientVer = 1
	defaultAniDBInterval  = 2
	defaultMALBaseURL     = "https://api.myanimelist.net/v2"
	defaultMDBListBaseURL = "https://api.mdblist.com"

	defaultSourceRPS     = 2.0
	defaultSourceBurst   = 4
	defaultSourceTimeout = 10

	defaultOMDbTTLDays    = 7
	defaultTMDBTTLDays    = 7
	defaultAniDBTTLDays   = 30
	defaultMALTTLDays     = 14
	defaultMDBListTTLDays = 7

	defaultMaxReviewBadges      = 3
	defaultResolutionPreference = "higher"
	defaultSeriesSampleEpisodes = 5
	defaultSeriesSampleTimeout  = 30

	defaultWorkerCount      = 4
	defaultItemTimeout      = 60
	defaultRetryAttempts    = 3
	defaultRetryBaseDelayMS = 500
	defaultRetryMaxDelayMS  = 15000
	defaultCancelGraceMS    = 2000
	defaultEventBuffer      = 256
	defaultPollIntervalMS   = 500

	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60

	defaultNotifyTimeout = 10
)

// BadgeTypes is the ordered list of badge types the pipeline can apply.
var BadgeTypes = []string{"audio", "resolution", "review", "awards"}

// ReviewSourceNames is the default priority order for review badges.
var ReviewSourceNames = []string{"imdb", "rotten_tomatoes", "metacritic", "tmdb", "mdblist", "anidb", "mal"}

// AwardsSourceNames is the default priority order for awards matching.
var AwardsSourceNames = []string{"crunchyroll"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Catalog: Catalog{
			Tag:            defaultCatalogTag,
			PageSize:       defaultCatalogPageSize,
			RateLimitRPS:   defaultCatalogRPS,
			RateLimitBurst: defaultCatalogBurst,
			MaxInFlight:    defaultCatalogInFlight,
			TimeoutSeconds: defaultCatalogTimeout,
			MaxImageMB:     defaultMaxImageMB,
		},
		OMDb: OMDb{
			Enabled:        true,
			BaseURL:        defaultOMDbBaseURL,
			RateLimitRPS:   defaultSourceRPS,
			RateLimitBurst: defaultSourceBurst,
			CacheTTLDays:   defaultOMDbTTLDays,
			TimeoutSeconds: defaultSourceTimeout,
		},
		TMDB: TMDB{
			Enabled:        true,
			BaseURL:        defaultTMDBBaseURL,
			Language:       defaultTMDBLanguage,
			RateLimitRPS:   defaultSourceRPS,
			RateLimitBurst: defaultSourceBurst,
			CacheTTLDays:   defaultTMDBTTLDays,
			TimeoutSeconds: defaultSourceTimeout,
		},
		AniDB: AniDB{
			BaseURL:            defaultAniDBBaseURL,
			ClientName:         defaultAniDBClient,
			ClientVersion:      defaultAniDBClientVer,
			MinIntervalSeconds: defaultAniDBInterval,
			RateLimitRPS:       0.5,
			RateLimitBurst:     1,
			CacheTTLDays:       defaultAniDBTTLDays,
			TimeoutSeconds:     defaultSourceTimeout,
		},
		MAL: MAL{
			BaseURL:        defaultMALBaseURL,
			RateLimitRPS:   defaultSourceRPS,
			RateLimitBurst: defaultSourceBurst,
			CacheTTLDays:   defaultMALTTLDays,
			TimeoutSeconds: defaultSourceTimeout,
		},
		MDBList: MDBList{
			BaseURL:        defaultMDBListBaseURL,
			RateLimitRPS:   defaultSourceRPS,
			RateLimitBurst: defaultSourceBurst,
			CacheTTLDays:   defaultMDBListTTLDays,
			TimeoutSeconds: defaultSourceTimeout,
		},
		Awards: Awards{
			Enabled:     true,
			Sources:     append([]string(nil), AwardsSourceNames...),
			ColorScheme: "black",
		},
		Badges: Badges{
			Types:                append([]string(nil), BadgeTypes...),
			ReviewSources:        append([]string(nil), ReviewSourceNames...),
			MaxReviewBadges:      defaultMaxReviewBadges,
			ResolutionPreference: defaultResolutionPreference,
			SeriesSampleEpisodes: defaultSeriesSampleEpisodes,
			SeriesSampleTimeout:  defaultSeriesSampleTimeout,
			SeriesHDRAny:         true,
		},
		Workers: Workers{
			Count:            defaultWorkerCount,
			ItemTimeout:      defaultItemTimeout,
			RetryAttempts:    defaultRetryAttempts,
			RetryBaseDelayMS: defaultRetryBaseDelayMS,
			RetryMaxDelayMS:  defaultRetryMaxDelayMS,
			CancelGraceMS:    defaultCancelGraceMS,
			EventBuffer:      defaultEventBuffer,
			PollIntervalMS:   defaultPollIntervalMS,
		},
		Scheduler: Scheduler{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			JobComplete:    true,
			JobFailed:      true,
			Revert:         false,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
