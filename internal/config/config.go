package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir   string `toml:"state_dir"`
	PostersDir string `toml:"posters_dir"`
	AssetsDir  string `toml:"assets_dir"`
	FontsDir   string `toml:"fonts_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Catalog contains configuration for the upstream media server.
type Catalog struct {
	URL            string  `toml:"url"`
	APIKey         string  `toml:"api_key"`
	UserID         string  `toml:"user_id"`
	Tag            string  `toml:"tag"`
	PageSize       int     `toml:"page_size"`
	RateLimitRPS   float64 `toml:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst"`
	MaxInFlight    int     `toml:"max_in_flight"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxImageMB     int     `toml:"max_image_mb"`
}

// OMDb contains configuration for the OMDb ratings API.
type OMDb struct {
	Enabled        bool    `toml:"enabled"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	RateLimitRPS   float64 `toml:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst"`
	CacheTTLDays   int     `toml:"cache_ttl_days"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	Enabled        bool    `toml:"enabled"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Language       string  `toml:"language"`
	Region         string  `toml:"region"`
	RateLimitRPS   float64 `toml:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst"`
	CacheTTLDays   int     `toml:"cache_ttl_days"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// AniDB contains configuration for the AniDB HTTP API. AniDB enforces a hard
// minimum interval between requests on top of the token bucket.
type AniDB struct {
	Enabled            bool    `toml:"enabled"`
	BaseURL            string  `toml:"base_url"`
	ClientName         string  `toml:"client_name"`
	ClientVersion      int     `toml:"client_version"`
	MinIntervalSeconds int     `toml:"min_interval_seconds"`
	RateLimitRPS       float64 `toml:"rate_limit_rps"`
	RateLimitBurst     int     `toml:"rate_limit_burst"`
	CacheTTLDays       int     `toml:"cache_ttl_days"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`
}

// MAL contains configuration for the MyAnimeList API.
type MAL struct {
	Enabled        bool    `toml:"enabled"`
	ClientID       string  `toml:"client_id"`
	BaseURL        string  `toml:"base_url"`
	RateLimitRPS   float64 `toml:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst"`
	CacheTTLDays   int     `toml:"cache_ttl_days"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// MDBList contains configuration for the MDBList aggregate ratings API.
type MDBList struct {
	Enabled        bool    `toml:"enabled"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	RateLimitRPS   float64 `toml:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst"`
	CacheTTLDays   int     `toml:"cache_ttl_days"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Awards contains configuration for awards badge matching.
type Awards struct {
	Enabled       bool     `toml:"enabled"`
	Sources       []string `toml:"sources"`
	AllowMultiple bool     `toml:"allow_multiple"`
	ColorScheme   string   `toml:"color_scheme"`
}

// Badges contains pipeline-level badge selection policy. Per-type visual
// styles live in the settings store.
type Badges struct {
	Types                []string `toml:"types"`
	ReviewSources        []string `toml:"review_sources"`
	MaxReviewBadges      int      `toml:"max_review_badges"`
	ResolutionPreference string   `toml:"resolution_preference"`
	SeriesSampleEpisodes int      `toml:"series_sample_episodes"`
	SeriesSampleTimeout  int      `toml:"series_sample_timeout"`
	SeriesHDRAny         bool     `toml:"series_hdr_any"`
}

// Workers contains configuration for the job engine worker pool.
type Workers struct {
	Count            int `toml:"count"`
	ItemTimeout      int `toml:"item_timeout"`
	RetryAttempts    int `toml:"retry_attempts"`
	RetryBaseDelayMS int `toml:"retry_base_delay_ms"`
	RetryMaxDelayMS  int `toml:"retry_max_delay_ms"`
	CancelGraceMS    int `toml:"cancel_grace_ms"`
	EventBuffer      int `toml:"event_buffer"`
	PollIntervalMS   int `toml:"poll_interval_ms"`
}

// Scheduler contains configuration for stored cron triggers.
type Scheduler struct {
	Enabled bool `toml:"enabled"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobComplete    bool   `toml:"job_complete"`
	JobFailed      bool   `toml:"job_failed"`
	Revert         bool   `toml:"revert"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
	// QuietComponents lists component names (engine, scheduler, api-server)
	// whose logs are capped at warn regardless of the global level.
	QuietComponents []string `toml:"quiet_components"`
}

// Config encapsulates all configuration values for Aphrodite.
//
// Configuration sections by subsystem:
//   - Paths: state/poster/asset/font directories and API bind address
//   - Catalog: upstream media server connection and rate limits
//   - OMDb/TMDB/AniDB/MAL/MDBList: enrichment source credentials and limits
//   - Awards: awards dataset matching policy
//   - Badges: badge selection policy (styles live in the settings store)
//   - Workers: job engine pool sizing, retries, and timeouts
//   - Scheduler: stored cron triggers
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Catalog       Catalog       `toml:"catalog"`
	OMDb          OMDb          `toml:"omdb"`
	TMDB          TMDB          `toml:"tmdb"`
	AniDB         AniDB         `toml:"anidb"`
	MAL           MAL           `toml:"mal"`
	MDBList       MDBList       `toml:"mdblist"`
	Awards        Awards        `toml:"awards"`
	Badges        Badges        `toml:"badges"`
	Workers       Workers       `toml:"workers"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/aphrodite/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/aphrodite/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("aphrodite.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.StateDir,
		c.Paths.PostersDir,
		c.Paths.AssetsDir,
		c.Paths.FontsDir,
		c.Paths.LogDir,
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
