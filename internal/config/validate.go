package config

import (
	"errors"
	"fmt"
	"strings"
)

var resolutionPreferences = map[string]struct{}{
	"higher":   {},
	"filename": {},
	"stream":   {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateBadges(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if strings.TrimSpace(c.Catalog.URL) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/aphrodite/config.toml"
		}
		return fmt.Errorf("catalog.url is required. Edit %s (create with 'aphrodite config init')", defaultPath)
	}
	if strings.TrimSpace(c.Catalog.APIKey) == "" {
		return errors.New("catalog.api_key is required")
	}
	return ensurePositiveMap(map[string]int{
		"catalog.page_size":        c.Catalog.PageSize,
		"catalog.rate_limit_burst": c.Catalog.RateLimitBurst,
		"catalog.max_in_flight":    c.Catalog.MaxInFlight,
		"catalog.timeout_seconds":  c.Catalog.TimeoutSeconds,
		"catalog.max_image_mb":     c.Catalog.MaxImageMB,
	})
}

func (c *Config) validateBadges() error {
	known := make(map[string]struct{}, len(BadgeTypes))
	for _, badgeType := range BadgeTypes {
		known[badgeType] = struct{}{}
	}
	for _, badgeType := range c.Badges.Types {
		if _, ok := known[badgeType]; !ok {
			return fmt.Errorf("badges.types contains unknown type %q", badgeType)
		}
	}
	if _, ok := resolutionPreferences[c.Badges.ResolutionPreference]; !ok {
		return fmt.Errorf("badges.resolution_preference must be one of higher, filename, stream (got %q)", c.Badges.ResolutionPreference)
	}
	return ensurePositiveMap(map[string]int{
		"badges.max_review_badges":      c.Badges.MaxReviewBadges,
		"badges.series_sample_episodes": c.Badges.SeriesSampleEpisodes,
		"badges.series_sample_timeout":  c.Badges.SeriesSampleTimeout,
	})
}

func (c *Config) validateWorkers() error {
	if c.Workers.Count < 1 || c.Workers.Count > 32 {
		return errors.New("workers.count must be between 1 and 32")
	}
	if err := ensurePositiveMap(map[string]int{
		"workers.item_timeout":        c.Workers.ItemTimeout,
		"workers.retry_attempts":      c.Workers.RetryAttempts,
		"workers.retry_base_delay_ms": c.Workers.RetryBaseDelayMS,
		"workers.retry_max_delay_ms":  c.Workers.RetryMaxDelayMS,
		"workers.cancel_grace_ms":     c.Workers.CancelGraceMS,
		"workers.event_buffer":        c.Workers.EventBuffer,
		"workers.poll_interval_ms":    c.Workers.PollIntervalMS,
	}); err != nil {
		return err
	}
	if c.Workers.RetryMaxDelayMS < c.Workers.RetryBaseDelayMS {
		return errors.New("workers.retry_max_delay_ms must be >= workers.retry_base_delay_ms")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
