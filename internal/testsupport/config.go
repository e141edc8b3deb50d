package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/jackkerouac/aphrodite-sub000/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Catalog.URL = "http://127.0.0.1:8096"
	cfg.Catalog.APIKey = "test-key"
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.PostersDir = filepath.Join(base, "posters")
	cfg.Paths.AssetsDir = filepath.Join(base, "assets")
	cfg.Paths.FontsDir = filepath.Join(base, "fonts")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Workers.PollIntervalMS = 10
	cfg.Workers.RetryBaseDelayMS = 1
	cfg.Workers.RetryMaxDelayMS = 5

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	return &cfg
}

// WithWorkerCount sets the engine worker pool size on the test config.
func WithWorkerCount(count int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workers.Count = count
	}
}
