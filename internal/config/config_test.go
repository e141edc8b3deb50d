package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	toml "github.com/pelletier/go-toml/v2"
)

func TestLoadMissingFileFailsValidation(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, _, _, err := Load(""); err == nil {
		t.Fatal("expected error when no config file exists")
	} else if !strings.Contains(err.Error(), "catalog.url") {
		t.Fatalf("expected catalog.url error, got %v", err)
	}
}

func TestLoadAppliesOverridesAndDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[paths]
state_dir = "~/aphrodite-state"

[catalog]
url = "http://jellyfin.local:8096/"
api_key = "abc123"

[workers]
count = 2

[badges]
types = ["Audio", "audio", "resolution"]
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true for explicit path")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Catalog.URL != "http://jellyfin.local:8096" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Catalog.URL)
	}
	wantState := filepath.Join(home, "aphrodite-state")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("state dir = %q, want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.PostersDir != filepath.Join(wantState, "posters") {
		t.Fatalf("posters dir should default under state dir, got %q", cfg.Paths.PostersDir)
	}
	if cfg.Workers.Count != 2 {
		t.Fatalf("workers.count = %d, want 2", cfg.Workers.Count)
	}
	if !reflect.DeepEqual(cfg.Badges.Types, []string{"audio", "resolution"}) {
		t.Fatalf("badge types not deduped/lowered: %v", cfg.Badges.Types)
	}
	if cfg.OMDb.BaseURL != defaultOMDbBaseURL {
		t.Fatalf("omdb base URL default missing, got %q", cfg.OMDb.BaseURL)
	}
	if cfg.AniDB.MinIntervalSeconds < 1 {
		t.Fatalf("anidb min interval must be at least one second, got %d", cfg.AniDB.MinIntervalSeconds)
	}
	if cfg.Workers.ItemTimeout != defaultItemTimeout {
		t.Fatalf("item timeout default missing, got %d", cfg.Workers.ItemTimeout)
	}
}

func TestCreateSampleParses(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Catalog.URL != "" {
		t.Fatalf("sample must not ship a catalog URL, got %q", cfg.Catalog.URL)
	}
	if !cfg.Scheduler.Enabled {
		t.Fatal("sample should leave the scheduler enabled")
	}

	cfg.Catalog.URL = "http://localhost:8096"
	cfg.Catalog.APIKey = "key"
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample plus catalog settings should validate: %v", err)
	}
}

func TestValidateFailures(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	base := func(t *testing.T) *Config {
		cfg := Default()
		cfg.Catalog.URL = "http://localhost:8096"
		cfg.Catalog.APIKey = "key"
		if err := cfg.normalize(); err != nil {
			t.Fatalf("normalize: %v", err)
		}
		return &cfg
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "missing url",
			mutate:  func(c *Config) { c.Catalog.URL = "" },
			wantSub: "catalog.url",
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.Catalog.APIKey = "" },
			wantSub: "catalog.api_key",
		},
		{
			name:    "unknown badge type",
			mutate:  func(c *Config) { c.Badges.Types = []string{"audio", "hologram"} },
			wantSub: "unknown type",
		},
		{
			name:    "bad resolution preference",
			mutate:  func(c *Config) { c.Badges.ResolutionPreference = "tallest" },
			wantSub: "resolution_preference",
		},
		{
			name:    "worker count too high",
			mutate:  func(c *Config) { c.Workers.Count = 64 },
			wantSub: "workers.count",
		},
		{
			name:    "retry window inverted",
			mutate:  func(c *Config) { c.Workers.RetryBaseDelayMS = 5000; c.Workers.RetryMaxDelayMS = 1000 },
			wantSub: "retry_max_delay_ms",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantSub: "logging.format",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base(t)
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := Default()
	cfg.Catalog.URL = "http://localhost:8096"
	cfg.Catalog.APIKey = "key"
	cfg.Paths.StateDir = filepath.Join(home, "state")
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.PostersDir, cfg.Paths.AssetsDir, cfg.Paths.FontsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("%s is not a directory", dir)
		}
	}
}
