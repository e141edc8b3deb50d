package cachestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jackkerouac/aphrodite-sub000/internal/config"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS source_cache (
    source TEXT NOT NULL,
    key TEXT NOT NULL,
    payload BLOB NOT NULL,
    fetched_at TEXT NOT NULL,
    expires_at TEXT NOT NULL,
    PRIMARY KEY (source, key)
);
CREATE INDEX IF NOT EXISTS idx_source_cache_expiry ON source_cache(expires_at);
`

// Store is a SQLite-backed response cache keyed by (source, logical key).
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects to the cache database under the configured state directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.StateDir, "cache.db"))
}

// OpenPath connects to the cache database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the cached payload for the key. Expired or missing entries
// report ok=false; consumers must treat both as a miss.
func (s *Store) Get(ctx context.Context, source, key string) ([]byte, bool, error) {
	source, key, err := normalizeKey(source, key)
	if err != nil {
		return nil, false, err
	}
	var payload []byte
	var expiresRaw string
	row := s.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM source_cache WHERE source = ? AND key = ?`,
		source, key,
	)
	if err := row.Scan(&payload, &expiresRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	expires, err := time.Parse(time.RFC3339Nano, expiresRaw)
	if err != nil || !s.now().Before(expires) {
		return nil, false, nil
	}
	return payload, true, nil
}

// Put upserts a cache entry with the given TTL. Last writer wins; a zero or
// negative TTL stores nothing.
func (s *Store) Put(ctx context.Context, source, key string, payload []byte, ttl time.Duration) error {
	source, key, err := normalizeKey(source, key)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}
	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO source_cache (source, key, payload, fetched_at, expires_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(source, key) DO UPDATE SET
             payload = excluded.payload,
             fetched_at = excluded.fetched_at,
             expires_at = excluded.expires_at`,
		source, key, payload,
		now.Format(time.RFC3339Nano),
		now.Add(ttl).Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Invalidate removes one entry, typically after a source reports stale data.
func (s *Store) Invalidate(ctx context.Context, source, key string) error {
	source, key, err := normalizeKey(source, key)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM source_cache WHERE source = ? AND key = ?`, source, key,
	); err != nil {
		return fmt.Errorf("invalidate cache entry: %w", err)
	}
	return nil
}

// Sweep deletes expired rows and reports how many were removed. The engine
// calls this opportunistically; correctness never depends on it.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM source_cache WHERE expires_at <= ?`,
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("sweep cache: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns entry counts per source for diagnostics.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source, COUNT(1) FROM source_cache GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, err
		}
		stats[source] = count
	}
	return stats, rows.Err()
}

func normalizeKey(source, key string) (string, string, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	key = strings.TrimSpace(key)
	if source == "" {
		return "", "", errors.New("cache source required")
	}
	if key == "" {
		return "", "", errors.New("cache key required")
	}
	return source, key, nil
}
