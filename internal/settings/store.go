package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
	_ "modernc.org/sqlite"

	"github.com/jackkerouac/aphrodite-sub000/internal/config"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    type TEXT NOT NULL,
    category TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_settings_category ON settings(category);

CREATE TABLE IF NOT EXISTS api_keys (
    service TEXT NOT NULL,
    name TEXT NOT NULL,
    value TEXT NOT NULL,
    grp TEXT,
    PRIMARY KEY (service, name)
);

CREATE TABLE IF NOT EXISTS badge_settings (
    badge_type TEXT NOT NULL,
    name TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (badge_type, name)
);

CREATE TABLE IF NOT EXISTS review_sources (
    name TEXT PRIMARY KEY,
    enabled INTEGER NOT NULL DEFAULT 1,
    priority INTEGER NOT NULL DEFAULT 0,
    conditions TEXT
);

CREATE TABLE IF NOT EXISTS settings_version (
    version INTEGER NOT NULL
);
`

// ValueType tags how a setting's text value should be interpreted. Types are
// declared, never inferred; reading with the wrong type is config_invalid.
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeInteger ValueType = "integer"
	TypeFloat   ValueType = "float"
	TypeBoolean ValueType = "boolean"
	TypeJSON    ValueType = "json"
)

// ParseValueType converts a string into a known ValueType.
func ParseValueType(value string) (ValueType, bool) {
	switch ValueType(strings.ToLower(strings.TrimSpace(value))) {
	case TypeString:
		return TypeString, true
	case TypeInteger:
		return TypeInteger, true
	case TypeFloat:
		return TypeFloat, true
	case TypeBoolean:
		return TypeBoolean, true
	case TypeJSON:
		return TypeJSON, true
	default:
		return "", false
	}
}

// Setting is one stored key-value row.
type Setting struct {
	Key      string
	Value    string
	Type     ValueType
	Category string
}

// ReviewSource describes one enabled rating source and its badge priority.
type ReviewSource struct {
	Name       string
	Enabled    bool
	Priority   int
	Conditions string
}

// Store provides serialized-writer access to the settings database.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open connects to the settings database under the configured state directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.StateDir, "settings.db"))
}

// OpenPath connects to the settings database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
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
		return nil, fmt.Errorf("create settings schema: %w", err)
	}
	store := &Store{db: db}
	if err := store.ensureVersionRow(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureVersionRow(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM settings_version`).Scan(&count); err != nil {
		return fmt.Errorf("read settings version: %w", err)
	}
	if count == 0 {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO settings_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("seed settings version: %w", err)
		}
	}
	return nil
}

// Version returns the settings revision counter, bumped on every write.
func (s *Store) Version(ctx context.Context) (int64, error) {
	var version int64
	if err := s.db.QueryRowContext(ctx, `SELECT version FROM settings_version LIMIT 1`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read settings version: %w", err)
	}
	return version, nil
}

// Set writes one setting inside a serialized transaction and bumps the
// revision counter.
func (s *Store) Set(ctx context.Context, category, key, value string, typ ValueType) error {
	if _, ok := ParseValueType(string(typ)); !ok {
		return services.Wrap(services.ErrConfigInvalid, "settings", "set", fmt.Sprintf("unknown value type %q", typ), nil)
	}
	key = strings.TrimSpace(key)
	category = strings.TrimSpace(category)
	if key == "" || category == "" {
		return services.Wrap(services.ErrConfigInvalid, "settings", "set", "key and category required", nil)
	}
	if typ == TypeJSON && !json.Valid([]byte(value)) {
		return services.Wrap(services.ErrConfigInvalid, "settings", "set", fmt.Sprintf("setting %q is not valid JSON", key), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value, type, category, updated_at)
             VALUES (?, ?, ?, ?, ?)
             ON CONFLICT(key) DO UPDATE SET
                 value = excluded.value,
                 type = excluded.type,
                 category = excluded.category,
                 updated_at = excluded.updated_at`,
			key, value, typ, category, time.Now().UTC().Format(time.RFC3339Nano),
		)
		return err
	})
}

// Get returns the raw setting row. Missing keys report config_missing.
func (s *Store) Get(ctx context.Context, key string) (*Setting, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, value, type, category FROM settings WHERE key = ?`, strings.TrimSpace(key))
	var setting Setting
	var typRaw string
	if err := row.Scan(&setting.Key, &setting.Value, &typRaw, &setting.Category); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.Wrap(services.ErrConfigMissing, "settings", "get", fmt.Sprintf("setting %q", key), nil)
		}
		return nil, fmt.Errorf("read setting: %w", err)
	}
	setting.Type = ValueType(typRaw)
	return &setting, nil
}

// String reads a setting declared as string.
func (s *Store) String(ctx context.Context, key string) (string, error) {
	setting, err := s.typed(ctx, key, TypeString)
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// Int reads a setting declared as integer.
func (s *Store) Int(ctx context.Context, key string) (int, error) {
	setting, err := s.typed(ctx, key, TypeInteger)
	if err != nil {
		return 0, err
	}
	value, err := cast.ToIntE(setting.Value)
	if err != nil {
		return 0, services.Wrap(services.ErrConfigInvalid, "settings", "get", fmt.Sprintf("setting %q: %q is not an integer", key, setting.Value), nil)
	}
	return value, nil
}

// Float reads a setting declared as float.
func (s *Store) Float(ctx context.Context, key string) (float64, error) {
	setting, err := s.typed(ctx, key, TypeFloat)
	if err != nil {
		return 0, err
	}
	value, err := cast.ToFloat64E(setting.Value)
	if err != nil {
		return 0, services.Wrap(services.ErrConfigInvalid, "settings", "get", fmt.Sprintf("setting %q: %q is not a float", key, setting.Value), nil)
	}
	return value, nil
}

// Bool reads a setting declared as boolean.
func (s *Store) Bool(ctx context.Context, key string) (bool, error) {
	setting, err := s.typed(ctx, key, TypeBoolean)
	if err != nil {
		return false, err
	}
	value, err := cast.ToBoolE(setting.Value)
	if err != nil {
		return false, services.Wrap(services.ErrConfigInvalid, "settings", "get", fmt.Sprintf("setting %q: %q is not a boolean", key, setting.Value), nil)
	}
	return value, nil
}

// JSON decodes a setting declared as json into target.
func (s *Store) JSON(ctx context.Context, key string, target any) error {
	setting, err := s.typed(ctx, key, TypeJSON)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(setting.Value), target); err != nil {
		return services.Wrap(services.ErrConfigInvalid, "settings", "get", fmt.Sprintf("setting %q: decode json", key), err)
	}
	return nil
}

func (s *Store) typed(ctx context.Context, key string, expected ValueType) (*Setting, error) {
	setting, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if setting.Type != expected {
		return nil, services.Wrap(services.ErrConfigInvalid, "settings", "get",
			fmt.Sprintf("setting %q declared %s, read as %s", key, setting.Type, expected), nil)
	}
	return setting, nil
}

// Category returns all settings within a category, keyed by setting name.
func (s *Store) Category(ctx context.Context, category string) (map[string]Setting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, type, category FROM settings WHERE category = ? ORDER BY key`,
		strings.TrimSpace(category))
	if err != nil {
		return nil, fmt.Errorf("read category: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Setting)
	for rows.Next() {
		var setting Setting
		var typRaw string
		if err := rows.Scan(&setting.Key, &setting.Value, &typRaw, &setting.Category); err != nil {
			return nil, err
		}
		setting.Type = ValueType(typRaw)
		out[setting.Key] = setting
	}
	return out, rows.Err()
}

// SetCategory writes multiple settings of one category atomically.
func (s *Store) SetCategory(ctx context.Context, category string, values map[string]Setting) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return services.Wrap(services.ErrConfigInvalid, "settings", "set_category", "category required", nil)
	}
	for key, setting := range values {
		if _, ok := ParseValueType(string(setting.Type)); !ok {
			return services.Wrap(services.ErrConfigInvalid, "settings", "set_category",
				fmt.Sprintf("setting %q: unknown value type %q", key, setting.Type), nil)
		}
		if setting.Type == TypeJSON && !json.Valid([]byte(setting.Value)) {
			return services.Wrap(services.ErrConfigInvalid, "settings", "set_category",
				fmt.Sprintf("setting %q is not valid JSON", key), nil)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		for key, setting := range values {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO settings (key, value, type, category, updated_at)
                 VALUES (?, ?, ?, ?, ?)
                 ON CONFLICT(key) DO UPDATE SET
                     value = excluded.value,
                     type = excluded.type,
                     category = excluded.category,
                     updated_at = excluded.updated_at`,
				key, setting.Value, setting.Type, category, now,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// inTx runs fn in a transaction that also bumps the settings version. Callers
// must hold s.mu.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE settings_version SET version = version + 1`); err != nil {
		return fmt.Errorf("bump settings version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return nil
}
