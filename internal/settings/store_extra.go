package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SetAPIKey stores or replaces one credential for an external service.
func (s *Store) SetAPIKey(ctx context.Context, service, name, value, group string) error {
	service = strings.ToLower(strings.TrimSpace(service))
	name = strings.TrimSpace(name)
	if service == "" || name == "" {
		return errors.New("api key service and name required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO api_keys (service, name, value, grp)
             VALUES (?, ?, ?, ?)
             ON CONFLICT(service, name) DO UPDATE SET
                 value = excluded.value,
                 grp = excluded.grp`,
			service, name, value, nullable(group),
		)
		return err
	})
}

// APIKey returns one credential value. Missing keys report ok=false.
func (s *Store) APIKey(ctx context.Context, service, name string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM api_keys WHERE service = ? AND name = ?`,
		strings.ToLower(strings.TrimSpace(service)), strings.TrimSpace(name),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read api key: %w", err)
	}
	return value, true, nil
}

// APIKeys returns every credential stored for a service, keyed by name.
func (s *Store) APIKeys(ctx context.Context, service string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM api_keys WHERE service = ? ORDER BY name`,
		strings.ToLower(strings.TrimSpace(service)))
	if err != nil {
		return nil, fmt.Errorf("read api keys: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}

// SetBadgeSetting stores one style value for a badge type.
func (s *Store) SetBadgeSetting(ctx context.Context, badgeType, name, value string) error {
	badgeType = strings.ToLower(strings.TrimSpace(badgeType))
	name = strings.TrimSpace(name)
	if badgeType == "" || name == "" {
		return errors.New("badge setting type and name required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO badge_settings (badge_type, name, value)
             VALUES (?, ?, ?)
             ON CONFLICT(badge_type, name) DO UPDATE SET value = excluded.value`,
			badgeType, name, value,
		)
		return err
	})
}

// BadgeSettings returns every stored style value for a badge type.
func (s *Store) BadgeSettings(ctx context.Context, badgeType string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM badge_settings WHERE badge_type = ? ORDER BY name`,
		strings.ToLower(strings.TrimSpace(badgeType)))
	if err != nil {
		return nil, fmt.Errorf("read badge settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}

// UpsertReviewSource stores a review source's enablement and priority.
func (s *Store) UpsertReviewSource(ctx context.Context, source ReviewSource) error {
	name := strings.ToLower(strings.TrimSpace(source.Name))
	if name == "" {
		return errors.New("review source name required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO review_sources (name, enabled, priority, conditions)
             VALUES (?, ?, ?, ?)
             ON CONFLICT(name) DO UPDATE SET
                 enabled = excluded.enabled,
                 priority = excluded.priority,
                 conditions = excluded.conditions`,
			name, boolToInt(source.Enabled), source.Priority, nullable(source.Conditions),
		)
		return err
	})
}

// ReviewSources returns all review sources ordered by ascending priority.
func (s *Store) ReviewSources(ctx context.Context) ([]ReviewSource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, enabled, priority, conditions FROM review_sources ORDER BY priority, name`)
	if err != nil {
		return nil, fmt.Errorf("read review sources: %w", err)
	}
	defer rows.Close()

	var out []ReviewSource
	for rows.Next() {
		var source ReviewSource
		var enabled int
		var conditions sql.NullString
		if err := rows.Scan(&source.Name, &enabled, &source.Priority, &conditions); err != nil {
			return nil, err
		}
		source.Enabled = enabled != 0
		source.Conditions = conditions.String
		out = append(out, source)
	}
	return out, rows.Err()
}

func nullable(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
