package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AppendHistory records a job lifecycle event.
func (s *Store) AppendHistory(ctx context.Context, jobID, event, detail string) error {
	ctx = ensureContext(ctx)
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO job_history (job_id, event, detail, created_at) VALUES (?, ?, ?, ?)`,
		jobID,
		event,
		nullableString(detail),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// History returns a job's events, oldest first.
func (s *Store) History(ctx context.Context, jobID string, limit int) ([]*HistoryEntry, error) {
	ctx = ensureContext(ctx)
	query := `SELECT id, job_id, event, detail, created_at FROM job_history WHERE job_id = ? ORDER BY id`
	args := []any{jobID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryHistory(ctx, query, args...)
}

// RecentHistory returns the latest events across all jobs, newest first.
func (s *Store) RecentHistory(ctx context.Context, limit int) ([]*HistoryEntry, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 50
	}
	return s.queryHistory(ctx, `SELECT id, job_id, event, detail, created_at FROM job_history ORDER BY id DESC LIMIT ?`, limit)
}

func (s *Store) queryHistory(ctx context.Context, query string, args ...any) ([]*HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []*HistoryEntry
	for rows.Next() {
		var (
			entry      HistoryEntry
			detail     sql.NullString
			createdRaw sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.JobID, &entry.Event, &detail, &createdRaw); err != nil {
			return nil, err
		}
		entry.Detail = detail.String
		if created, err := parseTimeString(createdRaw.String); err == nil {
			entry.CreatedAt = created
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// CreateSchedule persists a cron trigger with its options and targets.
func (s *Store) CreateSchedule(ctx context.Context, schedule *Schedule) (*Schedule, error) {
	if schedule == nil {
		return nil, errors.New("schedule is nil")
	}
	if schedule.Name == "" || schedule.CronExpr == "" {
		return nil, errors.New("schedule requires name and cron expression")
	}
	ctx = ensureContext(ctx)
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin schedule tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO schedules (name, cron_expr, enabled, badge_types, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		schedule.Name,
		schedule.CronExpr,
		boolToInt(schedule.Enabled),
		encodeList(schedule.BadgeTypes),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for name, value := range schedule.Options {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO schedule_options (schedule_id, name, value) VALUES (?, ?, ?)`,
			id, name, nullableString(value),
		); err != nil {
			return nil, fmt.Errorf("insert schedule option: %w", err)
		}
	}
	for _, target := range schedule.Targets {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO schedule_targets (schedule_id, library_id) VALUES (?, ?)`,
			id, target,
		); err != nil {
			return nil, fmt.Errorf("insert schedule target: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit schedule: %w", err)
	}
	return s.GetSchedule(ctx, id)
}

// GetSchedule fetches a schedule with options and targets. Returns nil when
// absent.
func (s *Store) GetSchedule(ctx context.Context, id int64) (*Schedule, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, name, cron_expr, enabled, badge_types, created_at, last_run_at, next_run_at
         FROM schedules WHERE id = ?`,
		id,
	)
	schedule, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if err := s.loadScheduleDetail(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

// ListSchedules returns every stored schedule with options and targets.
func (s *Store) ListSchedules(ctx context.Context) ([]*Schedule, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, name, cron_expr, enabled, badge_types, created_at, last_run_at, next_run_at
         FROM schedules ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, schedule := range schedules {
		if err := s.loadScheduleDetail(ctx, schedule); err != nil {
			return nil, err
		}
	}
	return schedules, nil
}

// DeleteSchedule removes a schedule and its options/targets.
func (s *Store) DeleteSchedule(ctx context.Context, id int64) (bool, error) {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete schedule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetScheduleEnabled toggles a schedule.
func (s *Store) SetScheduleEnabled(ctx context.Context, id int64, enabled bool) error {
	ctx = ensureContext(ctx)
	_, err := s.execWithRetry(ctx, `UPDATE schedules SET enabled = ? WHERE id = ?`, boolToInt(enabled), id)
	if err != nil {
		return fmt.Errorf("set schedule enabled: %w", err)
	}
	return nil
}

// MarkScheduleRun records an execution and the next planned run.
func (s *Store) MarkScheduleRun(ctx context.Context, id int64, ranAt, nextRun time.Time) error {
	ctx = ensureContext(ctx)
	var next any
	if !nextRun.IsZero() {
		next = nextRun.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.execWithRetry(
		ctx,
		`UPDATE schedules SET last_run_at = ?, next_run_at = ? WHERE id = ?`,
		ranAt.UTC().Format(time.RFC3339Nano),
		next,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark schedule run: %w", err)
	}
	return nil
}

func (s *Store) loadScheduleDetail(ctx context.Context, schedule *Schedule) error {
	optRows, err := s.db.QueryContext(
		ctx,
		`SELECT name, value FROM schedule_options WHERE schedule_id = ? ORDER BY name`,
		schedule.ID,
	)
	if err != nil {
		return fmt.Errorf("query schedule options: %w", err)
	}
	options := make(map[string]string)
	for optRows.Next() {
		var name string
		var value sql.NullString
		if err := optRows.Scan(&name, &value); err != nil {
			optRows.Close()
			return err
		}
		options[name] = value.String
	}
	optRows.Close()
	if err := optRows.Err(); err != nil {
		return err
	}
	if len(options) > 0 {
		schedule.Options = options
	}

	targetRows, err := s.db.QueryContext(
		ctx,
		`SELECT library_id FROM schedule_targets WHERE schedule_id = ? ORDER BY library_id`,
		schedule.ID,
	)
	if err != nil {
		return fmt.Errorf("query schedule targets: %w", err)
	}
	defer targetRows.Close()
	var targets []string
	for targetRows.Next() {
		var target string
		if err := targetRows.Scan(&target); err != nil {
			return err
		}
		targets = append(targets, target)
	}
	schedule.Targets = targets
	return targetRows.Err()
}

func scanSchedule(scanner interface{ Scan(dest ...any) error }) (*Schedule, error) {
	var (
		id         int64
		name       string
		cronExpr   string
		enabled    int
		badgeTypes sql.NullString
		createdRaw sql.NullString
		lastRunRaw sql.NullString
		nextRunRaw sql.NullString
	)
	if err := scanner.Scan(&id, &name, &cronExpr, &enabled, &badgeTypes, &createdRaw, &lastRunRaw, &nextRunRaw); err != nil {
		return nil, err
	}
	schedule := &Schedule{
		ID:         id,
		Name:       name,
		CronExpr:   cronExpr,
		Enabled:    enabled != 0,
		BadgeTypes: decodeList(badgeTypes.String),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		schedule.CreatedAt = created
	}
	if lastRunRaw.Valid {
		if last, err := parseTimeString(lastRunRaw.String); err == nil {
			schedule.LastRunAt = &last
		}
	}
	if nextRunRaw.Valid {
		if next, err := parseTimeString(nextRunRaw.String); err == nil {
			schedule.NextRunAt = &next
		}
	}
	return schedule, nil
}
