package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const jobColumns = "id, type, status, badge_types, options_json, created_at, started_at, finished_at, progress_total, progress_done, progress_failed, progress_skipped, result_summary, error_message, cancel_requested"

// CreateJob inserts a job plus one work unit per item in a single
// transaction. Duplicate item IDs within one submission collapse to one unit.
func (s *Store) CreateJob(ctx context.Context, typ Type, badgeTypes []string, optionsJSON string, items []NewItem) (*Job, error) {
	ctx = ensureContext(ctx)
	if len(items) == 0 {
		return nil, errors.New("job requires at least one item")
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	jobID := uuid.NewString()

	seen := make(map[string]struct{}, len(items))
	units := make([]NewItem, 0, len(items))
	for _, item := range items {
		if item.ItemID == "" {
			return nil, errors.New("job item requires an item id")
		}
		if _, dup := seen[item.ItemID]; dup {
			continue
		}
		seen[item.ItemID] = struct{}{}
		units = append(units, item)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create job tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO jobs (id, type, status, badge_types, options_json, created_at, progress_total)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		jobID,
		typ,
		StatusQueued,
		encodeList(badgeTypes),
		nullableString(optionsJSON),
		timestamp,
		len(units),
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	for _, unit := range units {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO job_items (job_id, item_id, item_kind, status, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?)`,
			jobID,
			unit.ItemID,
			nullableString(unit.Kind),
			ItemStatusQueued,
			timestamp,
			timestamp,
		); err != nil {
			return nil, fmt.Errorf("insert job item %s: %w", unit.ItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create job: %w", err)
	}
	return s.GetJob(ctx, jobID)
}

// GetJob fetches a job by identifier. Returns nil when absent.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, limit int, statuses ...Status) ([]*Job, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// SetJobStatus transitions a job, stamping started/finished timestamps as the
// status requires. Terminal statuses also record the summary and error.
func (s *Store) SetJobStatus(ctx context.Context, id string, status Status, summary, errorMessage string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var err error
	switch {
	case status == StatusRunning:
		_, err = s.execWithRetry(
			ctx,
			`UPDATE jobs SET status = ?, started_at = COALESCE(started_at, ?) WHERE id = ?`,
			status, now, id,
		)
	case status.IsTerminal():
		_, err = s.execWithRetry(
			ctx,
			`UPDATE jobs SET status = ?, finished_at = ?, result_summary = ?, error_message = ? WHERE id = ?`,
			status, now, nullableString(summary), nullableString(errorMessage), id,
		)
	default:
		_, err = s.execWithRetry(ctx, `UPDATE jobs SET status = ? WHERE id = ?`, status, id)
	}
	if err != nil {
		return fmt.Errorf("set job status: %w", err)
	}
	return nil
}

// RequestCancel flips the cancel flag. It reports whether a not-yet-terminal
// job acknowledged the request; repeated calls are no-ops.
func (s *Store) RequestCancel(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET cancel_requested = 1 WHERE id = ? AND status IN (?, ?) AND cancel_requested = 0`,
		id, StatusQueued, StatusRunning,
	)
	if err != nil {
		return false, fmt.Errorf("request cancel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// CancelRequested reports the job's cancel flag.
func (s *Store) CancelRequested(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)
	var flag int
	err := s.db.QueryRowContext(ctx, `SELECT cancel_requested FROM jobs WHERE id = ?`, id).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return flag != 0, nil
}

// BumpProgress adds a finished item to the job's progress counters using
// compare-and-set so concurrent workers never lose updates.
func (s *Store) BumpProgress(ctx context.Context, id string, status ItemStatus) error {
	ctx = ensureContext(ctx)
	for attempt := 0; attempt < progressCASAttempts; attempt++ {
		var done, failed, skipped int
		err := s.db.QueryRowContext(
			ctx,
			`SELECT progress_done, progress_failed, progress_skipped FROM jobs WHERE id = ?`,
			id,
		).Scan(&done, &failed, &skipped)
		if err != nil {
			return fmt.Errorf("read progress: %w", err)
		}

		newDone, newFailed, newSkipped := done, failed, skipped
		switch status {
		case ItemStatusOK:
			newDone++
		case ItemStatusFailed:
			newFailed++
		case ItemStatusSkipped:
			newSkipped++
		default:
			return fmt.Errorf("progress bump for non-terminal status %q", status)
		}

		res, err := s.execWithRetry(
			ctx,
			`UPDATE jobs SET progress_done = ?, progress_failed = ?, progress_skipped = ?
             WHERE id = ? AND progress_done = ? AND progress_failed = ? AND progress_skipped = ?`,
			newDone, newFailed, newSkipped,
			id, done, failed, skipped,
		)
		if err != nil {
			return fmt.Errorf("bump progress: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected > 0 {
			return nil
		}
	}
	return fmt.Errorf("bump progress: contention on job %s", id)
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued:
			health.Queued += count
		case StatusRunning:
			health.Running += count
		case StatusFailed:
			health.Failed += count
		case StatusSucceeded:
			health.Succeeded += count
		}
	}
	return health, nil
}

// ResetStuckRunning requeues work units abandoned mid-flight, typically after
// an unclean daemon shutdown. Their parent jobs resume where they left off.
func (s *Store) ResetStuckRunning(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE job_items SET status = ?, updated_at = ? WHERE status = ?`,
		ItemStatusQueued,
		time.Now().UTC().Format(time.RFC3339Nano),
		ItemStatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              string
		typeStr         string
		statusStr       string
		badgeTypes      sql.NullString
		optionsJSON     sql.NullString
		createdRaw      sql.NullString
		startedRaw      sql.NullString
		finishedRaw     sql.NullString
		total           int
		done            int
		failed          int
		skipped         int
		resultSummary   sql.NullString
		errorMessage    sql.NullString
		cancelRequested sql.NullInt64
	)

	if err := scanner.Scan(
		&id,
		&typeStr,
		&statusStr,
		&badgeTypes,
		&optionsJSON,
		&createdRaw,
		&startedRaw,
		&finishedRaw,
		&total,
		&done,
		&failed,
		&skipped,
		&resultSummary,
		&errorMessage,
		&cancelRequested,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:            id,
		Type:          Type(typeStr),
		Status:        Status(statusStr),
		BadgeTypes:    decodeList(badgeTypes.String),
		OptionsJSON:   optionsJSON.String,
		Progress:      Progress{Total: total, Done: done, Failed: failed, Skipped: skipped},
		ResultSummary: resultSummary.String,
		ErrorMessage:  errorMessage.String,
	}
	if cancelRequested.Valid {
		job.CancelRequested = cancelRequested.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &finished
		}
	}
	return job, nil
}
