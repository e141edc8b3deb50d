package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const itemColumns = "id, job_id, item_id, item_kind, status, error_kind, error_message, badges_applied, attempts, duration_ms, created_at, updated_at"

const claimAttempts = 5

// ClaimNextItem atomically claims the next queued work unit and marks it
// running. Jobs are served fair-FIFO: the least recently served job goes
// first, so one large batch cannot starve later submissions. Returns nil when
// nothing is claimable.
func (s *Store) ClaimNextItem(ctx context.Context) (*Item, error) {
	ctx = ensureContext(ctx)
	for attempt := 0; attempt < claimAttempts; attempt++ {
		row := s.db.QueryRowContext(
			ctx,
			`SELECT ji.id, ji.job_id FROM job_items ji
             JOIN jobs j ON j.id = ji.job_id
             WHERE ji.status = ? AND j.cancel_requested = 0 AND j.status IN (?, ?)
             ORDER BY COALESCE(j.last_claimed_at, j.created_at) ASC, j.created_at ASC, ji.id ASC
             LIMIT 1`,
			ItemStatusQueued, StatusQueued, StatusRunning,
		)
		var unitID int64
		var jobID string
		err := row.Scan(&unitID, &jobID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select claimable item: %w", err)
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := s.execWithRetry(
			ctx,
			`UPDATE job_items SET status = ?, attempts = attempts + 1, updated_at = ?
             WHERE id = ? AND status = ?`,
			ItemStatusRunning, now, unitID, ItemStatusQueued,
		)
		if err != nil {
			return nil, fmt.Errorf("claim item: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			// Another worker won the race; try the next candidate.
			continue
		}

		if _, err := s.execWithRetry(
			ctx,
			`UPDATE jobs SET last_claimed_at = ?, status = ?, started_at = COALESCE(started_at, ?)
             WHERE id = ? AND status IN (?, ?)`,
			now, StatusRunning, now, jobID, StatusQueued, StatusRunning,
		); err != nil {
			return nil, fmt.Errorf("mark job running: %w", err)
		}

		return s.getItemByUnitID(ctx, unitID)
	}
	return nil, nil
}

// RequeueItem returns a claimed unit to the queue, preserving its attempt
// count, so a retry can be scheduled after a backoff.
func (s *Store) RequeueItem(ctx context.Context, unitID int64) error {
	ctx = ensureContext(ctx)
	_, err := s.execWithRetry(
		ctx,
		`UPDATE job_items SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		ItemStatusQueued,
		time.Now().UTC().Format(time.RFC3339Nano),
		unitID,
		ItemStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("requeue item: %w", err)
	}
	return nil
}

// RecordItemResult persists a work unit's terminal state and bumps the parent
// job's progress counters.
func (s *Store) RecordItemResult(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	if !item.Status.IsTerminal() {
		return fmt.Errorf("record result for non-terminal status %q", item.Status)
	}
	ctx = ensureContext(ctx)
	item.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE job_items
         SET status = ?, error_kind = ?, error_message = ?, badges_applied = ?,
             attempts = ?, duration_ms = ?, updated_at = ?
         WHERE id = ?`,
		item.Status,
		nullableString(item.ErrorKind),
		nullableString(item.ErrorMessage),
		encodeList(item.BadgesApplied),
		item.Attempts,
		item.DurationMS,
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("record item result: %w", err)
	}
	return s.BumpProgress(ctx, item.JobID, item.Status)
}

// SkipQueuedItems marks every still-queued unit of a job as skipped with the
// given kind, bumping progress for each. Used by the cancellation sweep.
func (s *Store) SkipQueuedItems(ctx context.Context, jobID, errorKind, message string) (int64, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id FROM job_items WHERE job_id = ? AND status = ?`,
		jobID, ItemStatusQueued,
	)
	if err != nil {
		return 0, fmt.Errorf("select queued items: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	var skipped int64
	for _, id := range ids {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE job_items SET status = ?, error_kind = ?, error_message = ?, updated_at = ?
             WHERE id = ? AND status = ?`,
			ItemStatusSkipped, nullableString(errorKind), nullableString(message), now,
			id, ItemStatusQueued,
		)
		if err != nil {
			return skipped, fmt.Errorf("skip item: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return skipped, fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			continue
		}
		if err := s.BumpProgress(ctx, jobID, ItemStatusSkipped); err != nil {
			return skipped, err
		}
		skipped++
	}
	return skipped, nil
}

// JobItems returns all work units of a job in creation order.
func (s *Store) JobItems(ctx context.Context, jobID string) ([]*Item, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM job_items WHERE job_id = ? ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("query job items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanJobItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetJobItem fetches one work unit by job and catalog item. Returns nil when
// absent.
func (s *Store) GetJobItem(ctx context.Context, jobID, itemID string) (*Item, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM job_items WHERE job_id = ? AND item_id = ?`,
		jobID, itemID,
	)
	item, err := scanJobItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job item: %w", err)
	}
	return item, nil
}

// CountItemStatuses returns a count of a job's units grouped by status.
func (s *Store) CountItemStatuses(ctx context.Context, jobID string) (map[ItemStatus]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT status, COUNT(1) FROM job_items WHERE job_id = ? GROUP BY status`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("count item statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[ItemStatus]int)
	for rows.Next() {
		var status ItemStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (s *Store) getItemByUnitID(ctx context.Context, unitID int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM job_items WHERE id = ?`, unitID)
	item, err := scanJobItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job item: %w", err)
	}
	return item, nil
}

func scanJobItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id            int64
		jobID         string
		itemID        string
		itemKind      sql.NullString
		statusStr     string
		errorKind     sql.NullString
		errorMessage  sql.NullString
		badgesApplied sql.NullString
		attempts      int
		durationMS    int64
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&jobID,
		&itemID,
		&itemKind,
		&statusStr,
		&errorKind,
		&errorMessage,
		&badgesApplied,
		&attempts,
		&durationMS,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:            id,
		JobID:         jobID,
		ItemID:        itemID,
		ItemKind:      itemKind.String,
		Status:        ItemStatus(statusStr),
		ErrorKind:     errorKind.String,
		ErrorMessage:  errorMessage.String,
		BadgesApplied: decodeList(badgesApplied.String),
		Attempts:      attempts,
		DurationMS:    durationMS,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}
