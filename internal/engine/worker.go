package engine

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jackkerouac/aphrodite-sub000/internal/jobs"
	"github.com/jackkerouac/aphrodite-sub000/internal/logging"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

// worker claims queued work units until the pool context is cancelled.
func (e *Engine) worker(ctx context.Context, id int) {
	defer e.wg.Done()
	logger := e.logger.With("worker", id)
	poll := time.Duration(e.cfg.PollIntervalMS) * time.Millisecond

	for {
		if ctx.Err() != nil {
			return
		}
		item, err := e.store.ClaimNextItem(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("claim failed", logging.FieldErrorHint, err.Error())
			if !sleepCtx(ctx, poll) {
				return
			}
			continue
		}
		if item == nil {
			select {
			case <-ctx.Done():
				return
			case <-e.wake:
			case <-time.After(poll):
			}
			continue
		}
		e.handleItem(ctx, item, logger)
	}
}

// handleItem drives one claimed work unit to a terminal state and keeps the
// job's progress, history, and event stream current.
func (e *Engine) handleItem(ctx context.Context, item *jobs.Item, logger *slog.Logger) {
	job, err := e.store.GetJob(ctx, item.JobID)
	if err != nil || job == nil {
		logger.Warn("job lookup failed for claimed item",
			logging.FieldJobID, item.JobID,
			logging.FieldItemID, item.ItemID)
		if err := e.store.RequeueItem(ctx, item.ID); err != nil {
			logger.Error("requeue failed", logging.FieldItemID, item.ItemID, logging.FieldErrorHint, err.Error())
		}
		sleepCtx(ctx, time.Duration(e.cfg.PollIntervalMS)*time.Millisecond)
		return
	}

	// Cancellation observed before the item starts: skip, sweep the rest.
	if cancelled, err := e.store.CancelRequested(ctx, job.ID); err == nil && cancelled {
		e.recordResult(ctx, job, item, nil, 0, 0,
			services.Wrap(services.ErrCancelled, "engine", "claim", "cancel requested", nil))
		if _, err := e.store.SkipQueuedItems(ctx, job.ID, services.Kind(services.ErrCancelled), "job cancelled"); err != nil {
			logger.Warn("cancel sweep failed", logging.FieldJobID, job.ID, logging.FieldErrorHint, err.Error())
		}
		e.finalizeIfDone(ctx, job.ID)
		return
	}

	// Another running job holds the item: fail fast with busy.
	if !e.locks.TryAcquire(item.ItemID) {
		e.recordResult(ctx, job, item, nil, 0, 0,
			services.Wrap(services.ErrBusy, "engine", "claim",
				"item is being processed by another job", nil))
		e.finalizeIfDone(ctx, job.ID)
		return
	}
	defer e.locks.Release(item.ItemID)

	e.events.Publish(ProgressEvent{
		JobID:    job.ID,
		Event:    EventItemStarted,
		ItemID:   item.ItemID,
		Progress: job.Progress,
	})
	logger.Info("item started",
		logging.FieldJobID, job.ID,
		logging.FieldItemID, item.ItemID,
		"type", string(job.Type))

	start := time.Now()
	applied, attempts, runErr := e.runWithRetry(ctx, job, item)
	duration := time.Since(start)

	e.recordResult(ctx, job, item, applied, attempts, duration, runErr)

	if runErr != nil && errors.Is(runErr, services.ErrCancelled) {
		if _, err := e.store.SkipQueuedItems(ctx, job.ID, services.Kind(services.ErrCancelled), "job cancelled"); err != nil {
			logger.Warn("cancel sweep failed", logging.FieldJobID, job.ID, logging.FieldErrorHint, err.Error())
		}
	}
	e.finalizeIfDone(ctx, job.ID)
}

// recordResult persists the work unit's terminal state and publishes the
// item_finished event. Recording survives pool shutdown: the store write uses
// a context detached from the worker's.
func (e *Engine) recordResult(ctx context.Context, job *jobs.Job, item *jobs.Item, applied []string, attempts int, duration time.Duration, runErr error) {
	recordCtx := context.WithoutCancel(ctx)

	item.Status = services.ItemStatus(runErr)
	item.BadgesApplied = applied
	item.Attempts = attempts
	item.DurationMS = duration.Milliseconds()
	item.ErrorKind = ""
	item.ErrorMessage = ""
	if runErr != nil {
		item.ErrorKind = services.Kind(runErr)
		item.ErrorMessage = truncate(runErr.Error(), 500)
	}

	if err := e.store.RecordItemResult(recordCtx, item); err != nil {
		e.logger.Error("record item result failed",
			logging.FieldJobID, job.ID,
			logging.FieldItemID, item.ItemID,
			logging.FieldErrorHint, err.Error())
		return
	}

	updated, err := e.store.GetJob(recordCtx, job.ID)
	if err == nil && updated != nil {
		job.Progress = updated.Progress
		job.CancelRequested = updated.CancelRequested
	}

	logger := e.logger.With(
		logging.FieldJobID, job.ID,
		logging.FieldItemID, item.ItemID)
	switch item.Status {
	case jobs.ItemStatusOK:
		logger.Info("item finished",
			"badges", len(applied),
			"attempts", attempts,
			"duration_ms", item.DurationMS)
	case jobs.ItemStatusSkipped:
		logger.Info("item skipped", logging.FieldErrorKind, item.ErrorKind)
	default:
		logger.Warn("item failed",
			logging.FieldErrorKind, item.ErrorKind,
			"attempts", attempts,
			logging.FieldErrorHint, item.ErrorMessage)
	}

	e.events.Publish(ProgressEvent{
		JobID:     job.ID,
		Event:     EventItemFinished,
		ItemID:    item.ItemID,
		Status:    string(item.Status),
		ErrorKind: item.ErrorKind,
		Progress:  job.Progress,
	})

	// Batch-level progress lines are sampled so a thousand-item job does not
	// flood the log with one line per item.
	if progress := job.Progress; progress.Total > 0 {
		percent := float64(progress.Total-progress.Remaining()) / float64(progress.Total) * 100
		if e.progressSampler(job.ID).ShouldLog(percent, string(job.Type), "") {
			e.logger.Info("job progress",
				logging.FieldJobID, job.ID,
				"done", progress.Done,
				"failed", progress.Failed,
				"skipped", progress.Skipped,
				"total", progress.Total)
		}
	}
}

// runWithRetry executes the item pipeline under one overall per-item
// deadline, retrying transient failures with exponential backoff and full
// jitter. Attempts, backoff waits, and Retry-After waits all spend the same
// budget: when the deadline passes the unit fails as timeout no matter how
// many attempts remain. A server-advised Retry-After wait is honored without
// consuming an attempt only when it fits inside the remaining deadline.
func (e *Engine) runWithRetry(ctx context.Context, job *jobs.Job, item *jobs.Item) ([]string, int, error) {
	itemTimeout := time.Duration(e.cfg.ItemTimeout) * time.Second
	baseDelay := time.Duration(e.cfg.RetryBaseDelayMS) * time.Millisecond
	maxDelay := time.Duration(e.cfg.RetryMaxDelayMS) * time.Millisecond

	itemCtx, cancel := context.WithTimeout(ctx, itemTimeout)
	defer cancel()
	deadline, _ := itemCtx.Deadline()

	attempts := 0
	for {
		attempts++

		applied, err := e.runItem(itemCtx, job, item)

		if err == nil {
			return applied, attempts, nil
		}
		if ctx.Err() != nil {
			return nil, attempts, services.Wrap(services.ErrCancelled, "engine", "run_item", "worker pool stopping", ctx.Err())
		}
		if itemCtx.Err() != nil {
			return nil, attempts, services.Wrap(services.ErrTimeout, "engine", "run_item",
				"item deadline exceeded", err)
		}
		if errors.Is(err, services.ErrCancelled) {
			return nil, attempts, err
		}

		if delay, ok := services.RetryAfter(err); ok && delay <= time.Until(deadline) {
			attempts--
			e.logger.Info("honoring retry-after",
				logging.FieldJobID, job.ID,
				logging.FieldItemID, item.ItemID,
				"delay", delay.String())
			if !sleepCtx(itemCtx, delay) {
				return nil, attempts, e.waitAborted(ctx, err)
			}
			continue
		}

		if !services.Retryable(err) || attempts >= e.cfg.RetryAttempts {
			return nil, attempts, err
		}
		if cancelled, cerr := e.store.CancelRequested(ctx, job.ID); cerr == nil && cancelled {
			return nil, attempts, services.Wrap(services.ErrCancelled, "engine", "run_item", "cancel requested", nil)
		}

		delay := backoffDelay(baseDelay, maxDelay, attempts)
		e.logger.Info("retrying item",
			logging.FieldJobID, job.ID,
			logging.FieldItemID, item.ItemID,
			"attempt", attempts,
			"delay", delay.String(),
			logging.FieldErrorKind, services.Kind(err))
		if !sleepCtx(itemCtx, delay) {
			return nil, attempts, e.waitAborted(ctx, err)
		}
	}
}

// waitAborted maps an interrupted retry wait to its cause: pool shutdown
// cancels the unit, the overall item deadline fails it as timeout.
func (e *Engine) waitAborted(ctx context.Context, lastErr error) error {
	if ctx.Err() != nil {
		return services.Wrap(services.ErrCancelled, "engine", "run_item", "worker pool stopping", ctx.Err())
	}
	return services.Wrap(services.ErrTimeout, "engine", "run_item", "item deadline exceeded", lastErr)
}

// backoffDelay doubles the base per attempt, caps it, and applies full
// jitter: the wait is uniform in (0, cap].
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	ceiling := base << (attempt - 1)
	if ceiling > max || ceiling <= 0 {
		ceiling = max
	}
	return time.Duration(rand.Int63n(int64(ceiling))) + 1
}

// sleepCtx waits for the duration unless the context ends first. Reports
// whether the full wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
