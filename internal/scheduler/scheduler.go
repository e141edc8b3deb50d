// Package scheduler turns stored cron schedules into batch job submissions.
// It owns no retry logic: a failed submission is logged and waits for the
// next firing.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jackkerouac/aphrodite-sub000/internal/catalog"
	"github.com/jackkerouac/aphrodite-sub000/internal/jobs"
	"github.com/jackkerouac/aphrodite-sub000/internal/logging"
)

// Submitter is the slice of the engine the runner needs.
type Submitter interface {
	SubmitBatch(ctx context.Context, items []jobs.NewItem, badgeTypes []string, optionsJSON string) (*jobs.Job, error)
}

// Lister enumerates catalog items for a schedule's targets.
type Lister interface {
	ListAllItems(ctx context.Context, libraryID string, opts catalog.ListOptions) ([]catalog.ItemSummary, error)
}

// batchTypes limits scheduled batches to top-level badgeable items; episodes
// are covered through their series.
var batchTypes = []string{"Movie", "Series"}

// Runner drives the stored schedules. Reload resyncs cron entries after
// schedule mutations through the API.
type Runner struct {
	store   *jobs.Store
	engine  Submitter
	catalog Lister
	logger  *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[int64]cron.EntryID
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New wires a schedule runner.
func New(store *jobs.Store, engine Submitter, lister Lister, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	componentLogger := logging.NewComponentLogger(logger, "scheduler")
	return &Runner{
		store:   store,
		engine:  engine,
		catalog: lister,
		logger:  componentLogger,
		// A firing that outlives its interval is skipped, not stacked:
		// re-submitting the same sweep while the previous one is still
		// expanding targets only duplicates the batch.
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cronLogger{logger: componentLogger}))),
		entries: map[int64]cron.EntryID{},
	}
}

// cronLogger adapts slog to the cron.Logger interface so the chain wrappers
// can report skipped fires.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, logging.FieldErrorHint, err.Error())...)
}

// Start loads enabled schedules and begins firing them.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	if err := r.Reload(ctx); err != nil {
		return err
	}
	r.cron.Start()
	r.logger.Info("scheduler started", "schedules", len(r.entries))
	return nil
}

// Stop halts the cron loop and waits for a running firing to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	<-r.cron.Stop().Done()
	r.logger.Info("scheduler stopped")
}

// Reload resynchronizes cron entries with the schedules table. Disabled and
// deleted schedules are dropped; new and changed ones are (re)registered.
func (r *Runner) Reload(ctx context.Context) error {
	schedules, err := r.store.ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("list schedules: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, entryID := range r.entries {
		r.cron.Remove(entryID)
		delete(r.entries, id)
	}
	for _, schedule := range schedules {
		if !schedule.Enabled {
			continue
		}
		schedule := schedule
		entryID, err := r.cron.AddFunc(schedule.CronExpr, func() { r.fire(schedule) })
		if err != nil {
			r.logger.Warn("invalid cron expression",
				"schedule", schedule.Name,
				"expr", schedule.CronExpr,
				logging.FieldErrorHint, err.Error())
			continue
		}
		r.entries[schedule.ID] = entryID
	}
	return nil
}

// fire runs one schedule: expand targets into items, submit the batch, and
// stamp the run markers.
func (r *Runner) fire(schedule *jobs.Schedule) {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	logger := r.logger.With("schedule", schedule.Name)
	items, err := r.expandTargets(ctx, schedule)
	if err != nil {
		logger.Error("target expansion failed", logging.FieldErrorHint, err.Error())
		return
	}
	if len(items) == 0 {
		logger.Info("schedule fired with no matching items")
		r.markRun(ctx, schedule)
		return
	}

	optionsJSON := ""
	if len(schedule.Options) > 0 {
		if encoded, err := json.Marshal(schedule.Options); err == nil {
			optionsJSON = string(encoded)
		}
	}

	job, err := r.engine.SubmitBatch(ctx, items, schedule.BadgeTypes, optionsJSON)
	if err != nil {
		logger.Error("batch submission failed", logging.FieldErrorHint, err.Error())
		return
	}
	logger.Info("scheduled batch submitted",
		logging.FieldJobID, job.ID,
		"items", len(items))
	if err := r.store.AppendHistory(ctx, job.ID, "scheduled",
		fmt.Sprintf("schedule=%s", schedule.Name)); err != nil {
		logger.Warn("history append failed", logging.FieldErrorHint, err.Error())
	}
	r.markRun(ctx, schedule)
}

// expandTargets lists the schedule's libraries; no targets means the whole
// catalog. Duplicate item IDs across libraries collapse in the job store.
func (r *Runner) expandTargets(ctx context.Context, schedule *jobs.Schedule) ([]jobs.NewItem, error) {
	targets := schedule.Targets
	if len(targets) == 0 {
		targets = []string{""}
	}

	var items []jobs.NewItem
	for _, libraryID := range targets {
		summaries, err := r.catalog.ListAllItems(ctx, libraryID, catalog.ListOptions{
			IncludeTypes: batchTypes,
			Recursive:    true,
		})
		if err != nil {
			return nil, err
		}
		for _, summary := range summaries {
			items = append(items, jobs.NewItem{
				ItemID: summary.ID,
				Kind:   string(summary.Kind()),
			})
		}
	}
	return items, nil
}

func (r *Runner) markRun(ctx context.Context, schedule *jobs.Schedule) {
	next := r.nextRun(schedule)
	if err := r.store.MarkScheduleRun(ctx, schedule.ID, time.Now().UTC(), next); err != nil {
		r.logger.Warn("schedule run marker failed",
			"schedule", schedule.Name,
			logging.FieldErrorHint, err.Error())
	}
}

// nextRun computes the schedule's next firing from its cron expression.
func (r *Runner) nextRun(schedule *jobs.Schedule) time.Time {
	parsed, err := cron.ParseStandard(schedule.CronExpr)
	if err != nil {
		return time.Time{}
	}
	return parsed.Next(time.Now())
}
