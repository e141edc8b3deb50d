// Package engine runs badge and revert jobs: a fixed worker pool claims
// queued work units fairly across jobs, drives each item through the
// fetch-resolve-select-render-upload pipeline, and keeps job progress and
// the progress event stream in step with the store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackkerouac/aphrodite-sub000/internal/badge"
	"github.com/jackkerouac/aphrodite-sub000/internal/catalog"
	"github.com/jackkerouac/aphrodite-sub000/internal/config"
	"github.com/jackkerouac/aphrodite-sub000/internal/jobs"
	"github.com/jackkerouac/aphrodite-sub000/internal/logging"
	"github.com/jackkerouac/aphrodite-sub000/internal/posters"
	"github.com/jackkerouac/aphrodite-sub000/internal/resolve"
	"github.com/jackkerouac/aphrodite-sub000/internal/revert"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

// Catalog is the slice of the catalog client the pipeline needs.
type Catalog interface {
	GetItem(ctx context.Context, itemID string) (*catalog.ItemMetadata, error)
	GetPrimaryImage(ctx context.Context, itemID string) ([]byte, string, error)
	SetPrimaryImage(ctx context.Context, itemID string, data []byte, mime string) error
	AddTag(ctx context.Context, itemID, tag string) error
	Tag() string
}

// Resolver derives item attributes from catalog metadata.
type Resolver interface {
	Resolve(ctx context.Context, item *catalog.ItemMetadata) (*resolve.ItemAttributes, error)
}

// Selector turns resolved attributes into badge instances.
type Selector interface {
	Select(attrs *resolve.ItemAttributes, mask []string) ([]badge.Instance, []badge.Skip)
}

// Compositor renders badge instances onto poster bytes.
type Compositor interface {
	Composite(posterBytes []byte, instances []badge.Instance) ([]byte, error)
}

// Reverter handles revert and restore work units.
type Reverter interface {
	Revert(ctx context.Context, jobID, itemID string) error
	RestoreAll(ctx context.Context, jobID string) (*revert.RestoreReport, error)
}

// restoreItemID is the synthetic work unit key for restore-all jobs.
const restoreItemID = "restore-all"

// Params collects the engine's collaborators.
type Params struct {
	Store    *jobs.Store
	Catalog  Catalog
	Posters  *posters.Store
	Resolver Resolver
	Badges   Selector
	Renderer Compositor
	Reverter Reverter
	Workers  config.Workers
	Logger   *slog.Logger
}

// Engine owns the worker pool and the job submission surface.
type Engine struct {
	store    *jobs.Store
	catalog  Catalog
	posters  *posters.Store
	resolver Resolver
	badges   Selector
	renderer Compositor
	reverter Reverter
	cfg      config.Workers
	logger   *slog.Logger

	locks  *itemLocks
	events *eventHub
	wake   chan struct{}

	samplerMu sync.Mutex
	samplers  map[string]*logging.ProgressSampler

	// OnJobTerminal, when set before Start, is called once per job as it
	// reaches a terminal status. Used for notifications.
	OnJobTerminal func(job *jobs.Job)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New wires an engine. Worker settings are normalized to the same defaults
// the config loader applies.
func New(params Params) (*Engine, error) {
	if params.Store == nil {
		return nil, errors.New("engine requires a job store")
	}
	if params.Catalog == nil {
		return nil, errors.New("engine requires a catalog client")
	}
	if params.Posters == nil {
		return nil, errors.New("engine requires a poster store")
	}
	if params.Resolver == nil || params.Badges == nil || params.Renderer == nil {
		return nil, errors.New("engine requires resolver, badge catalog, and renderer")
	}
	logger := params.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	cfg := params.Workers
	if cfg.Count <= 0 {
		cfg.Count = 4
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = 60
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelayMS <= 0 {
		cfg.RetryBaseDelayMS = 500
	}
	if cfg.RetryMaxDelayMS < cfg.RetryBaseDelayMS {
		cfg.RetryMaxDelayMS = cfg.RetryBaseDelayMS
	}
	if cfg.PollIntervalMS <= 0 {
		cfg.PollIntervalMS = 500
	}

	return &Engine{
		store:    params.Store,
		catalog:  params.Catalog,
		posters:  params.Posters,
		resolver: params.Resolver,
		badges:   params.Badges,
		renderer: params.Renderer,
		reverter: params.Reverter,
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "engine"),
		locks:    newItemLocks(),
		events:   newEventHub(cfg.EventBuffer),
		wake:     make(chan struct{}, 1),
		samplers: make(map[string]*logging.ProgressSampler),
	}, nil
}

// Start requeues work units abandoned by an unclean shutdown and launches the
// worker pool. Calling Start on a running engine is an error.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return errors.New("engine already started")
	}

	reset, err := e.store.ResetStuckRunning(ctx)
	if err != nil {
		return fmt.Errorf("reset stuck items: %w", err)
	}
	if reset > 0 {
		e.logger.Info("requeued stuck work units", "count", reset)
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	for i := 0; i < e.cfg.Count; i++ {
		e.wg.Add(1)
		go e.worker(runCtx, i)
	}
	e.logger.Info("worker pool started", "workers", e.cfg.Count)
	return nil
}

// Stop signals the pool and waits for in-flight items to record their
// results.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	e.logger.Info("worker pool stopped")
}

// SubmitBatch creates a batch job over the given items.
func (e *Engine) SubmitBatch(ctx context.Context, items []jobs.NewItem, badgeTypes []string, optionsJSON string) (*jobs.Job, error) {
	return e.submit(ctx, jobs.TypeBatch, items, badgeTypes, optionsJSON)
}

// SubmitSingle creates a one-item badge job.
func (e *Engine) SubmitSingle(ctx context.Context, itemID, kind string, badgeTypes []string, optionsJSON string) (*jobs.Job, error) {
	return e.submit(ctx, jobs.TypeSingle, []jobs.NewItem{{ItemID: itemID, Kind: kind}}, badgeTypes, optionsJSON)
}

// SubmitRevert creates a revert job with one work unit per item.
func (e *Engine) SubmitRevert(ctx context.Context, itemIDs []string) (*jobs.Job, error) {
	items := make([]jobs.NewItem, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		items = append(items, jobs.NewItem{ItemID: itemID})
	}
	return e.submit(ctx, jobs.TypeRevert, items, nil, "")
}

// SubmitRestore creates a restore-all job. The sweep runs as a single work
// unit; per-file outcomes land in the result summary.
func (e *Engine) SubmitRestore(ctx context.Context) (*jobs.Job, error) {
	return e.submit(ctx, jobs.TypeRestore, []jobs.NewItem{{ItemID: restoreItemID}}, nil, "")
}

func (e *Engine) submit(ctx context.Context, typ jobs.Type, items []jobs.NewItem, badgeTypes []string, optionsJSON string) (*jobs.Job, error) {
	if len(items) == 0 {
		return nil, services.Wrap(services.ErrConfigInvalid, "engine", "submit", "job requires at least one item", nil)
	}
	if (typ == jobs.TypeRevert || typ == jobs.TypeRestore) && e.reverter == nil {
		return nil, services.Wrap(services.ErrConfigInvalid, "engine", "submit", "revert manager not configured", nil)
	}

	job, err := e.store.CreateJob(ctx, typ, badgeTypes, optionsJSON, items)
	if err != nil {
		return nil, services.Wrap(services.ErrStorageIO, "engine", "submit", "create job", err)
	}
	if err := e.store.AppendHistory(ctx, job.ID, "job_created",
		fmt.Sprintf("type=%s items=%d", typ, job.Progress.Total)); err != nil {
		e.logger.Warn("history append failed", logging.FieldJobID, job.ID, logging.FieldErrorHint, err.Error())
	}

	e.logger.Info("job submitted",
		logging.FieldJobID, job.ID,
		"type", string(typ),
		"items", job.Progress.Total)
	e.kick()
	return job, nil
}

// kick wakes one idle worker without blocking.
func (e *Engine) kick() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Get returns a job by ID, or nil when unknown.
func (e *Engine) Get(ctx context.Context, jobID string) (*jobs.Job, error) {
	return e.store.GetJob(ctx, jobID)
}

// Items returns the per-item results of a job.
func (e *Engine) Items(ctx context.Context, jobID string) ([]*jobs.Item, error) {
	return e.store.JobItems(ctx, jobID)
}

// List returns recent jobs, optionally filtered by status.
func (e *Engine) List(ctx context.Context, limit int, statuses ...jobs.Status) ([]*jobs.Job, error) {
	return e.store.ListJobs(ctx, limit, statuses...)
}

// Cancel flips the job's cancel flag and sweeps its queued items to skipped.
// It reports whether a not-yet-terminal job acknowledged the request; running
// items observe the flag at their next checkpoint.
func (e *Engine) Cancel(ctx context.Context, jobID string) (bool, error) {
	acknowledged, err := e.store.RequestCancel(ctx, jobID)
	if err != nil {
		return false, err
	}
	if !acknowledged {
		return false, nil
	}

	skipped, err := e.store.SkipQueuedItems(ctx, jobID, services.Kind(services.ErrCancelled), "job cancelled")
	if err != nil {
		return true, err
	}
	e.logger.Info("cancel requested",
		logging.FieldJobID, jobID,
		"skipped", skipped)
	if err := e.store.AppendHistory(ctx, jobID, "cancel_requested", fmt.Sprintf("skipped=%d", skipped)); err != nil {
		e.logger.Warn("history append failed", logging.FieldJobID, jobID, logging.FieldErrorHint, err.Error())
	}

	e.finalizeIfDone(ctx, jobID)
	return true, nil
}

// StreamProgress subscribes to a job's progress events. For an already
// terminal job the channel carries one job_status event and closes. The
// cancel func releases the subscription.
func (e *Engine) StreamProgress(ctx context.Context, jobID string) (<-chan ProgressEvent, func(), error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if job == nil {
		return nil, nil, services.Wrap(services.ErrCatalogNotFound, "engine", "stream_progress",
			fmt.Sprintf("job %s not found", jobID), nil)
	}

	if job.Status.IsTerminal() {
		ch := make(chan ProgressEvent, 1)
		ch <- ProgressEvent{
			Seq:      1,
			JobID:    job.ID,
			Event:    EventJobStatus,
			Status:   string(job.Status),
			Progress: job.Progress,
			Terminal: true,
			At:       time.Now().UTC(),
		}
		close(ch)
		return ch, func() {}, nil
	}
	ch, cancel := e.events.Subscribe(jobID)
	return ch, cancel, nil
}

// finalizeIfDone moves a job whose every item is terminal into its final
// status. Safe to call concurrently; the first terminal transition wins.
// progressSampler returns the per-job sampler used to thin progress logs on
// large batches. Samplers are dropped when the job finalizes.
func (e *Engine) progressSampler(jobID string) *logging.ProgressSampler {
	e.samplerMu.Lock()
	defer e.samplerMu.Unlock()
	sampler, ok := e.samplers[jobID]
	if !ok {
		sampler = logging.NewProgressSampler(10)
		e.samplers[jobID] = sampler
	}
	return sampler
}

func (e *Engine) dropProgressSampler(jobID string) {
	e.samplerMu.Lock()
	delete(e.samplers, jobID)
	e.samplerMu.Unlock()
}

func (e *Engine) finalizeIfDone(ctx context.Context, jobID string) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil || job == nil {
		return
	}
	if job.Status.IsTerminal() || job.Progress.Remaining() > 0 {
		return
	}

	status := finalStatus(job)
	summary := progressSummary(job.Progress)
	errorMessage := ""
	if status == jobs.StatusFailed {
		errorMessage = "all items failed"
	}
	if err := e.store.SetJobStatus(ctx, jobID, status, summary, errorMessage); err != nil {
		e.logger.Error("job finalize failed",
			logging.FieldJobID, jobID,
			logging.FieldErrorHint, err.Error())
		return
	}
	if err := e.store.AppendHistory(ctx, jobID, "job_finished", summary); err != nil {
		e.logger.Warn("history append failed", logging.FieldJobID, jobID, logging.FieldErrorHint, err.Error())
	}

	e.dropProgressSampler(jobID)

	job.Status = status
	job.ResultSummary = summary
	e.logger.Info("job finished",
		logging.FieldJobID, jobID,
		"status", string(status),
		"summary", summary)

	e.events.Publish(ProgressEvent{
		JobID:    jobID,
		Event:    EventJobStatus,
		Status:   string(status),
		Progress: job.Progress,
		Terminal: true,
	})
	if e.OnJobTerminal != nil {
		e.OnJobTerminal(job)
	}
}

// finalStatus aggregates item outcomes into the job's terminal status: all ok
// is succeeded, all failed is failed, a cancelled job with no completed items
// is cancelled, everything else is partial.
func finalStatus(job *jobs.Job) jobs.Status {
	p := job.Progress
	switch {
	case job.CancelRequested && p.Done == 0:
		return jobs.StatusCancelled
	case job.CancelRequested:
		return jobs.StatusPartial
	case p.Failed == 0 && p.Skipped == 0:
		return jobs.StatusSucceeded
	case p.Failed == p.Total:
		return jobs.StatusFailed
	default:
		return jobs.StatusPartial
	}
}

func progressSummary(p jobs.Progress) string {
	return fmt.Sprintf("ok=%d failed=%d skipped=%d", p.Done, p.Failed, p.Skipped)
}

// appliedTypes lists the distinct badge types of the selected instances in
// composition order.
func appliedTypes(instances []badge.Instance) []string {
	var applied []string
	for _, instance := range instances {
		found := false
		for _, existing := range applied {
			if strings.EqualFold(existing, instance.Type) {
				found = true
				break
			}
		}
		if !found {
			applied = append(applied, instance.Type)
		}
	}
	return applied
}
