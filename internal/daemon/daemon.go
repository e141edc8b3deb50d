package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/jackkerouac/aphrodite-sub000/internal/api"
	"github.com/jackkerouac/aphrodite-sub000/internal/badge"
	"github.com/jackkerouac/aphrodite-sub000/internal/cachestore"
	"github.com/jackkerouac/aphrodite-sub000/internal/catalog"
	"github.com/jackkerouac/aphrodite-sub000/internal/config"
	"github.com/jackkerouac/aphrodite-sub000/internal/engine"
	"github.com/jackkerouac/aphrodite-sub000/internal/enrich"
	"github.com/jackkerouac/aphrodite-sub000/internal/jobs"
	"github.com/jackkerouac/aphrodite-sub000/internal/logging"
	"github.com/jackkerouac/aphrodite-sub000/internal/notifications"
	"github.com/jackkerouac/aphrodite-sub000/internal/posters"
	"github.com/jackkerouac/aphrodite-sub000/internal/render"
	"github.com/jackkerouac/aphrodite-sub000/internal/resolve"
	"github.com/jackkerouac/aphrodite-sub000/internal/revert"
	"github.com/jackkerouac/aphrodite-sub000/internal/scheduler"
	"github.com/jackkerouac/aphrodite-sub000/internal/settings"
)

// version is reported by the status endpoint.
const version = "0.1.0"

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	jobsStore     *jobs.Store
	settingsStore *settings.Store
	cacheStore    *cachestore.Store
	posterStore   *posters.Store
	catalog       *catalog.Client
	registry      *enrich.Registry
	engine        *engine.Engine
	scheduler     *scheduler.Runner
	notifier      notifications.Service
	api           *apiServer

	logHub     *logging.StreamHub
	logArchive *logging.EventArchive

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New builds a daemon with all collaborators wired from the configuration.
// Stores are opened immediately; network services connect lazily on first use.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires a config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	jobsStore, err := jobs.Open(cfg)
	if err != nil {
		return nil, err
	}
	settingsStore, err := settings.Open(cfg)
	if err != nil {
		_ = jobsStore.Close()
		return nil, err
	}
	cacheStore, err := cachestore.Open(cfg)
	if err != nil {
		_ = jobsStore.Close()
		_ = settingsStore.Close()
		return nil, err
	}
	closeStores := func() {
		_ = jobsStore.Close()
		_ = settingsStore.Close()
		_ = cacheStore.Close()
	}

	posterStore, err := posters.New(cfg.Paths.PostersDir)
	if err != nil {
		closeStores()
		return nil, err
	}
	client, err := catalog.New(cfg.Catalog)
	if err != nil {
		closeStores()
		return nil, err
	}

	registry := enrich.BuildRegistry(cfg, cacheStore, logger)
	badgeCatalog, err := badge.Load(context.Background(), settingsStore, cfg.Paths.AssetsDir)
	if err != nil {
		closeStores()
		return nil, err
	}
	fonts := render.NewFontManager([]string{cfg.Paths.FontsDir}, "")
	resolver := resolve.New(client, registry, resolve.OptionsFromConfig(cfg), logger)
	reverter := revert.New(client, posterStore, jobsStore, logger)

	eng, err := engine.New(engine.Params{
		Store:    jobsStore,
		Catalog:  client,
		Posters:  posterStore,
		Resolver: resolver,
		Badges:   badgeCatalog,
		Renderer: render.New(fonts),
		Reverter: reverter,
		Workers:  cfg.Workers,
		Logger:   quietLogger(cfg, logger, "engine"),
	})
	if err != nil {
		closeStores()
		return nil, err
	}
	notifier := notifications.NewService(cfg)
	eng.OnJobTerminal = notifications.JobTerminalHook(notifier, logger)

	lockPath := filepath.Join(cfg.Paths.LogDir, "aphrodited.lock")
	d := &Daemon{
		cfg:           cfg,
		logger:        logging.NewComponentLogger(quietLogger(cfg, logger, "daemon"), "daemon"),
		jobsStore:     jobsStore,
		settingsStore: settingsStore,
		cacheStore:    cacheStore,
		posterStore:   posterStore,
		catalog:       client,
		registry:      registry,
		engine:        eng,
		notifier:      notifier,
		lockPath:      lockPath,
		lock:          flock.New(lockPath),
	}
	if cfg.Scheduler.Enabled {
		d.scheduler = scheduler.New(jobsStore, eng, client, quietLogger(cfg, logger, "scheduler"))
	}
	d.api, err = newAPIServer(cfg, d, quietLogger(cfg, logger, "api-server"))
	if err != nil {
		closeStores()
		return nil, err
	}
	return d, nil
}

// quietLogger caps the named component at warn when the configuration lists
// it under logging.quiet_components.
func quietLogger(cfg *config.Config, logger *slog.Logger, name string) *slog.Logger {
	for _, quiet := range cfg.Logging.QuietComponents {
		if strings.EqualFold(strings.TrimSpace(quiet), name) {
			return logging.WithLevelOverride(logger, slog.LevelWarn)
		}
	}
	return logger
}

// AttachLogStream exposes the process log stream (and its optional on-disk
// archive) through the API log endpoints. Call before Start.
func (d *Daemon) AttachLogStream(hub *logging.StreamHub, archive *logging.EventArchive) {
	d.logHub = hub
	d.logArchive = archive
}

// Start acquires the instance lock and launches the engine, the scheduler,
// and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another aphrodite daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.engine.Start(d.ctx); err != nil {
		d.releaseStart()
		return fmt.Errorf("start engine: %w", err)
	}
	if d.scheduler != nil {
		if err := d.scheduler.Start(d.ctx); err != nil {
			d.engine.Stop()
			d.releaseStart()
			return fmt.Errorf("start scheduler: %w", err)
		}
	}
	if err := d.api.start(d.ctx); err != nil {
		if d.scheduler != nil {
			d.scheduler.Stop()
		}
		d.engine.Stop()
		d.releaseStart()
		return err
	}

	d.running.Store(true)
	d.logger.Info("daemon started", "lock", d.lockPath)
	return nil
}

func (d *Daemon) releaseStart() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

// Stop halts background processing and releases the instance lock. In-flight
// items finish their current attempt before the workers exit.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.scheduler != nil {
		d.scheduler.Stop()
	}
	d.engine.Stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.FieldErrorHint, err.Error())
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and closes the stores.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.jobsStore != nil {
		errs = append(errs, d.jobsStore.Close())
	}
	if d.settingsStore != nil {
		errs = append(errs, d.settingsStore.Close())
	}
	if d.cacheStore != nil {
		errs = append(errs, d.cacheStore.Close())
	}
	if d.logArchive != nil {
		errs = append(errs, d.logArchive.Close())
	}
	return errors.Join(errs...)
}

// Engine exposes the job engine for embedding callers.
func (d *Daemon) Engine() *engine.Engine { return d.engine }

// Scheduler exposes the cron runner; nil when scheduling is disabled.
func (d *Daemon) Scheduler() *scheduler.Runner { return d.scheduler }

// Status reports daemon runtime information.
func (d *Daemon) Status(ctx context.Context) api.StatusResponse {
	status := api.StatusResponse{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Version:      version,
		JobsDBPath:   d.jobsStore.Path(),
		LockFilePath: d.lockPath,
	}
	if stats, err := d.jobsStore.Stats(ctx); err == nil {
		status.JobCounts = api.MergeJobStats(stats)
	}
	if schedules, err := d.jobsStore.ListSchedules(ctx); err == nil {
		status.Schedules = len(schedules)
	}
	return status
}

// Health probes the daemon's dependencies: catalog reachability, the job
// store, the settings store, and poster directory writability.
func (d *Daemon) Health(ctx context.Context) api.HealthResponse {
	checks := []api.HealthCheck{
		d.checkCatalog(ctx),
		d.checkJobs(ctx),
		d.checkSettings(ctx),
		d.checkPosters(),
	}
	healthy := true
	for _, check := range checks {
		if !check.Ready {
			healthy = false
		}
	}
	return api.HealthResponse{Healthy: healthy, Checks: checks}
}

func (d *Daemon) checkCatalog(ctx context.Context) api.HealthCheck {
	check := api.HealthCheck{Name: "catalog", Ready: true}
	if err := d.catalog.Health(ctx); err != nil {
		check.Ready = false
		check.Detail = err.Error()
	}
	return check
}

func (d *Daemon) checkJobs(ctx context.Context) api.HealthCheck {
	check := api.HealthCheck{Name: "jobs", Ready: true}
	summary, err := d.jobsStore.Health(ctx)
	if err != nil {
		check.Ready = false
		check.Detail = err.Error()
		return check
	}
	check.Detail = fmt.Sprintf("total=%d queued=%d running=%d", summary.Total, summary.Queued, summary.Running)
	return check
}

func (d *Daemon) checkSettings(ctx context.Context) api.HealthCheck {
	check := api.HealthCheck{Name: "settings", Ready: true}
	if _, err := d.settingsStore.Version(ctx); err != nil {
		check.Ready = false
		check.Detail = err.Error()
	}
	return check
}

func (d *Daemon) checkPosters() api.HealthCheck {
	check := api.HealthCheck{Name: "posters", Ready: true}
	probe := filepath.Join(d.posterStore.Root(), ".health")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		check.Ready = false
		check.Detail = err.Error()
		return check
	}
	_ = os.Remove(probe)
	return check
}
