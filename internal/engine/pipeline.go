package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackkerouac/aphrodite-sub000/internal/jobs"
	"github.com/jackkerouac/aphrodite-sub000/internal/logging"
	"github.com/jackkerouac/aphrodite-sub000/internal/posters"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

// runItem executes one work unit attempt, dispatching on the job type.
func (e *Engine) runItem(ctx context.Context, job *jobs.Job, item *jobs.Item) ([]string, error) {
	switch job.Type {
	case jobs.TypeRevert:
		return nil, e.reverter.Revert(ctx, job.ID, item.ItemID)
	case jobs.TypeRestore:
		return nil, e.runRestore(ctx, job)
	default:
		return e.badgeItem(ctx, job, item)
	}
}

func (e *Engine) runRestore(ctx context.Context, job *jobs.Job) error {
	report, err := e.reverter.RestoreAll(ctx, job.ID)
	if err != nil {
		return err
	}
	if failed := report.Failed(); failed > 0 {
		return services.Wrap(services.ErrStorageIO, "engine", "restore_all",
			fmt.Sprintf("%d of %d restores failed", failed, len(report.Results)), nil)
	}
	return nil
}

// badgeItem runs the badge pipeline for one catalog item: fetch metadata and
// poster, resolve attributes, select badges under the job's mask, render,
// upload, and tag. The processed tag is set only when at least one badge was
// applied; a zero-badge selection succeeds without touching the catalog.
func (e *Engine) badgeItem(ctx context.Context, job *jobs.Job, item *jobs.Item) ([]string, error) {
	if err := e.checkpoint(ctx, job.ID); err != nil {
		return nil, err
	}
	meta, err := e.catalog.GetItem(ctx, item.ItemID)
	if err != nil {
		return nil, err
	}

	poster, err := e.fetchPoster(ctx, item.ItemID)
	if err != nil {
		return nil, err
	}
	if _, err := e.posters.WriteWorking(item.ItemID, poster); err != nil {
		return nil, err
	}
	defer func() {
		if err := e.posters.DeleteWorking(item.ItemID); err != nil {
			e.logger.Warn("working copy cleanup failed",
				logging.FieldItemID, item.ItemID,
				logging.FieldErrorHint, err.Error())
		}
	}()

	attrs, err := e.resolver.Resolve(ctx, meta)
	if err != nil {
		return nil, err
	}

	instances, skips := e.badges.Select(attrs, job.BadgeTypes)
	for _, skip := range skips {
		e.logger.Debug("badge skipped",
			logging.FieldItemID, item.ItemID,
			"badge_type", skip.Type,
			"symbol", skip.Symbol,
			"reason", skip.Reason)
	}
	if len(instances) == 0 {
		e.logger.Info("no badges selected",
			logging.FieldJobID, job.ID,
			logging.FieldItemID, item.ItemID)
		return nil, nil
	}

	badged, err := e.renderer.Composite(poster, instances)
	if err != nil {
		return nil, err
	}
	if _, err := e.posters.SaveModified(item.ItemID, badged); err != nil {
		return nil, err
	}

	if err := e.checkpoint(ctx, job.ID); err != nil {
		return nil, err
	}
	if err := e.catalog.SetPrimaryImage(ctx, item.ItemID, badged, ""); err != nil {
		return nil, err
	}
	if err := e.catalog.AddTag(ctx, item.ItemID, e.catalog.Tag()); err != nil {
		return nil, err
	}
	return appliedTypes(instances), nil
}

// fetchPoster returns the item's original poster bytes, downloading and
// backing them up on first contact. A stored original short-circuits the
// download, so retries and re-runs never fetch twice.
func (e *Engine) fetchPoster(ctx context.Context, itemID string) ([]byte, error) {
	if data, _, err := e.posters.Read(itemID, posters.BucketOriginal); err == nil {
		return data, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	data, _, err := e.catalog.GetPrimaryImage(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if e.posters.OriginalMatches(itemID, data) {
		return data, nil
	}
	if _, err := e.posters.SaveOriginal(itemID, data); err != nil {
		return nil, err
	}
	return data, nil
}

// checkpoint aborts the stage sequence when the context has ended or the job
// has been cancelled. Placed between stages and ahead of catalog writes so a
// cancelled job never uploads.
func (e *Engine) checkpoint(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cancelled, err := e.store.CancelRequested(ctx, jobID)
	if err != nil {
		return nil
	}
	if cancelled {
		return services.Wrap(services.ErrCancelled, "engine", "checkpoint", "cancel requested", nil)
	}
	return nil
}
