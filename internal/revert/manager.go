// Package revert restores original posters and keeps the processed tag in
// step with the poster state.
package revert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackkerouac/aphrodite-sub000/internal/catalog"
	"github.com/jackkerouac/aphrodite-sub000/internal/jobs"
	"github.com/jackkerouac/aphrodite-sub000/internal/logging"
	"github.com/jackkerouac/aphrodite-sub000/internal/posters"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

// Catalog is the slice of the catalog client the manager needs.
type Catalog interface {
	GetItem(ctx context.Context, itemID string) (*catalog.ItemMetadata, error)
	SetPrimaryImage(ctx context.Context, itemID string, data []byte, mime string) error
	RemoveTag(ctx context.Context, itemID, tag string) error
	Tag() string
}

// Manager reverts badged posters to their stored originals.
type Manager struct {
	catalog Catalog
	posters *posters.Store
	store   *jobs.Store
	logger  *slog.Logger
}

// New creates a revert manager. The job store may be nil; history rows are
// then skipped.
func New(client Catalog, posterStore *posters.Store, jobStore *jobs.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{catalog: client, posters: posterStore, store: jobStore, logger: logger}
}

// Revert restores one item: the stored original must exist and the processed
// tag must be present, else the item is not in a revertable state. The
// original is uploaded first; only then are the modified poster and the tag
// removed, so a failed upload leaves everything in place.
func (m *Manager) Revert(ctx context.Context, jobID, itemID string) error {
	original, _, err := m.posters.Read(itemID, posters.BucketOriginal)
	if err != nil {
		return services.Wrap(services.ErrCannotRevert, "revert", "revert",
			fmt.Sprintf("item %s has no stored original", itemID), err)
	}

	item, err := m.catalog.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	tag := m.catalog.Tag()
	if !item.HasTag(tag) {
		return services.Wrap(services.ErrCannotRevert, "revert", "revert",
			fmt.Sprintf("item %s does not carry tag %q", itemID, tag), nil)
	}

	if err := m.catalog.SetPrimaryImage(ctx, itemID, original, ""); err != nil {
		return err
	}
	if err := m.posters.DeleteModified(itemID); err != nil {
		return err
	}
	if err := m.catalog.RemoveTag(ctx, itemID, tag); err != nil {
		return err
	}

	if m.store != nil && jobID != "" {
		if err := m.store.AppendHistory(ctx, jobID, "item_reverted", itemID); err != nil {
			m.logger.Warn("history append failed",
				logging.FieldItemID, itemID,
				logging.FieldErrorHint, err.Error())
		}
	}
	m.logger.Info("poster reverted", logging.FieldItemID, itemID)
	return nil
}

// RestoreResult is the per-item outcome of a bulk restore.
type RestoreResult struct {
	ItemID string
	Err    error
}

// RestoreReport summarizes a RestoreAll run.
type RestoreReport struct {
	Results []RestoreResult
}

// Succeeded counts restored items.
func (r *RestoreReport) Succeeded() int {
	n := 0
	for _, result := range r.Results {
		if result.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts items that could not be restored.
func (r *RestoreReport) Failed() int { return len(r.Results) - r.Succeeded() }

// RestoreAll uploads every stored original over the catalog's current poster
// and removes the modified copy. Tag removal is best-effort: a restore
// whose only failure is the tag still counts as restored, with the error
// logged. Item failures never abort the sweep.
func (m *Manager) RestoreAll(ctx context.Context, jobID string) (*RestoreReport, error) {
	itemIDs, err := m.posters.ListOriginals()
	if err != nil {
		return nil, err
	}

	report := &RestoreReport{Results: make([]RestoreResult, 0, len(itemIDs))}
	for _, itemID := range itemIDs {
		if err := ctx.Err(); err != nil {
			return report, services.Wrap(services.ErrCancelled, "revert", "restore_all", "", err)
		}
		result := RestoreResult{ItemID: itemID, Err: m.restoreOne(ctx, itemID)}
		report.Results = append(report.Results, result)
		if result.Err != nil {
			m.logger.Warn("restore failed",
				logging.FieldItemID, itemID,
				logging.FieldErrorKind, services.Kind(result.Err))
		}
	}

	if m.store != nil && jobID != "" {
		detail := fmt.Sprintf("restored=%d failed=%d", report.Succeeded(), report.Failed())
		if err := m.store.AppendHistory(ctx, jobID, "restore_all", detail); err != nil {
			m.logger.Warn("history append failed", logging.FieldErrorHint, err.Error())
		}
	}
	return report, nil
}

func (m *Manager) restoreOne(ctx context.Context, itemID string) error {
	original, _, err := m.posters.Read(itemID, posters.BucketOriginal)
	if err != nil {
		return err
	}
	if err := m.catalog.SetPrimaryImage(ctx, itemID, original, ""); err != nil {
		return err
	}
	if err := m.posters.DeleteModified(itemID); err != nil {
		return err
	}
	if err := m.catalog.RemoveTag(ctx, itemID, m.catalog.Tag()); err != nil {
		m.logger.Warn("tag removal failed after restore",
			logging.FieldItemID, itemID,
			logging.FieldErrorKind, services.Kind(err))
	}
	return nil
}
