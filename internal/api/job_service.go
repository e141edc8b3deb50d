package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackkerouac/aphrodite-sub000/internal/catalog"
	"github.com/jackkerouac/aphrodite-sub000/internal/engine"
	"github.com/jackkerouac/aphrodite-sub000/internal/jobs"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

// JobEngine abstracts the engine operations the job service needs.
type JobEngine interface {
	SubmitBatch(ctx context.Context, items []jobs.NewItem, badgeTypes []string, optionsJSON string) (*jobs.Job, error)
	SubmitSingle(ctx context.Context, itemID, kind string, badgeTypes []string, optionsJSON string) (*jobs.Job, error)
	SubmitRevert(ctx context.Context, itemIDs []string) (*jobs.Job, error)
	SubmitRestore(ctx context.Context) (*jobs.Job, error)
	Get(ctx context.Context, jobID string) (*jobs.Job, error)
	Items(ctx context.Context, jobID string) ([]*jobs.Item, error)
	List(ctx context.Context, limit int, statuses ...jobs.Status) ([]*jobs.Job, error)
	Cancel(ctx context.Context, jobID string) (bool, error)
	StreamProgress(ctx context.Context, jobID string) (<-chan engine.ProgressEvent, func(), error)
}

// Lister enumerates catalog items when a batch request names libraries.
type Lister interface {
	ListAllItems(ctx context.Context, libraryID string, opts catalog.ListOptions) ([]catalog.ItemSummary, error)
}

// libraryTypes limits library expansion to top-level badgeable items.
var libraryTypes = []string{"Movie", "Series"}

// JobService exposes job submission and inspection returning API DTOs.
type JobService struct {
	engine  JobEngine
	catalog Lister
}

// NewJobService constructs a JobService around the engine and catalog.
func NewJobService(eng JobEngine, lister Lister) *JobService {
	return &JobService{engine: eng, catalog: lister}
}

// SubmitBatch validates and submits a batch job, expanding any library
// targets into their items. Duplicate item IDs collapse in the job store.
func (s *JobService) SubmitBatch(ctx context.Context, req BatchRequest) (Job, error) {
	items := make([]jobs.NewItem, 0, len(req.Items))
	for _, item := range req.Items {
		if strings.TrimSpace(item.ItemID) == "" {
			return Job{}, services.Wrap(services.ErrConfigInvalid, "api", "submit_batch", "item id required", nil)
		}
		items = append(items, jobs.NewItem{ItemID: item.ItemID, Kind: item.Kind})
	}
	for _, libraryID := range req.Libraries {
		expanded, err := s.expandLibrary(ctx, libraryID)
		if err != nil {
			return Job{}, err
		}
		items = append(items, expanded...)
	}
	if len(items) == 0 {
		return Job{}, services.Wrap(services.ErrConfigInvalid, "api", "submit_batch", "batch requires items or libraries", nil)
	}

	job, err := s.engine.SubmitBatch(ctx, items, req.BadgeTypes, encodeOptions(req.Options))
	if err != nil {
		return Job{}, err
	}
	return FromJob(job), nil
}

// SubmitSingle validates and submits a one-item job.
func (s *JobService) SubmitSingle(ctx context.Context, req SingleRequest) (Job, error) {
	if strings.TrimSpace(req.ItemID) == "" {
		return Job{}, services.Wrap(services.ErrConfigInvalid, "api", "submit_single", "item id required", nil)
	}
	job, err := s.engine.SubmitSingle(ctx, req.ItemID, req.Kind, req.BadgeTypes, encodeOptions(req.Options))
	if err != nil {
		return Job{}, err
	}
	return FromJob(job), nil
}

// SubmitRevert submits a revert job over the named items.
func (s *JobService) SubmitRevert(ctx context.Context, req RevertRequest) (Job, error) {
	ids := make([]string, 0, len(req.ItemIDs))
	for _, id := range req.ItemIDs {
		if strings.TrimSpace(id) == "" {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return Job{}, services.Wrap(services.ErrConfigInvalid, "api", "submit_revert", "item ids required", nil)
	}
	job, err := s.engine.SubmitRevert(ctx, ids)
	if err != nil {
		return Job{}, err
	}
	return FromJob(job), nil
}

// SubmitRestore submits a restore-all job.
func (s *JobService) SubmitRestore(ctx context.Context) (Job, error) {
	job, err := s.engine.SubmitRestore(ctx)
	if err != nil {
		return Job{}, err
	}
	return FromJob(job), nil
}

// Describe fetches a job together with its items.
func (s *JobService) Describe(ctx context.Context, jobID string) (JobDetailResponse, error) {
	job, err := s.engine.Get(ctx, jobID)
	if err != nil {
		return JobDetailResponse{}, err
	}
	if job == nil {
		return JobDetailResponse{}, services.Wrap(services.ErrCatalogNotFound, "api", "get_job",
			fmt.Sprintf("job %s not found", jobID), nil)
	}
	items, err := s.engine.Items(ctx, jobID)
	if err != nil {
		return JobDetailResponse{}, err
	}
	return JobDetailResponse{Job: FromJob(job), Items: FromJobItems(items)}, nil
}

// List returns recent jobs, optionally filtered by status names.
func (s *JobService) List(ctx context.Context, limit int, statusNames ...string) ([]Job, error) {
	statuses := make([]jobs.Status, 0, len(statusNames))
	for _, name := range statusNames {
		status, ok := jobs.ParseStatus(name)
		if !ok {
			return nil, services.Wrap(services.ErrConfigInvalid, "api", "list_jobs",
				fmt.Sprintf("unknown status %q", name), nil)
		}
		statuses = append(statuses, status)
	}
	records, err := s.engine.List(ctx, limit, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(records), nil
}

// Cancel requests cancellation of a job.
func (s *JobService) Cancel(ctx context.Context, jobID string) (bool, error) {
	return s.engine.Cancel(ctx, jobID)
}

// Stream subscribes to a job's progress events.
func (s *JobService) Stream(ctx context.Context, jobID string) (<-chan engine.ProgressEvent, func(), error) {
	return s.engine.StreamProgress(ctx, jobID)
}

func (s *JobService) expandLibrary(ctx context.Context, libraryID string) ([]jobs.NewItem, error) {
	if s.catalog == nil {
		return nil, services.Wrap(services.ErrConfigInvalid, "api", "submit_batch", "catalog unavailable for library expansion", nil)
	}
	summaries, err := s.catalog.ListAllItems(ctx, libraryID, catalog.ListOptions{
		IncludeTypes: libraryTypes,
		Recursive:    true,
	})
	if err != nil {
		return nil, err
	}
	items := make([]jobs.NewItem, 0, len(summaries))
	for _, summary := range summaries {
		items = append(items, jobs.NewItem{ItemID: summary.ID, Kind: string(summary.Kind())})
	}
	return items, nil
}

func encodeOptions(options map[string]string) string {
	if len(options) == 0 {
		return ""
	}
	encoded, err := json.Marshal(options)
	if err != nil {
		return ""
	}
	return string(encoded)
}
