package api

import (
	"context"
	"errors"
	"testing"

	"github.com/jackkerouac/aphrodite-sub000/internal/catalog"
	"github.com/jackkerouac/aphrodite-sub000/internal/engine"
	"github.com/jackkerouac/aphrodite-sub000/internal/jobs"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

type fakeEngine struct {
	batchItems []jobs.NewItem
	batchMask  []string
	singleID   string
	revertIDs  []string
	listArgs   []jobs.Status
}

func (f *fakeEngine) SubmitBatch(_ context.Context, items []jobs.NewItem, badgeTypes []string, _ string) (*jobs.Job, error) {
	f.batchItems = items
	f.batchMask = badgeTypes
	return &jobs.Job{ID: "job-batch", Type: jobs.TypeBatch, Progress: jobs.Progress{Total: len(items)}}, nil
}

func (f *fakeEngine) SubmitSingle(_ context.Context, itemID, _ string, _ []string, _ string) (*jobs.Job, error) {
	f.singleID = itemID
	return &jobs.Job{ID: "job-single", Type: jobs.TypeSingle}, nil
}

func (f *fakeEngine) SubmitRevert(_ context.Context, itemIDs []string) (*jobs.Job, error) {
	f.revertIDs = itemIDs
	return &jobs.Job{ID: "job-revert", Type: jobs.TypeRevert}, nil
}

func (f *fakeEngine) SubmitRestore(context.Context) (*jobs.Job, error) {
	return &jobs.Job{ID: "job-restore", Type: jobs.TypeRestore}, nil
}

func (f *fakeEngine) Get(_ context.Context, jobID string) (*jobs.Job, error) {
	return &jobs.Job{ID: jobID, Type: jobs.TypeBatch, Status: jobs.StatusSucceeded}, nil
}

func (f *fakeEngine) Items(_ context.Context, jobID string) ([]*jobs.Item, error) {
	return []*jobs.Item{{JobID: jobID, ItemID: "m1", Status: jobs.ItemStatusOK}}, nil
}

func (f *fakeEngine) List(_ context.Context, _ int, statuses ...jobs.Status) ([]*jobs.Job, error) {
	f.listArgs = statuses
	return nil, nil
}

func (f *fakeEngine) Cancel(context.Context, string) (bool, error) { return true, nil }

func (f *fakeEngine) StreamProgress(context.Context, string) (<-chan engine.ProgressEvent, func(), error) {
	ch := make(chan engine.ProgressEvent)
	close(ch)
	return ch, func() {}, nil
}

type stubLister struct {
	items map[string][]catalog.ItemSummary
	err   error
}

func (s *stubLister) ListAllItems(_ context.Context, libraryID string, _ catalog.ListOptions) ([]catalog.ItemSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.items[libraryID], nil
}

func TestSubmitBatchMergesItemsAndLibraries(t *testing.T) {
	eng := &fakeEngine{}
	svc := NewJobService(eng, &stubLister{items: map[string][]catalog.ItemSummary{
		"lib-1": {{ID: "m2", Type: "Movie"}, {ID: "s1", Type: "Series"}},
	}})

	job, err := svc.SubmitBatch(context.Background(), BatchRequest{
		Items:      []SubmitItem{{ItemID: "m1", Kind: "movie"}},
		Libraries:  []string{"lib-1"},
		BadgeTypes: []string{"audio"},
	})
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	if job.ID != "job-batch" {
		t.Fatalf("job = %+v", job)
	}
	if len(eng.batchItems) != 3 {
		t.Fatalf("items = %+v, want explicit item plus two expanded", eng.batchItems)
	}
	if eng.batchItems[1].Kind != "movie" || eng.batchItems[2].Kind != "series" {
		t.Fatalf("expanded kinds = %+v", eng.batchItems)
	}
}

func TestSubmitBatchRequiresWork(t *testing.T) {
	svc := NewJobService(&fakeEngine{}, &stubLister{})
	_, err := svc.SubmitBatch(context.Background(), BatchRequest{})
	if !errors.Is(err, services.ErrConfigInvalid) {
		t.Fatalf("expected config_invalid, got %v", err)
	}
}

func TestSubmitBatchPropagatesListerFailure(t *testing.T) {
	boom := services.Wrap(services.ErrCatalogUnreachable, "catalog", "items", "", nil)
	svc := NewJobService(&fakeEngine{}, &stubLister{err: boom})
	_, err := svc.SubmitBatch(context.Background(), BatchRequest{Libraries: []string{"lib-1"}})
	if !errors.Is(err, services.ErrCatalogUnreachable) {
		t.Fatalf("expected catalog error, got %v", err)
	}
}

func TestSubmitRevertDropsBlankIDs(t *testing.T) {
	eng := &fakeEngine{}
	svc := NewJobService(eng, nil)
	if _, err := svc.SubmitRevert(context.Background(), RevertRequest{ItemIDs: []string{"m1", " ", "m2"}}); err != nil {
		t.Fatalf("SubmitRevert: %v", err)
	}
	if len(eng.revertIDs) != 2 {
		t.Fatalf("revert ids = %v", eng.revertIDs)
	}
	if _, err := svc.SubmitRevert(context.Background(), RevertRequest{ItemIDs: []string{"  "}}); !errors.Is(err, services.ErrConfigInvalid) {
		t.Fatalf("expected config_invalid for blank-only ids, got %v", err)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	eng := &fakeEngine{}
	svc := NewJobService(eng, nil)
	if _, err := svc.List(context.Background(), 10, "bogus"); !errors.Is(err, services.ErrConfigInvalid) {
		t.Fatalf("expected config_invalid, got %v", err)
	}
	if _, err := svc.List(context.Background(), 10, "queued", "running"); err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(eng.listArgs) != 2 {
		t.Fatalf("statuses forwarded = %v", eng.listArgs)
	}
}

func TestDescribeBundlesItems(t *testing.T) {
	svc := NewJobService(&fakeEngine{}, nil)
	detail, err := svc.Describe(context.Background(), "job-9")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if detail.Job.ID != "job-9" || len(detail.Items) != 1 || detail.Items[0].ItemID != "m1" {
		t.Fatalf("detail = %+v", detail)
	}
}
