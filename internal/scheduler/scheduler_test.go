package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackkerouac/aphrodite-sub000/internal/catalog"
	"github.com/jackkerouac/aphrodite-sub000/internal/jobs"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	batches [][]jobs.NewItem
	masks   [][]string
}

func (f *fakeSubmitter) SubmitBatch(_ context.Context, items []jobs.NewItem, badgeTypes []string, _ string) (*jobs.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, items)
	f.masks = append(f.masks, badgeTypes)
	return &jobs.Job{ID: "job-1", Type: jobs.TypeBatch, Progress: jobs.Progress{Total: len(items)}}, nil
}

type fakeLister struct {
	mu        sync.Mutex
	libraries []string
	items     map[string][]catalog.ItemSummary
}

func (f *fakeLister) ListAllItems(_ context.Context, libraryID string, _ catalog.ListOptions) ([]catalog.ItemSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.libraries = append(f.libraries, libraryID)
	return f.items[libraryID], nil
}

func testStore(t *testing.T) *jobs.Store {
	t.Helper()
	store, err := jobs.OpenPath(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("jobs.OpenPath: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFireSubmitsBatchAndMarksRun(t *testing.T) {
	store := testStore(t)
	submitter := &fakeSubmitter{}
	lister := &fakeLister{items: map[string][]catalog.ItemSummary{
		"lib-1": {
			{ID: "m1", Type: "Movie"},
			{ID: "s1", Type: "Series"},
		},
	}}

	schedule, err := store.CreateSchedule(context.Background(), &jobs.Schedule{
		Name:       "nightly",
		CronExpr:   "0 3 * * *",
		Enabled:    true,
		BadgeTypes: []string{"audio", "resolution"},
		Targets:    []string{"lib-1"},
	})
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}

	runner := New(store, submitter, lister, nil)
	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer runner.Stop()

	runner.fire(schedule)

	submitter.mu.Lock()
	defer submitter.mu.Unlock()
	if len(submitter.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(submitter.batches))
	}
	items := submitter.batches[0]
	if len(items) != 2 || items[0].ItemID != "m1" || items[1].ItemID != "s1" {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Kind != "movie" || items[1].Kind != "series" {
		t.Fatalf("kinds = %q/%q, want movie/series", items[0].Kind, items[1].Kind)
	}
	if len(submitter.masks[0]) != 2 {
		t.Fatalf("badge mask = %v, want the schedule's", submitter.masks[0])
	}

	stored, err := store.GetSchedule(context.Background(), schedule.ID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if stored.LastRunAt == nil {
		t.Fatal("last run marker not stamped")
	}
	if stored.NextRunAt == nil || !stored.NextRunAt.After(time.Now().Add(-time.Minute)) {
		t.Fatalf("next run marker = %v", stored.NextRunAt)
	}
}

func TestFireWithoutTargetsSweepsWholeCatalog(t *testing.T) {
	store := testStore(t)
	submitter := &fakeSubmitter{}
	lister := &fakeLister{items: map[string][]catalog.ItemSummary{
		"": {{ID: "m1", Type: "Movie"}},
	}}

	runner := New(store, submitter, lister, nil)
	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer runner.Stop()

	runner.fire(&jobs.Schedule{ID: 1, Name: "all", CronExpr: "@daily", Enabled: true})

	lister.mu.Lock()
	defer lister.mu.Unlock()
	if len(lister.libraries) != 1 || lister.libraries[0] != "" {
		t.Fatalf("libraries queried = %v, want the unscoped catalog", lister.libraries)
	}
}

// blockingSubmitter parks the first submission until released so a second
// fire can arrive while the first is still in flight.
type blockingSubmitter struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (f *blockingSubmitter) SubmitBatch(_ context.Context, items []jobs.NewItem, _ []string, _ string) (*jobs.Job, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	f.started <- struct{}{}
	<-f.release
	return &jobs.Job{ID: "job-1", Type: jobs.TypeBatch, Progress: jobs.Progress{Total: len(items)}}, nil
}

func TestOverlappingFireIsSkipped(t *testing.T) {
	store := testStore(t)
	submitter := &blockingSubmitter{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	lister := &fakeLister{items: map[string][]catalog.ItemSummary{
		"": {{ID: "m1", Type: "Movie"}},
	}}

	schedule, err := store.CreateSchedule(context.Background(), &jobs.Schedule{
		Name: "sweep", CronExpr: "@daily", Enabled: true,
	})
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}

	runner := New(store, submitter, lister, nil)
	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer runner.Stop()

	job := runner.cron.Entry(runner.entries[schedule.ID]).WrappedJob

	done := make(chan struct{})
	go func() {
		job.Run()
		close(done)
	}()
	<-submitter.started

	// The first fire is parked inside SubmitBatch; a second fire of the same
	// entry must return immediately without submitting another batch.
	job.Run()

	close(submitter.release)
	<-done

	submitter.mu.Lock()
	defer submitter.mu.Unlock()
	if submitter.calls != 1 {
		t.Fatalf("submissions = %d, want the overlapping fire skipped", submitter.calls)
	}
}

func TestReloadRegistersOnlyEnabledValidSchedules(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if _, err := store.CreateSchedule(ctx, &jobs.Schedule{Name: "on", CronExpr: "0 3 * * *", Enabled: true}); err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	if _, err := store.CreateSchedule(ctx, &jobs.Schedule{Name: "off", CronExpr: "0 4 * * *", Enabled: false}); err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	if _, err := store.CreateSchedule(ctx, &jobs.Schedule{Name: "bad", CronExpr: "not a cron", Enabled: true}); err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}

	runner := New(store, &fakeSubmitter{}, &fakeLister{}, nil)
	if err := runner.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if len(runner.entries) != 1 {
		t.Fatalf("entries = %d, want only the enabled valid schedule", len(runner.entries))
	}
}

func TestNextRun(t *testing.T) {
	runner := New(testStore(t), &fakeSubmitter{}, &fakeLister{}, nil)
	next := runner.nextRun(&jobs.Schedule{CronExpr: "0 3 * * *"})
	if next.IsZero() || !next.After(time.Now()) {
		t.Fatalf("next = %v, want a future firing", next)
	}
	if got := runner.nextRun(&jobs.Schedule{CronExpr: "garbage"}); !got.IsZero() {
		t.Fatalf("invalid expr should yield zero time, got %v", got)
	}
}
