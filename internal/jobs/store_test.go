package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateJobDeduplicatesItems(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, TypeBatch, []string{"audio", "resolution"}, "", []NewItem{
		{ItemID: "a", Kind: "movie"},
		{ItemID: "b", Kind: "series"},
		{ItemID: "a", Kind: "movie"},
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.Status != StatusQueued {
		t.Fatalf("status = %s, want queued", job.Status)
	}
	if job.Progress.Total != 2 {
		t.Fatalf("total = %d, want 2", job.Progress.Total)
	}
	if len(job.BadgeTypes) != 2 || job.BadgeTypes[0] != "audio" {
		t.Fatalf("badge types = %v", job.BadgeTypes)
	}

	items, err := store.JobItems(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}

	missing, err := store.GetJob(ctx, "nope")
	if err != nil {
		t.Fatalf("GetJob missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown job, got %+v", missing)
	}
}

func TestClaimServesJobsFairly(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.CreateJob(ctx, TypeBatch, nil, "", []NewItem{{ItemID: "a1"}, {ItemID: "a2"}})
	if err != nil {
		t.Fatalf("create first job: %v", err)
	}
	second, err := store.CreateJob(ctx, TypeBatch, nil, "", []NewItem{{ItemID: "b1"}})
	if err != nil {
		t.Fatalf("create second job: %v", err)
	}

	var order []string
	for i := 0; i < 3; i++ {
		item, err := store.ClaimNextItem(ctx)
		if err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		if item == nil {
			t.Fatalf("claim %d returned nothing", i)
		}
		if item.Status != ItemStatusRunning || item.Attempts != 1 {
			t.Fatalf("claimed item = %+v", item)
		}
		order = append(order, item.JobID)
	}

	// A big early batch must not starve the later submission.
	want := []string{first.ID, second.ID, first.ID}
	for i, jobID := range want {
		if order[i] != jobID {
			t.Fatalf("claim order = %v, want %v", order, want)
		}
	}

	if item, err := store.ClaimNextItem(ctx); err != nil || item != nil {
		t.Fatalf("expected empty claim, got %+v (err %v)", item, err)
	}

	running, err := store.GetJob(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if running.Status != StatusRunning || running.StartedAt == nil {
		t.Fatalf("job after claim = %+v", running)
	}
}

func TestRecordItemResultBumpsProgress(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, TypeBatch, nil, "", []NewItem{{ItemID: "a"}, {ItemID: "b"}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	okItem, err := store.ClaimNextItem(ctx)
	if err != nil || okItem == nil {
		t.Fatalf("claim: %v %v", okItem, err)
	}
	okItem.Status = ItemStatusOK
	okItem.BadgesApplied = []string{"audio"}
	okItem.DurationMS = 120
	if err := store.RecordItemResult(ctx, okItem); err != nil {
		t.Fatalf("record ok: %v", err)
	}

	failedItem, err := store.ClaimNextItem(ctx)
	if err != nil || failedItem == nil {
		t.Fatalf("claim: %v %v", failedItem, err)
	}
	failedItem.Status = ItemStatusFailed
	failedItem.ErrorKind = "image_fetch_failed"
	failedItem.ErrorMessage = "poster download failed"
	if err := store.RecordItemResult(ctx, failedItem); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	updated, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	progress := updated.Progress
	if progress.Done != 1 || progress.Failed != 1 || progress.Remaining() != 0 {
		t.Fatalf("progress = %+v", progress)
	}

	stored, err := store.GetJobItem(ctx, job.ID, okItem.ItemID)
	if err != nil {
		t.Fatalf("GetJobItem: %v", err)
	}
	if stored.Status != ItemStatusOK || len(stored.BadgesApplied) != 1 || stored.DurationMS != 120 {
		t.Fatalf("stored item = %+v", stored)
	}

	counts, err := store.CountItemStatuses(ctx, job.ID)
	if err != nil {
		t.Fatalf("CountItemStatuses: %v", err)
	}
	if counts[ItemStatusOK] != 1 || counts[ItemStatusFailed] != 1 {
		t.Fatalf("counts = %v", counts)
	}

	if err := store.RecordItemResult(ctx, &Item{ID: 99, JobID: job.ID, Status: ItemStatusRunning}); err == nil {
		t.Fatal("expected error recording non-terminal status")
	}
}

func TestCancelSweepSkipsQueuedItems(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, TypeBatch, nil, "", []NewItem{{ItemID: "a"}, {ItemID: "b"}, {ItemID: "c"}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := store.ClaimNextItem(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	acknowledged, err := store.RequestCancel(ctx, job.ID)
	if err != nil || !acknowledged {
		t.Fatalf("RequestCancel = %v, %v", acknowledged, err)
	}
	again, err := store.RequestCancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("second RequestCancel: %v", err)
	}
	if again {
		t.Fatal("repeated cancel should be a no-op")
	}

	skipped, err := store.SkipQueuedItems(ctx, job.ID, "cancelled", "job cancelled")
	if err != nil {
		t.Fatalf("SkipQueuedItems: %v", err)
	}
	if skipped != 2 {
		t.Fatalf("skipped = %d, want 2", skipped)
	}

	updated, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if updated.Progress.Skipped != 2 || !updated.CancelRequested {
		t.Fatalf("job after sweep = %+v", updated)
	}

	// Cancelled jobs hand out no further work.
	if item, err := store.ClaimNextItem(ctx); err != nil || item != nil {
		t.Fatalf("expected empty claim, got %+v (err %v)", item, err)
	}
}

func TestSetJobStatusStampsTimestamps(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, TypeSingle, nil, "", []NewItem{{ItemID: "a"}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if err := store.SetJobStatus(ctx, job.ID, StatusRunning, "", ""); err != nil {
		t.Fatalf("set running: %v", err)
	}
	running, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if running.StartedAt == nil || running.FinishedAt != nil {
		t.Fatalf("running job = %+v", running)
	}

	if err := store.SetJobStatus(ctx, job.ID, StatusPartial, "1 ok, 1 failed", "one item failed"); err != nil {
		t.Fatalf("set partial: %v", err)
	}
	finished, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if finished.FinishedAt == nil || finished.ResultSummary != "1 ok, 1 failed" || finished.ErrorMessage != "one item failed" {
		t.Fatalf("finished job = %+v", finished)
	}
	if !finished.Status.IsTerminal() {
		t.Fatalf("status %s should be terminal", finished.Status)
	}
}

func TestResetStuckRunningRequeuesItems(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, TypeBatch, nil, "", []NewItem{{ItemID: "a"}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	claimed, err := store.ClaimNextItem(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %v", claimed, err)
	}

	reset, err := store.ResetStuckRunning(ctx)
	if err != nil {
		t.Fatalf("ResetStuckRunning: %v", err)
	}
	if reset != 1 {
		t.Fatalf("reset = %d, want 1", reset)
	}

	item, err := store.GetJobItem(ctx, job.ID, "a")
	if err != nil {
		t.Fatalf("GetJobItem: %v", err)
	}
	if item.Status != ItemStatusQueued || item.Attempts != 1 {
		t.Fatalf("item after reset = %+v", item)
	}
}

func TestScheduleLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	created, err := store.CreateSchedule(ctx, &Schedule{
		Name:       "nightly",
		CronExpr:   "0 3 * * *",
		Enabled:    true,
		BadgeTypes: []string{"audio"},
		Options:    map[string]string{"resolution_preference": "max"},
		Targets:    []string{"lib1", "lib2"},
	})
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	if created.ID == 0 || !created.Enabled {
		t.Fatalf("created = %+v", created)
	}
	if created.Options["resolution_preference"] != "max" || len(created.Targets) != 2 {
		t.Fatalf("detail = %+v", created)
	}

	if err := store.SetScheduleEnabled(ctx, created.ID, false); err != nil {
		t.Fatalf("SetScheduleEnabled: %v", err)
	}
	ranAt := time.Now().UTC()
	if err := store.MarkScheduleRun(ctx, created.ID, ranAt, ranAt.Add(24*time.Hour)); err != nil {
		t.Fatalf("MarkScheduleRun: %v", err)
	}

	fetched, err := store.GetSchedule(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if fetched.Enabled {
		t.Fatal("schedule should be disabled")
	}
	if fetched.LastRunAt == nil || fetched.NextRunAt == nil {
		t.Fatalf("run markers = %+v", fetched)
	}

	deleted, err := store.DeleteSchedule(ctx, created.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteSchedule = %v, %v", deleted, err)
	}
	deleted, err = store.DeleteSchedule(ctx, created.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if deleted {
		t.Fatal("second delete should report absence")
	}

	listed, err := store.ListSchedules(ctx)
	if err != nil {
		t.Fatalf("ListSchedules: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("schedules = %d, want 0", len(listed))
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, TypeRevert, nil, "", []NewItem{{ItemID: "a"}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	for _, event := range []string{"created", "started", "finished"} {
		if err := store.AppendHistory(ctx, job.ID, event, ""); err != nil {
			t.Fatalf("AppendHistory %s: %v", event, err)
		}
	}

	entries, err := store.History(ctx, job.ID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 3 || entries[0].Event != "created" || entries[2].Event != "finished" {
		t.Fatalf("entries = %+v", entries)
	}

	recent, err := store.RecentHistory(ctx, 2)
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if len(recent) != 2 || recent[0].Event != "finished" {
		t.Fatalf("recent = %+v", recent)
	}
}
