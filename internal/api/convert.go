package api

import (
	"time"

	"github.com/jackkerouac/aphrodite-sub000/internal/jobs"
)

// FromJob converts a job record to its API representation.
func FromJob(job *jobs.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:              job.ID,
		Type:            string(job.Type),
		Status:          string(job.Status),
		BadgeTypes:      job.BadgeTypes,
		Progress:        FromProgress(job.Progress),
		ResultSummary:   job.ResultSummary,
		ErrorMessage:    job.ErrorMessage,
		CancelRequested: job.CancelRequested,
		CreatedAt:       FormatTime(job.CreatedAt),
	}
	if job.StartedAt != nil {
		dto.StartedAt = FormatTime(*job.StartedAt)
	}
	if job.FinishedAt != nil {
		dto.FinishedAt = FormatTime(*job.FinishedAt)
	}
	return dto
}

// FromJobs converts a slice of job records into API DTOs.
func FromJobs(records []*jobs.Job) []Job {
	if len(records) == 0 {
		return nil
	}
	out := make([]Job, 0, len(records))
	for _, job := range records {
		out = append(out, FromJob(job))
	}
	return out
}

// FromProgress converts item counters, deriving the remaining count.
func FromProgress(p jobs.Progress) Progress {
	return Progress{
		Total:     p.Total,
		Done:      p.Done,
		Failed:    p.Failed,
		Skipped:   p.Skipped,
		Remaining: p.Remaining(),
	}
}

// FromJobItem converts a work unit record to its API representation.
func FromJobItem(item *jobs.Item) JobItem {
	if item == nil {
		return JobItem{}
	}
	return JobItem{
		ItemID:        item.ItemID,
		Kind:          item.ItemKind,
		Status:        string(item.Status),
		ErrorKind:     item.ErrorKind,
		ErrorMessage:  item.ErrorMessage,
		BadgesApplied: item.BadgesApplied,
		Attempts:      item.Attempts,
		DurationMS:    item.DurationMS,
		UpdatedAt:     FormatTime(item.UpdatedAt),
	}
}

// FromJobItems converts a slice of work unit records into API DTOs.
func FromJobItems(items []*jobs.Item) []JobItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]JobItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromJobItem(item))
	}
	return out
}

// FromSchedule converts a schedule record to its API representation.
func FromSchedule(schedule *jobs.Schedule) Schedule {
	if schedule == nil {
		return Schedule{}
	}
	dto := Schedule{
		ID:         schedule.ID,
		Name:       schedule.Name,
		CronExpr:   schedule.CronExpr,
		Enabled:    schedule.Enabled,
		BadgeTypes: schedule.BadgeTypes,
		Options:    schedule.Options,
		Targets:    schedule.Targets,
		CreatedAt:  FormatTime(schedule.CreatedAt),
	}
	if schedule.LastRunAt != nil {
		dto.LastRunAt = FormatTime(*schedule.LastRunAt)
	}
	if schedule.NextRunAt != nil {
		dto.NextRunAt = FormatTime(*schedule.NextRunAt)
	}
	return dto
}

// FromSchedules converts a slice of schedule records into API DTOs.
func FromSchedules(records []*jobs.Schedule) []Schedule {
	if len(records) == 0 {
		return nil
	}
	out := make([]Schedule, 0, len(records))
	for _, schedule := range records {
		out = append(out, FromSchedule(schedule))
	}
	return out
}

// MergeJobStats produces a string-keyed representation of job stats.
func MergeJobStats(stats map[jobs.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns the empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
