package api

import (
	"github.com/jackkerouac/aphrodite-sub000/internal/enrich"
	"github.com/jackkerouac/aphrodite-sub000/internal/logging"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a job in a transport-friendly format.
type Job struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	Status          string   `json:"status"`
	BadgeTypes      []string `json:"badgeTypes,omitempty"`
	Progress        Progress `json:"progress"`
	ResultSummary   string   `json:"resultSummary,omitempty"`
	ErrorMessage    string   `json:"errorMessage,omitempty"`
	CancelRequested bool     `json:"cancelRequested"`
	CreatedAt       string   `json:"createdAt,omitempty"`
	StartedAt       string   `json:"startedAt,omitempty"`
	FinishedAt      string   `json:"finishedAt,omitempty"`
}

// Progress captures item counters for a job.
type Progress struct {
	Total     int `json:"total"`
	Done      int `json:"done"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Remaining int `json:"remaining"`
}

// JobItem describes one work unit of a job.
type JobItem struct {
	ItemID        string   `json:"itemId"`
	Kind          string   `json:"kind,omitempty"`
	Status        string   `json:"status"`
	ErrorKind     string   `json:"errorKind,omitempty"`
	ErrorMessage  string   `json:"errorMessage,omitempty"`
	BadgesApplied []string `json:"badgesApplied,omitempty"`
	Attempts      int      `json:"attempts"`
	DurationMS    int64    `json:"durationMs"`
	UpdatedAt     string   `json:"updatedAt,omitempty"`
}

// SubmitItem names one catalog item in a batch request.
type SubmitItem struct {
	ItemID string `json:"itemId"`
	Kind   string `json:"kind,omitempty"`
}

// BatchRequest submits a batch job over explicit items, whole libraries, or
// both. An empty Libraries entry means the entire catalog.
type BatchRequest struct {
	Items      []SubmitItem      `json:"items,omitempty"`
	Libraries  []string          `json:"libraries,omitempty"`
	BadgeTypes []string          `json:"badgeTypes,omitempty"`
	Options    map[string]string `json:"options,omitempty"`
}

// SingleRequest submits a one-item job.
type SingleRequest struct {
	ItemID     string            `json:"itemId"`
	Kind       string            `json:"kind,omitempty"`
	BadgeTypes []string          `json:"badgeTypes,omitempty"`
	Options    map[string]string `json:"options,omitempty"`
}

// RevertRequest submits a revert job over explicit items.
type RevertRequest struct {
	ItemIDs []string `json:"itemIds"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobDetailResponse wraps a job together with its items.
type JobDetailResponse struct {
	Job   Job       `json:"job"`
	Items []JobItem `json:"items"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// CancelResponse reports the outcome of a cancel request.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// PosterSourcesResponse lists downloadable poster candidates for an item.
type PosterSourcesResponse struct {
	ItemID  string                `json:"itemId"`
	TmdbID  string                `json:"tmdbId"`
	Sources []enrich.PosterSource `json:"sources"`
}

// ReplacePosterRequest swaps an item's poster for a discovered source.
type ReplacePosterRequest struct {
	SourceURL   string   `json:"sourceUrl"`
	ApplyBadges bool     `json:"applyBadges"`
	BadgeTypes  []string `json:"badgeTypes,omitempty"`
}

// CustomPosterRequest uploads operator-provided poster bytes.
type CustomPosterRequest struct {
	ImageBase64 string   `json:"imageBase64"`
	ApplyBadges bool     `json:"applyBadges"`
	BadgeTypes  []string `json:"badgeTypes,omitempty"`
}

// PosterActionResponse reports a poster replacement and the badge job it
// spawned, if any.
type PosterActionResponse struct {
	ItemID string `json:"itemId"`
	Stored bool   `json:"stored"`
	Job    *Job   `json:"job,omitempty"`
}

// ConfigValue is one typed setting in a category payload.
type ConfigValue struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

// ConfigCategoryResponse holds all settings of one category.
type ConfigCategoryResponse struct {
	Category string                 `json:"category"`
	Values   map[string]ConfigValue `json:"values"`
}

// ConfigUpdateRequest writes settings into one category.
type ConfigUpdateRequest struct {
	Values map[string]ConfigValue `json:"values"`
}

// Schedule describes a stored cron schedule.
type Schedule struct {
	ID         int64             `json:"id"`
	Name       string            `json:"name"`
	CronExpr   string            `json:"cronExpr"`
	Enabled    bool              `json:"enabled"`
	BadgeTypes []string          `json:"badgeTypes,omitempty"`
	Options    map[string]string `json:"options,omitempty"`
	Targets    []string          `json:"targets,omitempty"`
	CreatedAt  string            `json:"createdAt,omitempty"`
	LastRunAt  string            `json:"lastRunAt,omitempty"`
	NextRunAt  string            `json:"nextRunAt,omitempty"`
}

// ScheduleRequest creates a new schedule.
type ScheduleRequest struct {
	Name       string            `json:"name"`
	CronExpr   string            `json:"cronExpr"`
	Enabled    bool              `json:"enabled"`
	BadgeTypes []string          `json:"badgeTypes,omitempty"`
	Options    map[string]string `json:"options,omitempty"`
	Targets    []string          `json:"targets,omitempty"`
}

// ScheduleResponse wraps a single schedule.
type ScheduleResponse struct {
	Schedule Schedule `json:"schedule"`
}

// ScheduleListResponse wraps a collection of schedules.
type ScheduleListResponse struct {
	Schedules []Schedule `json:"schedules"`
}

// HealthCheck reports readiness of one subsystem.
type HealthCheck struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse aggregates subsystem readiness.
type HealthResponse struct {
	Healthy bool          `json:"healthy"`
	Checks  []HealthCheck `json:"checks"`
}

// StatusResponse aggregates daemon runtime information.
type StatusResponse struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	Version      string         `json:"version,omitempty"`
	JobsDBPath   string         `json:"jobsDbPath,omitempty"`
	LockFilePath string         `json:"lockFilePath,omitempty"`
	JobCounts    map[string]int `json:"jobCounts,omitempty"`
	Schedules    int            `json:"schedules"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// LogListResponse carries a slice of daemon log events plus the cursor for
// resuming a tail.
type LogListResponse struct {
	Events  []logging.LogEvent `json:"events"`
	NextSeq uint64             `json:"nextSeq"`
}
