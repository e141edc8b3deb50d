package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusPartial   Status = "partial"
)

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusSucceeded,
	StatusFailed,
	StatusCancelled,
	StatusPartial,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known job statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a job status admits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled, StatusPartial:
		return true
	default:
		return false
	}
}

// Type distinguishes how a job was submitted and what its items do.
type Type string

const (
	TypeSingle  Type = "single"
	TypeBatch   Type = "batch"
	TypeRevert  Type = "revert"
	TypeRestore Type = "restore"
)

// ParseType converts a string into a known Type.
func ParseType(value string) (Type, bool) {
	switch Type(strings.ToLower(strings.TrimSpace(value))) {
	case TypeSingle:
		return TypeSingle, true
	case TypeBatch:
		return TypeBatch, true
	case TypeRevert:
		return TypeRevert, true
	case TypeRestore:
		return TypeRestore, true
	default:
		return "", false
	}
}

// ItemStatus represents the lifecycle of one work unit within a job.
type ItemStatus string

const (
	ItemStatusQueued  ItemStatus = "queued"
	ItemStatusRunning ItemStatus = "running"
	ItemStatusOK      ItemStatus = "ok"
	ItemStatusSkipped ItemStatus = "skipped"
	ItemStatusFailed  ItemStatus = "failed"
)

// IsTerminal reports whether an item status admits no further transitions.
func (s ItemStatus) IsTerminal() bool {
	switch s {
	case ItemStatusOK, ItemStatusSkipped, ItemStatusFailed:
		return true
	default:
		return false
	}
}

// Progress tracks per-job item counters. done + failed + skipped never
// exceeds total; equality holds exactly when the job is terminal.
type Progress struct {
	Total   int
	Done    int
	Failed  int
	Skipped int
}

// Remaining returns the number of items still owed a terminal state.
func (p Progress) Remaining() int {
	r := p.Total - p.Done - p.Failed - p.Skipped
	if r < 0 {
		return 0
	}
	return r
}

// Job is a persisted badge or revert job.
type Job struct {
	ID              string
	Type            Type
	Status          Status
	BadgeTypes      []string
	OptionsJSON     string
	CreatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
	Progress        Progress
	ResultSummary   string
	ErrorMessage    string
	CancelRequested bool
}

// Item is one work unit of a job, keyed by catalog item.
type Item struct {
	ID            int64
	JobID         string
	ItemID        string
	ItemKind      string
	Status        ItemStatus
	ErrorKind     string
	ErrorMessage  string
	BadgesApplied []string
	Attempts      int
	DurationMS    int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewItem describes a work unit at job creation time.
type NewItem struct {
	ItemID string
	Kind   string
}

// HistoryEntry records a job lifecycle event for auditing.
type HistoryEntry struct {
	ID        int64
	JobID     string
	Event     string
	Detail    string
	CreatedAt time.Time
}

// Schedule is a stored cron trigger that submits batch jobs.
type Schedule struct {
	ID         int64
	Name       string
	CronExpr   string
	Enabled    bool
	BadgeTypes []string
	Options    map[string]string
	Targets    []string
	CreatedAt  time.Time
	LastRunAt  *time.Time
	NextRunAt  *time.Time
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total     int
	Queued    int
	Running   int
	Failed    int
	Succeeded int
}
