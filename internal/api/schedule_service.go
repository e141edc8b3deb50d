package api

import (
	"context"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/jackkerouac/aphrodite-sub000/internal/jobs"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

// Reloader resynchronizes the cron runner after schedule mutations.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ScheduleService exposes schedule CRUD returning API DTOs. Every mutation
// reloads the cron runner so changes take effect without a restart.
type ScheduleService struct {
	store    *jobs.Store
	reloader Reloader
}

// NewScheduleService constructs a ScheduleService. The reloader may be nil
// when no scheduler is running.
func NewScheduleService(store *jobs.Store, reloader Reloader) *ScheduleService {
	return &ScheduleService{store: store, reloader: reloader}
}

// List returns all stored schedules.
func (s *ScheduleService) List(ctx context.Context) ([]Schedule, error) {
	records, err := s.store.ListSchedules(ctx)
	if err != nil {
		return nil, err
	}
	return FromSchedules(records), nil
}

// Create validates and stores a new schedule.
func (s *ScheduleService) Create(ctx context.Context, req ScheduleRequest) (Schedule, error) {
	if strings.TrimSpace(req.Name) == "" {
		return Schedule{}, services.Wrap(services.ErrConfigInvalid, "api", "schedule_create", "name required", nil)
	}
	if _, err := cron.ParseStandard(req.CronExpr); err != nil {
		return Schedule{}, services.Wrap(services.ErrConfigInvalid, "api", "schedule_create", "invalid cron expression", err)
	}
	created, err := s.store.CreateSchedule(ctx, &jobs.Schedule{
		Name:       req.Name,
		CronExpr:   req.CronExpr,
		Enabled:    req.Enabled,
		BadgeTypes: req.BadgeTypes,
		Options:    req.Options,
		Targets:    req.Targets,
	})
	if err != nil {
		return Schedule{}, err
	}
	s.reload(ctx)
	return FromSchedule(created), nil
}

// Delete removes a schedule. It reports whether a row was deleted.
func (s *ScheduleService) Delete(ctx context.Context, id int64) (bool, error) {
	deleted, err := s.store.DeleteSchedule(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.reload(ctx)
	}
	return deleted, nil
}

// SetEnabled flips a schedule on or off.
func (s *ScheduleService) SetEnabled(ctx context.Context, id int64, enabled bool) (Schedule, error) {
	if err := s.store.SetScheduleEnabled(ctx, id, enabled); err != nil {
		return Schedule{}, err
	}
	s.reload(ctx)
	schedule, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	return FromSchedule(schedule), nil
}

func (s *ScheduleService) reload(ctx context.Context) {
	if s.reloader != nil {
		_ = s.reloader.Reload(ctx)
	}
}
