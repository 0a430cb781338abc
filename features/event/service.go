package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"festhub/internal/notify"
	"festhub/internal/scheduler"
)

// JobScheduler is the slice of the scheduler client this registry needs.
type JobScheduler interface {
	ScheduleOnce(ctx context.Context, name scheduler.JobName, data json.RawMessage, at time.Time) (string, error)
	ScheduleRecurring(ctx context.Context, name scheduler.JobName, data json.RawMessage, interval time.Duration, firstRunAt time.Time) (string, error)
	Cancel(ctx context.Context, jobID string) error
}

// Service is the event registry: the only writer of scheduled_push_events and
// the only caller of the scheduler on their behalf.
type Service struct {
	repo Repository
	jobs JobScheduler
}

func NewService(repo Repository, jobs JobScheduler) *Service {
	return &Service{repo: repo, jobs: jobs}
}

// Create persists the event and schedules its backing job.
func (s *Service) Create(ctx context.Context, spec Spec) (*Event, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	ev := &Event{
		Title:      spec.Title,
		Body:       spec.Body,
		Repeat:     spec.Repeat,
		At:         spec.At,
		Interval:   spec.Interval,
		Active:     true,
		Target:     spec.Target,
		ActivityID: spec.ActivityID,
	}
	if err := s.repo.Save(ctx, ev); err != nil {
		return nil, fmt.Errorf("save event: %w", err)
	}

	jobID, err := s.schedule(ctx, ev)
	if err != nil {
		// Roll the row back rather than leaving an active event with no job.
		if derr := s.repo.Delete(ctx, ev.ID); derr != nil {
			slog.ErrorContext(ctx, "failed to roll back unscheduled event", "event_id", ev.ID, "error", derr)
		}
		return nil, err
	}

	ev.JobID = jobID
	if err := s.repo.Update(ctx, ev); err != nil {
		return nil, fmt.Errorf("store job handle: %w", err)
	}

	slog.InfoContext(ctx, "event created", "event_id", ev.ID, "repeat", string(ev.Repeat), "target", string(ev.Target.Kind))
	return ev, nil
}

// Update replaces the event's schedule wholesale: cancel the old job
// unconditionally (a stale or missing handle is fine), apply the new spec,
// schedule a fresh job. Jobs are never mutated in place.
func (s *Service) Update(ctx context.Context, id string, spec Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	ev, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.jobs.Cancel(ctx, ev.JobID); err != nil {
		return fmt.Errorf("cancel previous job: %w", err)
	}

	ev.Title = spec.Title
	ev.Body = spec.Body
	ev.Repeat = spec.Repeat
	ev.At = spec.At
	ev.Interval = spec.Interval
	ev.Target = spec.Target
	ev.ActivityID = spec.ActivityID
	ev.Active = true

	jobID, err := s.schedule(ctx, ev)
	if err != nil {
		return err
	}
	ev.JobID = jobID

	if err := s.repo.Update(ctx, ev); err != nil {
		return err
	}

	slog.InfoContext(ctx, "event rescheduled", "event_id", ev.ID, "job_id", jobID)
	return nil
}

// Delete cancels the backing job and removes the event. It succeeds when the
// job is already gone: a completed one-shot deletes its own job row.
func (s *Service) Delete(ctx context.Context, id string) error {
	ev, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.jobs.Cancel(ctx, ev.JobID); err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "event deleted", "event_id", id)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Event, error) {
	return s.repo.List(ctx)
}

// Complete removes a fired one-shot event. Called by the notification
// handlers after delivery attempts finish; the job row is already gone by
// then, so this only touches the event table.
func (s *Service) Complete(ctx context.Context, eventID string) error {
	return s.repo.Delete(ctx, eventID)
}

func (s *Service) schedule(ctx context.Context, ev *Event) (string, error) {
	name, err := jobNameFor(ev.Target.Kind)
	if err != nil {
		return "", err
	}

	msg := notify.Message{
		EventID: ev.ID,
		Title:   ev.Title,
		Body:    ev.Body,
		Once:    ev.Repeat == RepeatOnce,
		UserID:  ev.Target.UserID,
		GroupID: ev.Target.GroupID,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	if ev.Repeat == RepeatRecurring {
		firstRun := ev.At
		if firstRun.IsZero() {
			firstRun = time.Now().Add(ev.Interval)
		}
		return s.jobs.ScheduleRecurring(ctx, name, data, ev.Interval, firstRun)
	}
	return s.jobs.ScheduleOnce(ctx, name, data, ev.At)
}

func jobNameFor(kind TargetKind) (scheduler.JobName, error) {
	switch kind {
	case TargetBroadcast:
		return notify.JobBroadcast, nil
	case TargetUser:
		return notify.JobToUser, nil
	case TargetGroup:
		return notify.JobToGroup, nil
	default:
		return "", ErrInvalidTarget
	}
}
