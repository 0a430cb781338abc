package event

import (
	"context"
	"log/slog"
	"time"
)

// SweepResult reports what one cleanup pass repaired.
type SweepResult struct {
	EventsDeleted int `json:"events_deleted"`
	JobsCancelled int `json:"jobs_cancelled"`
}

// Sweep is the reconciliation pass for the known inconsistency: a one-shot
// event that is still active although its time has passed. That happens when
// a job was created for a time already elapsed (timezone/clock bugs upstream),
// when a handler kept failing, or when the event row outlived its job. Such
// events must never linger indefinitely.
type Sweep struct {
	repo Repository
	jobs JobScheduler
}

func NewSweep(repo Repository, jobs JobScheduler) *Sweep {
	return &Sweep{repo: repo, jobs: jobs}
}

// Run cancels any lingering job and deletes each past-due active one-shot
// event. It is idempotent: a second pass with no intervening changes finds
// nothing.
func (s *Sweep) Run(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	events, err := s.repo.ListPastDueOnce(ctx, time.Now())
	if err != nil {
		return result, err
	}

	for _, ev := range events {
		if ev.JobID != "" {
			if err := s.jobs.Cancel(ctx, ev.JobID); err != nil {
				slog.WarnContext(ctx, "sweep failed to cancel job", "event_id", ev.ID, "job_id", ev.JobID, "error", err)
				// Keep going; deleting the event matters more than the
				// cancel bookkeeping.
			} else {
				result.JobsCancelled++
			}
		}
		if err := s.repo.Delete(ctx, ev.ID); err != nil {
			slog.WarnContext(ctx, "sweep failed to delete event", "event_id", ev.ID, "error", err)
			continue
		}
		result.EventsDeleted++
		slog.InfoContext(ctx, "swept past-due event", "event_id", ev.ID, "was_due", ev.At)
	}

	if result.EventsDeleted > 0 {
		slog.InfoContext(ctx, "cleanup sweep finished",
			"events_deleted", result.EventsDeleted, "jobs_cancelled", result.JobsCancelled)
	}
	return result, nil
}

// RunPeriodically runs the sweep on a fixed cadence until the context ends.
// Worker mode only.
func (s *Sweep) RunPeriodically(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				slog.WarnContext(ctx, "cleanup sweep failed", "error", err)
			}
		}
	}
}
