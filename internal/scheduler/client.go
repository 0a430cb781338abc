package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Client is the schedule-only half of the scheduler. It is safe to construct
// in any process, request handlers included: it can insert and cancel job rows
// but has no way to start a poll loop.
type Client struct {
	store Store
}

func NewClient(store Store) *Client {
	return &Client{store: store}
}

// ScheduleOnce inserts a one-shot job due at the given time.
func (c *Client) ScheduleOnce(ctx context.Context, name JobName, data json.RawMessage, at time.Time) (string, error) {
	if at.IsZero() {
		return "", ErrInvalidSchedule
	}
	job := &Job{
		ID:        uuid.New().String(),
		Name:      name,
		Data:      data,
		NextRunAt: at,
	}
	if err := c.store.Insert(ctx, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// ScheduleRecurring inserts a job that first runs at firstRunAt and then
// repeats on a fixed interval.
func (c *Client) ScheduleRecurring(ctx context.Context, name JobName, data json.RawMessage, interval time.Duration, firstRunAt time.Time) (string, error) {
	if interval <= 0 || firstRunAt.IsZero() {
		return "", ErrInvalidSchedule
	}
	job := &Job{
		ID:             uuid.New().String(),
		Name:           name,
		Data:           data,
		NextRunAt:      firstRunAt,
		RepeatInterval: &interval,
	}
	if err := c.store.Insert(ctx, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// Cancel removes a job from future consideration. Cancelling an empty handle,
// a missing job or an already-cancelled job is a no-op: the common case is a
// one-shot job that completed (and deleted itself) before its owner got around
// to cancelling it.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	if jobID == "" {
		return nil
	}
	return c.store.Disable(ctx, jobID)
}
