// Package scheduler is a durable Postgres-backed job scheduler. Job rows are the
// only coordination point between processes: any number of client-mode processes
// insert and cancel rows, and worker-mode processes claim due rows under an
// atomic lock and run the registered handler. The package knows nothing about
// what the jobs do; handlers and their payloads belong to the callers.
package scheduler

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidSchedule is returned synchronously when a caller asks for a job at
// a zero time or with a non-positive interval.
var ErrInvalidSchedule = errors.New("invalid schedule")

// JobName identifies the handler a job is executed by. Callers declare their
// own constants; scheduling and handler registration must use the same ones.
type JobName string

// Job is one schedulable unit of work.
//
// A job with LockedAt set and no LastFinishedAt newer than it is in flight;
// if such a row outlives the lock lifetime it is considered stale and becomes
// claimable again.
type Job struct {
	ID             string          `json:"id"`
	Name           JobName         `json:"name"`
	Data           json.RawMessage `json:"data"`
	NextRunAt      time.Time       `json:"next_run_at"`
	RepeatInterval *time.Duration  `json:"repeat_interval,omitempty"` // nil means one-shot
	LockedAt       *time.Time      `json:"locked_at,omitempty"`
	LastFinishedAt *time.Time      `json:"last_finished_at,omitempty"`
	Disabled       bool            `json:"disabled"`
}

// Recurring reports whether the job re-runs on a fixed interval.
func (j *Job) Recurring() bool {
	return j.RepeatInterval != nil
}
