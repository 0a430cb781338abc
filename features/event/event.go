package event

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("event not found")
	ErrInvalidTarget = errors.New("invalid target")
	ErrInvalidSpec   = errors.New("invalid event spec")
)

type Repeat string

const (
	RepeatOnce      Repeat = "once"
	RepeatRecurring Repeat = "recurring"
)

type TargetKind string

const (
	TargetBroadcast TargetKind = "broadcast"
	TargetUser      TargetKind = "user"
	TargetGroup     TargetKind = "group"
)

// Target picks the audience: everyone, one user, or the members of a group
// (resolved at fire time, not at schedule time).
type Target struct {
	Kind    TargetKind `json:"kind"`
	UserID  string     `json:"user_id,omitempty"`
	GroupID string     `json:"group_id,omitempty"`
}

func (t Target) Validate() error {
	switch t.Kind {
	case TargetBroadcast:
		return nil
	case TargetUser:
		if t.UserID == "" {
			return ErrInvalidTarget
		}
		return nil
	case TargetGroup:
		if t.GroupID == "" {
			return ErrInvalidTarget
		}
		return nil
	default:
		return ErrInvalidTarget
	}
}

// Event is one scheduled push notification: what to send, when, and to whom.
// JobID is a weak reference to the backing scheduler job; the event cancels
// through it but does not otherwise own the job's lifetime (a fired one-shot
// job deletes itself).
type Event struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Body       string        `json:"body"`
	Repeat     Repeat        `json:"repeat"`
	At         time.Time     `json:"at"`
	Interval   time.Duration `json:"interval,omitempty"` // recurring only
	Active     bool          `json:"active"`
	Target     Target        `json:"target"`
	JobID      string        `json:"-"`
	ActivityID string        `json:"activity_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Spec is the caller-supplied description of an event, used by both create
// and update.
type Spec struct {
	Title      string        `json:"title"`
	Body       string        `json:"body"`
	Repeat     Repeat        `json:"repeat"`
	At         time.Time     `json:"at"`
	Interval   time.Duration `json:"interval,omitempty"`
	Target     Target        `json:"target"`
	ActivityID string        `json:"activity_id,omitempty"`
}

func (s Spec) Validate() error {
	if s.Title == "" {
		return ErrInvalidSpec
	}
	if err := s.Target.Validate(); err != nil {
		return err
	}
	switch s.Repeat {
	case RepeatOnce:
		if s.At.IsZero() {
			return ErrInvalidSpec
		}
	case RepeatRecurring:
		if s.Interval <= 0 {
			return ErrInvalidSpec
		}
	default:
		return ErrInvalidSpec
	}
	return nil
}

type Repository interface {
	Save(ctx context.Context, ev *Event) error
	Get(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context) ([]Event, error)
	Update(ctx context.Context, ev *Event) error
	// Delete removes an event row; deleting a missing event is a no-op.
	Delete(ctx context.Context, id string) error
	// ListPastDueOnce returns active one-shot events whose time has passed:
	// the data-integrity violation the cleanup sweep exists to repair.
	ListPastDueOnce(ctx context.Context, now time.Time) ([]Event, error)
	ListByActivity(ctx context.Context, activityID string) ([]Event, error)
	Count(ctx context.Context) (int, error)
}
