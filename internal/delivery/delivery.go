// Package delivery sends one notification payload to one push subscription and
// classifies the result. Send failures are values, never errors: one dead
// endpoint must not abort a fan-out batch.
package delivery

import (
	"context"

	"festhub/features/subscription"
)

type Outcome int

const (
	// Delivered: the gateway accepted the notification.
	Delivered Outcome = iota
	// TransientFailure: the send failed but the subscription may still be
	// good. Not retried here; a recurring event's next run retries naturally.
	TransientFailure
	// PermanentFailure: the gateway reported the endpoint gone. The
	// subscription should be pruned.
	PermanentFailure
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case TransientFailure:
		return "transient_failure"
	case PermanentFailure:
		return "permanent_failure"
	default:
		return "unknown"
	}
}

// Payload is the rendered notification content.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Result is the per-subscription outcome. Err carries diagnostic detail for
// the failure outcomes and is nil when Delivered.
type Result struct {
	Outcome Outcome
	Err     error
}

// Service delivers one payload to one subscription.
type Service interface {
	Deliver(ctx context.Context, sub subscription.Subscription, payload Payload) Result
}
