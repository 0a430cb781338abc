// Package notify holds the scheduler job handlers that turn a fired push job
// into concrete deliveries. Audience resolution happens here, at fire time:
// group membership and subscription sets are read when the job runs, never
// when it was scheduled.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"festhub/features/subscription"
	"festhub/internal/config"
	"festhub/internal/delivery"
	"festhub/internal/scheduler"
)

// Job names for the three audience kinds. These constants are the only place
// job names are spelled; the event registry schedules with them and the worker
// wiring registers handlers under them.
const (
	JobBroadcast scheduler.JobName = "notify.broadcast"
	JobToUser    scheduler.JobName = "notify.to-user"
	JobToGroup   scheduler.JobName = "notify.to-group"
)

// Message is the job payload for all three handlers.
type Message struct {
	EventID string `json:"event_id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Once    bool   `json:"once"`
	UserID  string `json:"user_id,omitempty"`
	GroupID string `json:"group_id,omitempty"`
}

type SubscriptionSource interface {
	ListAll(ctx context.Context) ([]subscription.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]subscription.Subscription, error)
	ListByUsers(ctx context.Context, userIDs []string) ([]subscription.Subscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// Directory resolves group membership at fire time.
type Directory interface {
	UsersInGroup(ctx context.Context, groupID string) ([]string, error)
}

// EventCompleter removes a once-event after its job has fired.
type EventCompleter interface {
	Complete(ctx context.Context, eventID string) error
}

type OutcomePublisher interface {
	Publish(topic string, body []byte) error
}

// OutcomeSummary is published to NSQ after every handler run for the ops
// dashboard.
type OutcomeSummary struct {
	EventID   string    `json:"event_id"`
	Handler   string    `json:"handler"`
	Resolved  int       `json:"resolved"`
	Delivered int       `json:"delivered"`
	Transient int       `json:"transient"`
	Pruned    int       `json:"pruned"`
	At        time.Time `json:"at"`
}

type Dispatcher struct {
	subs      SubscriptionSource
	directory Directory
	deliverer delivery.Service
	completer EventCompleter
	pub       OutcomePublisher
}

func NewDispatcher(subs SubscriptionSource, directory Directory, deliverer delivery.Service, completer EventCompleter, pub OutcomePublisher) *Dispatcher {
	return &Dispatcher{
		subs:      subs,
		directory: directory,
		deliverer: deliverer,
		completer: completer,
		pub:       pub,
	}
}

// Register wires the three handlers into a worker registry.
func (d *Dispatcher) Register(reg *scheduler.Registry) error {
	if err := reg.Register(JobBroadcast, scheduler.HandlerFunc(d.Broadcast)); err != nil {
		return err
	}
	if err := reg.Register(JobToUser, scheduler.HandlerFunc(d.ToUser)); err != nil {
		return err
	}
	return reg.Register(JobToGroup, scheduler.HandlerFunc(d.ToGroup))
}

func (d *Dispatcher) Broadcast(ctx context.Context, data json.RawMessage) error {
	msg, err := decode(data)
	if err != nil {
		return err
	}
	subs, err := d.subs.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("resolve broadcast audience: %w", err)
	}
	return d.send(ctx, JobBroadcast, msg, subs)
}

func (d *Dispatcher) ToUser(ctx context.Context, data json.RawMessage) error {
	msg, err := decode(data)
	if err != nil {
		return err
	}
	if msg.UserID == "" {
		return fmt.Errorf("to-user job %s missing user_id", msg.EventID)
	}
	subs, err := d.subs.ListByUser(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("resolve user audience: %w", err)
	}
	return d.send(ctx, JobToUser, msg, subs)
}

func (d *Dispatcher) ToGroup(ctx context.Context, data json.RawMessage) error {
	msg, err := decode(data)
	if err != nil {
		return err
	}
	if msg.GroupID == "" {
		return fmt.Errorf("to-group job %s missing group_id", msg.EventID)
	}
	userIDs, err := d.directory.UsersInGroup(ctx, msg.GroupID)
	if err != nil {
		// The one case where a handler fails outright: the audience itself
		// could not be resolved.
		return fmt.Errorf("resolve group %s: %w", msg.GroupID, err)
	}
	subs, err := d.subs.ListByUsers(ctx, userIDs)
	if err != nil {
		return fmt.Errorf("resolve group subscriptions: %w", err)
	}
	return d.send(ctx, JobToGroup, msg, subs)
}

// send delivers to every resolved subscription, prunes permanently-dead
// endpoints, publishes the outcome summary, and removes the owning event for
// one-shot messages. Completion means "attempts were made", not "every
// delivery succeeded": a handful of transient failures does not keep a
// once-event alive.
func (d *Dispatcher) send(ctx context.Context, name scheduler.JobName, msg Message, subs []subscription.Subscription) error {
	payload := delivery.Payload{Title: msg.Title, Body: msg.Body}
	summary := OutcomeSummary{
		EventID:  msg.EventID,
		Handler:  string(name),
		Resolved: len(subs),
		At:       time.Now(),
	}

	for _, sub := range subs {
		res := d.deliverer.Deliver(ctx, sub, payload)
		switch res.Outcome {
		case delivery.Delivered:
			summary.Delivered++
		case delivery.PermanentFailure:
			summary.Pruned++
			slog.InfoContext(ctx, "pruning dead subscription", "endpoint", sub.Endpoint, "error", res.Err)
			if err := d.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
				slog.WarnContext(ctx, "failed to prune subscription", "endpoint", sub.Endpoint, "error", err)
			}
		default:
			summary.Transient++
			slog.WarnContext(ctx, "delivery failed", "endpoint", sub.Endpoint, "error", res.Err)
		}
	}

	d.publish(ctx, summary)

	if msg.Once {
		// The job row is gone once this handler returns; remove the event so
		// it does not linger as active with a dangling handle. If this fails
		// the cleanup sweep repairs it, so the job itself is not failed (that
		// would re-fire the deliveries).
		if err := d.completer.Complete(ctx, msg.EventID); err != nil {
			slog.ErrorContext(ctx, "failed to remove fired event", "event_id", msg.EventID, "error", err)
		}
	}

	slog.InfoContext(ctx, "notification dispatched",
		"event_id", msg.EventID, "handler", string(name),
		"resolved", summary.Resolved, "delivered", summary.Delivered,
		"transient", summary.Transient, "pruned", summary.Pruned)
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, summary OutcomeSummary) {
	if d.pub == nil {
		return
	}
	body, err := json.Marshal(summary)
	if err != nil {
		slog.WarnContext(ctx, "failed to marshal outcome summary", "error", err)
		return
	}
	if err := d.pub.Publish(config.TopicNotifyOutcome, body); err != nil {
		slog.WarnContext(ctx, "failed to publish outcome summary", "error", err)
	}
}

func decode(data json.RawMessage) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode job payload: %w", err)
	}
	return msg, nil
}
