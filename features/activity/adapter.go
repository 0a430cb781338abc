package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"festhub/features/event"
)

// EventRegistry is the slice of the event service the adapter drives.
type EventRegistry interface {
	Create(ctx context.Context, spec event.Spec) (*event.Event, error)
	Update(ctx context.Context, id string, spec event.Spec) error
	Delete(ctx context.Context, id string) error
}

// EventLister looks up the events previously created for an activity.
type EventLister interface {
	ListByActivity(ctx context.Context, activityID string) ([]event.Event, error)
}

// Adapter keeps the push events of an activity in sync with its schedule.
// Every reminder it creates carries the activity id, so a later Sync or
// Remove can find and replace exactly its own events.
type Adapter struct {
	registry EventRegistry
	events   EventLister
	lead     time.Duration
	now      func() time.Time
}

func NewAdapter(registry EventRegistry, events EventLister, lead time.Duration) *Adapter {
	return &Adapter{registry: registry, events: events, lead: lead, now: time.Now}
}

// Sync reconciles the activity's reminders with its current schedule. An
// activity without a start time or without a group gets no reminders, so any
// previously created events are removed. Otherwise the desired set is one
// group reminder at StartsAt minus the configured lead plus one direct
// reminder per responsible user; existing events are updated in place by
// target, missing ones created, leftovers deleted.
func (a *Adapter) Sync(ctx context.Context, act Activity) error {
	if act.StartsAt == nil || act.GroupID == "" {
		return a.Remove(ctx, act.ID)
	}

	existing, err := a.events.ListByActivity(ctx, act.ID)
	if err != nil {
		return fmt.Errorf("list activity events: %w", err)
	}

	remindAt := act.StartsAt.Add(-a.lead)
	if remindAt.Before(a.now()) {
		// A schedule in the past would fire immediately or never; the
		// activity system occasionally sends those after manual edits.
		slog.WarnContext(ctx, "skipping past reminder schedule",
			"activity_id", act.ID, "remind_at", remindAt)
		return a.deleteAll(ctx, existing)
	}

	specs := a.desiredSpecs(act, remindAt)
	leftover := indexByTarget(existing)

	for _, spec := range specs {
		key := targetKey(spec.Target)
		if ev, ok := leftover[key]; ok {
			delete(leftover, key)
			if err := a.registry.Update(ctx, ev.ID, spec); err != nil {
				return fmt.Errorf("update reminder for %s: %w", act.ID, err)
			}
			continue
		}
		if _, err := a.registry.Create(ctx, spec); err != nil {
			return fmt.Errorf("create reminder for %s: %w", act.ID, err)
		}
	}

	for _, ev := range leftover {
		if err := a.registry.Delete(ctx, ev.ID); err != nil {
			return fmt.Errorf("delete stale reminder %s: %w", ev.ID, err)
		}
	}

	slog.InfoContext(ctx, "activity reminders synced",
		"activity_id", act.ID, "remind_at", remindAt, "reminders", len(specs))
	return nil
}

// Remove deletes every event the adapter created for the activity.
func (a *Adapter) Remove(ctx context.Context, activityID string) error {
	existing, err := a.events.ListByActivity(ctx, activityID)
	if err != nil {
		return fmt.Errorf("list activity events: %w", err)
	}
	return a.deleteAll(ctx, existing)
}

func (a *Adapter) deleteAll(ctx context.Context, events []event.Event) error {
	for _, ev := range events {
		if err := a.registry.Delete(ctx, ev.ID); err != nil {
			return fmt.Errorf("delete reminder %s: %w", ev.ID, err)
		}
	}
	return nil
}

func (a *Adapter) desiredSpecs(act Activity, remindAt time.Time) []event.Spec {
	title := fmt.Sprintf("Reminder: %s", act.Name)
	body := fmt.Sprintf("%s starts at %s", act.Name, act.StartsAt.Format("15:04"))

	specs := []event.Spec{{
		Title:      title,
		Body:       body,
		Repeat:     event.RepeatOnce,
		At:         remindAt,
		Target:     event.Target{Kind: event.TargetGroup, GroupID: act.GroupID},
		ActivityID: act.ID,
	}}
	for _, userID := range act.ResponsibleUserIDs {
		specs = append(specs, event.Spec{
			Title:      title,
			Body:       fmt.Sprintf("You are responsible for %s at %s", act.Name, act.StartsAt.Format("15:04")),
			Repeat:     event.RepeatOnce,
			At:         remindAt,
			Target:     event.Target{Kind: event.TargetUser, UserID: userID},
			ActivityID: act.ID,
		})
	}
	return specs
}

func indexByTarget(events []event.Event) map[string]event.Event {
	index := make(map[string]event.Event, len(events))
	for _, ev := range events {
		index[targetKey(ev.Target)] = ev
	}
	return index
}

func targetKey(t event.Target) string {
	return string(t.Kind) + "/" + t.UserID + t.GroupID
}
