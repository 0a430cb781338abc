package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festhub/features/subscription"
	"festhub/internal/config"
	"festhub/internal/delivery"
	"festhub/internal/scheduler"
)

type fakeSubs struct {
	all     []subscription.Subscription
	byUser  map[string][]subscription.Subscription
	deleted []string
	listErr error
}

func (f *fakeSubs) ListAll(ctx context.Context) ([]subscription.Subscription, error) {
	return f.all, f.listErr
}

func (f *fakeSubs) ListByUser(ctx context.Context, userID string) ([]subscription.Subscription, error) {
	return f.byUser[userID], f.listErr
}

func (f *fakeSubs) ListByUsers(ctx context.Context, userIDs []string) ([]subscription.Subscription, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []subscription.Subscription
	for _, id := range userIDs {
		out = append(out, f.byUser[id]...)
	}
	return out, nil
}

func (f *fakeSubs) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	f.deleted = append(f.deleted, endpoint)
	return nil
}

type fakeDirectory struct {
	members map[string][]string
	err     error
}

func (f *fakeDirectory) UsersInGroup(ctx context.Context, groupID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.members[groupID], nil
}

type fakeDeliverer struct {
	outcomes map[string]delivery.Outcome // keyed by endpoint
	attempts []string
}

func (f *fakeDeliverer) Deliver(ctx context.Context, sub subscription.Subscription, payload delivery.Payload) delivery.Result {
	f.attempts = append(f.attempts, sub.Endpoint)
	outcome, ok := f.outcomes[sub.Endpoint]
	if !ok {
		outcome = delivery.Delivered
	}
	if outcome == delivery.Delivered {
		return delivery.Result{Outcome: delivery.Delivered}
	}
	return delivery.Result{Outcome: outcome, Err: errors.New("send failed")}
}

type fakeCompleter struct {
	completed []string
	err       error
}

func (f *fakeCompleter) Complete(ctx context.Context, eventID string) error {
	f.completed = append(f.completed, eventID)
	return f.err
}

type fakePublisher struct {
	topics    []string
	summaries []OutcomeSummary
}

func (f *fakePublisher) Publish(topic string, body []byte) error {
	f.topics = append(f.topics, topic)
	var s OutcomeSummary
	if err := json.Unmarshal(body, &s); err != nil {
		return err
	}
	f.summaries = append(f.summaries, s)
	return nil
}

func sub(endpoint, userID string) subscription.Subscription {
	s := subscription.Subscription{ID: endpoint, Endpoint: endpoint, P256dh: "k", Auth: "a"}
	if userID != "" {
		s.UserID = &userID
	}
	return s
}

func mustPayload(t *testing.T, msg Message) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return data
}

func TestDispatcher_Broadcast(t *testing.T) {
	subs := &fakeSubs{all: []subscription.Subscription{sub("ep-1", ""), sub("ep-2", "u1")}}
	deliverer := &fakeDeliverer{}
	completer := &fakeCompleter{}
	pub := &fakePublisher{}
	d := NewDispatcher(subs, &fakeDirectory{}, deliverer, completer, pub)

	err := d.Broadcast(context.Background(), mustPayload(t, Message{EventID: "e1", Title: "T", Body: "B", Once: true}))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"ep-1", "ep-2"}, deliverer.attempts)
	assert.Equal(t, []string{"e1"}, completer.completed, "once-event removes itself after attempts")

	require.Len(t, pub.summaries, 1)
	assert.Equal(t, []string{config.TopicNotifyOutcome}, pub.topics)
	assert.Equal(t, 2, pub.summaries[0].Resolved)
	assert.Equal(t, 2, pub.summaries[0].Delivered)
}

func TestDispatcher_ToUser(t *testing.T) {
	subs := &fakeSubs{byUser: map[string][]subscription.Subscription{
		"u1": {sub("ep-u1", "u1")},
		"u2": {sub("ep-u2", "u2")},
	}}
	deliverer := &fakeDeliverer{}
	completer := &fakeCompleter{}
	d := NewDispatcher(subs, &fakeDirectory{}, deliverer, completer, nil)

	err := d.ToUser(context.Background(), mustPayload(t, Message{EventID: "e1", UserID: "u1", Once: true}))
	require.NoError(t, err)

	assert.Equal(t, []string{"ep-u1"}, deliverer.attempts, "only the targeted user's subscriptions")
}

func TestDispatcher_ToUser_MissingUserID(t *testing.T) {
	d := NewDispatcher(&fakeSubs{}, &fakeDirectory{}, &fakeDeliverer{}, &fakeCompleter{}, nil)

	err := d.ToUser(context.Background(), mustPayload(t, Message{EventID: "e1"}))
	assert.Error(t, err)
}

func TestDispatcher_ToGroup_ResolvesMembershipAtFireTime(t *testing.T) {
	subs := &fakeSubs{byUser: map[string][]subscription.Subscription{
		"u1": {sub("ep-u1", "u1")},
		"u2": {sub("ep-u2", "u2")},
		"u3": {sub("ep-u3", "u3")},
	}}
	directory := &fakeDirectory{members: map[string][]string{"g1": {"u1", "u3"}}}
	deliverer := &fakeDeliverer{}
	d := NewDispatcher(subs, directory, deliverer, &fakeCompleter{}, nil)

	err := d.ToGroup(context.Background(), mustPayload(t, Message{EventID: "e1", GroupID: "g1"}))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"ep-u1", "ep-u3"}, deliverer.attempts)
}

func TestDispatcher_ToGroup_UnknownGroupFailsHandler(t *testing.T) {
	directory := &fakeDirectory{err: errors.New("group not found")}
	deliverer := &fakeDeliverer{}
	completer := &fakeCompleter{}
	d := NewDispatcher(&fakeSubs{}, directory, deliverer, completer, nil)

	err := d.ToGroup(context.Background(), mustPayload(t, Message{EventID: "e1", GroupID: "gone", Once: true}))
	require.Error(t, err)
	assert.Empty(t, deliverer.attempts)
	assert.Empty(t, completer.completed, "a failed handler must not complete the event")
}

func TestDispatcher_PrunesOnPermanentFailure(t *testing.T) {
	subs := &fakeSubs{all: []subscription.Subscription{sub("ep-live", ""), sub("ep-dead", "")}}
	deliverer := &fakeDeliverer{outcomes: map[string]delivery.Outcome{"ep-dead": delivery.PermanentFailure}}
	pub := &fakePublisher{}
	d := NewDispatcher(subs, &fakeDirectory{}, deliverer, &fakeCompleter{}, pub)

	err := d.Broadcast(context.Background(), mustPayload(t, Message{EventID: "e1"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"ep-dead"}, subs.deleted)
	require.Len(t, pub.summaries, 1)
	assert.Equal(t, 1, pub.summaries[0].Delivered)
	assert.Equal(t, 1, pub.summaries[0].Pruned)
}

func TestDispatcher_TransientFailuresDoNotFailHandler(t *testing.T) {
	subs := &fakeSubs{all: []subscription.Subscription{sub("ep-1", ""), sub("ep-2", "")}}
	deliverer := &fakeDeliverer{outcomes: map[string]delivery.Outcome{
		"ep-1": delivery.TransientFailure,
		"ep-2": delivery.TransientFailure,
	}}
	completer := &fakeCompleter{}
	d := NewDispatcher(subs, &fakeDirectory{}, deliverer, completer, nil)

	err := d.Broadcast(context.Background(), mustPayload(t, Message{EventID: "e1", Once: true}))
	require.NoError(t, err, "attempts were made; the handler succeeded")
	assert.Empty(t, subs.deleted)
	assert.Equal(t, []string{"e1"}, completer.completed,
		"completion means attempts were made, not that every delivery succeeded")
}

func TestDispatcher_RecurringEventIsNotCompleted(t *testing.T) {
	subs := &fakeSubs{all: []subscription.Subscription{sub("ep-1", "")}}
	completer := &fakeCompleter{}
	d := NewDispatcher(subs, &fakeDirectory{}, &fakeDeliverer{}, completer, nil)

	err := d.Broadcast(context.Background(), mustPayload(t, Message{EventID: "e1", Once: false}))
	require.NoError(t, err)
	assert.Empty(t, completer.completed)
}

func TestDispatcher_Register(t *testing.T) {
	d := NewDispatcher(&fakeSubs{}, &fakeDirectory{}, &fakeDeliverer{}, &fakeCompleter{}, nil)

	reg := scheduler.NewRegistry()
	require.NoError(t, d.Register(reg))

	// Registering twice collides on every job name.
	assert.Error(t, d.Register(reg))
}

func TestDispatcher_MalformedPayload(t *testing.T) {
	d := NewDispatcher(&fakeSubs{}, &fakeDirectory{}, &fakeDeliverer{}, &fakeCompleter{}, nil)

	err := d.Broadcast(context.Background(), json.RawMessage(`{not json`))
	assert.Error(t, err)
}
