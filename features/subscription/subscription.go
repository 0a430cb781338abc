package subscription

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidSubscription = errors.New("invalid subscription")

// Subscription is one push endpoint plus its encryption material. UserID is
// optional: an anonymous visitor can opt in without being logged in, and only
// broadcast events will reach them.
type Subscription struct {
	ID        string    `json:"id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	UserID    *string   `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Subscription) Validate() error {
	if s.Endpoint == "" {
		return ErrInvalidSubscription
	}
	if s.P256dh == "" || s.Auth == "" {
		return ErrInvalidSubscription
	}
	return nil
}

type Repository interface {
	Save(ctx context.Context, sub *Subscription) error
	ListAll(ctx context.Context) ([]Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]Subscription, error)
	ListByUsers(ctx context.Context, userIDs []string) ([]Subscription, error)
	// DeleteByEndpoint removes a subscription; deleting a missing endpoint is
	// a no-op (pruning races with client-side unsubscribes).
	DeleteByEndpoint(ctx context.Context, endpoint string) error
	Count(ctx context.Context) (int, error)
}
