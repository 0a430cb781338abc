package subscription

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, sub *Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	// Re-subscribing from the same endpoint refreshes keys and ownership
	// instead of erroring on the unique constraint.
	query := `
		INSERT INTO push_subscriptions (id, endpoint, p256dh, auth, user_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (endpoint) DO UPDATE SET p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth, user_id = EXCLUDED.user_id
		RETURNING created_at`
	return r.db.QueryRowContext(ctx, query, sub.ID, sub.Endpoint, sub.P256dh, sub.Auth, sub.UserID).Scan(&sub.CreatedAt)
}

func (r *PostgresRepo) ListAll(ctx context.Context) ([]Subscription, error) {
	query := `SELECT id, endpoint, p256dh, auth, user_id, created_at FROM push_subscriptions`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string) ([]Subscription, error) {
	query := `SELECT id, endpoint, p256dh, auth, user_id, created_at FROM push_subscriptions WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (r *PostgresRepo) ListByUsers(ctx context.Context, userIDs []string) ([]Subscription, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := `SELECT id, endpoint, p256dh, auth, user_id, created_at FROM push_subscriptions WHERE user_id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (r *PostgresRepo) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	query := `DELETE FROM push_subscriptions WHERE endpoint = $1`
	_, err := r.db.ExecContext(ctx, query, endpoint)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM push_subscriptions`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

func scanSubscriptions(rows *sql.Rows) ([]Subscription, error) {
	var subs []Subscription
	for rows.Next() {
		var s Subscription
		if err := rows.Scan(&s.ID, &s.Endpoint, &s.P256dh, &s.Auth, &s.UserID, &s.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
