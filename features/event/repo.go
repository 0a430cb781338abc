package event

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

const eventColumns = `id, title, body, repeat, run_at, run_interval, active, target_kind, target_user_id, target_group_id, job_id, activity_id, created_at, updated_at`

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, ev *Event) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	query := `
		INSERT INTO scheduled_push_events
			(id, title, body, repeat, run_at, run_interval, active, target_kind, target_user_id, target_group_id, job_id, activity_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`
	return r.db.QueryRowContext(ctx, query,
		ev.ID, ev.Title, ev.Body, string(ev.Repeat), nullTime(ev.At), nullNanos(ev.Interval),
		ev.Active, string(ev.Target.Kind), nullStr(ev.Target.UserID), nullStr(ev.Target.GroupID),
		nullStr(ev.JobID), nullStr(ev.ActivityID),
	).Scan(&ev.CreatedAt, &ev.UpdatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM scheduled_push_events WHERE id = $1`
	ev, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ev, err
}

func (r *PostgresRepo) List(ctx context.Context) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM scheduled_push_events ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *PostgresRepo) Update(ctx context.Context, ev *Event) error {
	query := `
		UPDATE scheduled_push_events
		SET title = $2, body = $3, repeat = $4, run_at = $5, run_interval = $6, active = $7,
		    target_kind = $8, target_user_id = $9, target_group_id = $10, job_id = $11, activity_id = $12,
		    updated_at = NOW()
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		ev.ID, ev.Title, ev.Body, string(ev.Repeat), nullTime(ev.At), nullNanos(ev.Interval),
		ev.Active, string(ev.Target.Kind), nullStr(ev.Target.UserID), nullStr(ev.Target.GroupID),
		nullStr(ev.JobID), nullStr(ev.ActivityID))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM scheduled_push_events WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *PostgresRepo) ListPastDueOnce(ctx context.Context, now time.Time) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM scheduled_push_events WHERE repeat = 'once' AND active AND run_at < $1`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *PostgresRepo) ListByActivity(ctx context.Context, activityID string) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM scheduled_push_events WHERE activity_id = $1`
	rows, err := r.db.QueryContext(ctx, query, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scheduled_push_events`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		ev       Event
		repeat   string
		kind     string
		runAt    sql.NullTime
		nanos    sql.NullInt64
		userID   sql.NullString
		groupID  sql.NullString
		jobID    sql.NullString
		activity sql.NullString
	)
	err := row.Scan(&ev.ID, &ev.Title, &ev.Body, &repeat, &runAt, &nanos, &ev.Active,
		&kind, &userID, &groupID, &jobID, &activity, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ev.Repeat = Repeat(repeat)
	ev.Target = Target{Kind: TargetKind(kind), UserID: userID.String, GroupID: groupID.String}
	if runAt.Valid {
		ev.At = runAt.Time
	}
	if nanos.Valid {
		ev.Interval = time.Duration(nanos.Int64)
	}
	ev.JobID = jobID.String
	ev.ActivityID = activity.String
	return &ev, nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullNanos(d time.Duration) any {
	if d == 0 {
		return nil
	}
	return int64(d)
}
