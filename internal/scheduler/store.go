package scheduler

import (
	"context"
	"database/sql"
	"time"
)

// Store is the durable job collection. All mutation goes through these
// primitives; in particular ClaimDue is the single atomic operation that
// prevents two workers from executing the same due job.
type Store interface {
	Insert(ctx context.Context, job *Job) error
	// Disable marks a job cancelled. Disabling a missing or already-disabled
	// job is not an error.
	Disable(ctx context.Context, id string) error
	// ClaimDue atomically locks and returns every enabled job whose
	// next_run_at has passed and whose lock is absent or older than
	// lockLifetime.
	ClaimDue(ctx context.Context, now time.Time, lockLifetime time.Duration) ([]Job, error)
	// Complete records a successful run: one-shot jobs are deleted, recurring
	// jobs advance next_run_at by their interval and release the lock.
	Complete(ctx context.Context, id string, finishedAt time.Time) error
	// Fail releases the lock after a handler error. Recurring jobs advance to
	// their next slot; one-shot jobs keep their past-due next_run_at.
	Fail(ctx context.Context, id string) error
	// ReclaimStale clears locks left behind by a crashed worker and returns
	// how many were cleared.
	ReclaimStale(ctx context.Context) (int, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, job *Job) error {
	query := `INSERT INTO jobs (id, name, data, next_run_at, repeat_interval) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.ExecContext(ctx, query,
		job.ID, string(job.Name), []byte(job.Data), job.NextRunAt, intervalNanos(job.RepeatInterval))
	return err
}

func (s *PostgresStore) Disable(ctx context.Context, id string) error {
	// Zero rows affected means the job was already gone or disabled; both are
	// fine, cancellation is idempotent.
	query := `UPDATE jobs SET disabled = TRUE WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

func (s *PostgresStore) ClaimDue(ctx context.Context, now time.Time, lockLifetime time.Duration) ([]Job, error) {
	// Single conditional update: the subselect picks due rows and SKIP LOCKED
	// keeps concurrent workers from blocking on (or double-claiming) the same
	// row within one statement's snapshot.
	query := `
		UPDATE jobs SET locked_at = $1
		WHERE id IN (
			SELECT id FROM jobs
			WHERE NOT disabled
			  AND next_run_at <= $1
			  AND (locked_at IS NULL OR locked_at < $2)
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, name, data, next_run_at, repeat_interval`

	rows, err := s.db.QueryContext(ctx, query, now, now.Add(-lockLifetime))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var (
			j     Job
			name  string
			data  []byte
			nanos sql.NullInt64
		)
		if err := rows.Scan(&j.ID, &name, &data, &j.NextRunAt, &nanos); err != nil {
			return nil, err
		}
		j.Name = JobName(name)
		j.Data = data
		if nanos.Valid {
			d := time.Duration(nanos.Int64)
			j.RepeatInterval = &d
		}
		lockedAt := now
		j.LockedAt = &lockedAt
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) Complete(ctx context.Context, id string, finishedAt time.Time) error {
	query := `
		UPDATE jobs
		SET locked_at = NULL,
		    last_finished_at = $2,
		    next_run_at = next_run_at + (repeat_interval / 1000000000.0) * interval '1 second'
		WHERE id = $1 AND repeat_interval IS NOT NULL`
	res, err := s.db.ExecContext(ctx, query, id, finishedAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	// One-shot: the row has served its purpose.
	_, err = s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1 AND repeat_interval IS NULL`, id)
	return err
}

func (s *PostgresStore) Fail(ctx context.Context, id string) error {
	query := `
		UPDATE jobs
		SET locked_at = NULL,
		    next_run_at = CASE
		        WHEN repeat_interval IS NULL THEN next_run_at
		        ELSE next_run_at + (repeat_interval / 1000000000.0) * interval '1 second'
		    END
		WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

func (s *PostgresStore) ReclaimStale(ctx context.Context) (int, error) {
	query := `
		UPDATE jobs SET locked_at = NULL
		WHERE locked_at IS NOT NULL
		  AND (last_finished_at IS NULL OR last_finished_at < locked_at)`
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func intervalNanos(d *time.Duration) sql.NullInt64 {
	if d == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*d), Valid: true}
}
