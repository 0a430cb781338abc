package scheduler_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festhub/internal/scheduler"
)

func TestPostgresStore_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := scheduler.NewPostgresStore(db)

	t.Run("OneShot", func(t *testing.T) {
		at := time.Now().Add(time.Hour)
		job := &scheduler.Job{
			ID:        "job-1",
			Name:      "notify.broadcast",
			Data:      json.RawMessage(`{"event_id":"e1"}`),
			NextRunAt: at,
		}

		mock.ExpectExec("INSERT INTO jobs").
			WithArgs("job-1", "notify.broadcast", []byte(`{"event_id":"e1"}`), at, nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.Insert(context.Background(), job)
		assert.NoError(t, err)
	})

	t.Run("Recurring", func(t *testing.T) {
		at := time.Now().Add(time.Minute)
		interval := time.Hour
		job := &scheduler.Job{
			ID:             "job-2",
			Name:           "notify.to-group",
			Data:           json.RawMessage(`{}`),
			NextRunAt:      at,
			RepeatInterval: &interval,
		}

		mock.ExpectExec("INSERT INTO jobs").
			WithArgs("job-2", "notify.to-group", []byte(`{}`), at, int64(time.Hour)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.Insert(context.Background(), job)
		assert.NoError(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Disable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := scheduler.NewPostgresStore(db)

	t.Run("Existing", func(t *testing.T) {
		mock.ExpectExec("UPDATE jobs SET disabled = TRUE").
			WithArgs("job-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.Disable(context.Background(), "job-1"))
	})

	t.Run("MissingIsNotAnError", func(t *testing.T) {
		mock.ExpectExec("UPDATE jobs SET disabled = TRUE").
			WithArgs("gone").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, store.Disable(context.Background(), "gone"))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClaimDue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := scheduler.NewPostgresStore(db)
	now := time.Now()

	t.Run("ReturnsClaimedJobs", func(t *testing.T) {
		interval := int64(time.Hour)
		rows := sqlmock.NewRows([]string{"id", "name", "data", "next_run_at", "repeat_interval"}).
			AddRow("job-1", "notify.broadcast", []byte(`{}`), now.Add(-time.Minute), nil).
			AddRow("job-2", "notify.to-user", []byte(`{"user_id":"u1"}`), now.Add(-time.Second), interval)

		mock.ExpectQuery("UPDATE jobs SET locked_at").
			WithArgs(now, now.Add(-10*time.Minute)).
			WillReturnRows(rows)

		jobs, err := store.ClaimDue(context.Background(), now, 10*time.Minute)
		require.NoError(t, err)
		require.Len(t, jobs, 2)

		assert.Equal(t, scheduler.JobName("notify.broadcast"), jobs[0].Name)
		assert.Nil(t, jobs[0].RepeatInterval)
		assert.False(t, jobs[0].Recurring())

		require.NotNil(t, jobs[1].RepeatInterval)
		assert.Equal(t, time.Hour, *jobs[1].RepeatInterval)
		assert.NotNil(t, jobs[1].LockedAt)
	})

	t.Run("NothingDue", func(t *testing.T) {
		mock.ExpectQuery("UPDATE jobs SET locked_at").
			WithArgs(now, now.Add(-10*time.Minute)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "data", "next_run_at", "repeat_interval"}))

		jobs, err := store.ClaimDue(context.Background(), now, 10*time.Minute)
		assert.NoError(t, err)
		assert.Empty(t, jobs)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Complete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := scheduler.NewPostgresStore(db)
	finished := time.Now()

	t.Run("RecurringAdvances", func(t *testing.T) {
		mock.ExpectExec("UPDATE jobs").
			WithArgs("job-1", finished).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.Complete(context.Background(), "job-1", finished))
	})

	t.Run("OneShotDeleted", func(t *testing.T) {
		mock.ExpectExec("UPDATE jobs").
			WithArgs("job-2", finished).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM jobs").
			WithArgs("job-2").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.Complete(context.Background(), "job-2", finished))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Fail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := scheduler.NewPostgresStore(db)

	mock.ExpectExec("UPDATE jobs").
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.Fail(context.Background(), "job-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReclaimStale(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := scheduler.NewPostgresStore(db)

	mock.ExpectExec("UPDATE jobs SET locked_at = NULL").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.ReclaimStale(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
