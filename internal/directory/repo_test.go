package directory_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festhub/internal/directory"
)

func TestPostgresRepo_UsersInGroup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := directory.NewPostgresRepo(db)

	t.Run("ReturnsMembers", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"user_id"}).
			AddRow("u1").
			AddRow("u2")

		mock.ExpectQuery("SELECT user_id FROM group_members WHERE group_id = ").
			WithArgs("crew").
			WillReturnRows(rows)

		users, err := repo.UsersInGroup(context.Background(), "crew")
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u2"}, users)
	})

	t.Run("EmptyGroupIsNotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT user_id FROM group_members WHERE group_id = ").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

		_, err := repo.UsersInGroup(context.Background(), "ghost")
		assert.ErrorIs(t, err, directory.ErrGroupNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
