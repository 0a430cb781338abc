// Package directory reads the festival backend's user/group tables. This
// subsystem never writes them.
package directory

import (
	"context"
	"database/sql"
	"errors"
)

var ErrGroupNotFound = errors.New("group not found")

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// UsersInGroup returns the current members of a group. A group without
// members is indistinguishable from a deleted one in the membership table,
// and the scheduling adapter removes events for emptied groups, so both cases
// report ErrGroupNotFound.
func (r *PostgresRepo) UsersInGroup(ctx context.Context, groupID string) ([]string, error) {
	query := `SELECT user_id FROM group_members WHERE group_id = $1`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, ErrGroupNotFound
	}
	return userIDs, nil
}
