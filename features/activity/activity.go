// Package activity adapts externally managed activities into scheduled push
// reminders. The activity system owns the activity records; this package only
// mirrors their schedule into push events.
package activity

import "time"

// Activity is the boundary DTO handed over by the activity system. StartsAt
// is nil while the activity has no confirmed start time.
type Activity struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	StartsAt           *time.Time `json:"starts_at"`
	GroupID            string     `json:"group_id"`
	ResponsibleUserIDs []string   `json:"responsible_user_ids"`
}
