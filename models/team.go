package models

import "time"

type TeamStatus string

const (
	TeamStatusRegistered TeamStatus = "registered"
	TeamStatusCheckedIn  TeamStatus = "checked_in"
	TeamStatusNoShow     TeamStatus = "no_show"
	TeamStatusWithdrawn  TeamStatus = "withdrawn"
)

// Team is unique per (event_id, team_number) within its event.
type Team struct {
	ID         int        `json:"id"`
	EventID    int        `json:"event_id"`
	TeamNumber int        `json:"team_number"`
	Name       string     `json:"name"`
	Status     TeamStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Active reports whether the team still takes part in play.
func (t *Team) Active() bool {
	return t.Status == TeamStatusRegistered || t.Status == TeamStatusCheckedIn
}
