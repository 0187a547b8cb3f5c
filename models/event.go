package models

import "time"

type EventStatus string

const (
	EventStatusSetup     EventStatus = "setup"
	EventStatusSeeding   EventStatus = "seeding"
	EventStatusBracket   EventStatus = "bracket"
	EventStatusCompleted EventStatus = "completed"
)

type Event struct {
	ID            int         `json:"id"`
	Name          string      `json:"name"`
	SeedingRounds int         `json:"seeding_rounds"`
	Status        EventStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
}
