package models

import "time"

type QueueStatus string

const (
	QueueStatusQueued     QueueStatus = "queued"
	QueueStatusCalled     QueueStatus = "called"
	QueueStatusInProgress QueueStatus = "in_progress"
	QueueStatusCompleted  QueueStatus = "completed"
)

// GameQueueItem is one unit of work to call to a table: either a seeding
// (team, round) pair or a bracket game, never both. Existence and status are a
// projection of ledger/graph state; queue_position and table_number belong to
// the operator and survive re-sync.
type GameQueueItem struct {
	ID            int         `json:"id"`
	EventID       int         `json:"event_id"`
	SeedingTeamID *int        `json:"seeding_team_id,omitempty"`
	SeedingRound  *int        `json:"seeding_round,omitempty"`
	BracketGameID *int        `json:"bracket_game_id,omitempty"`
	QueuePosition int         `json:"queue_position"`
	Status        QueueStatus `json:"status"`
	TableNumber   *int        `json:"table_number,omitempty"`
	CalledAt      *time.Time  `json:"called_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`

	Team *Team        `json:"team,omitempty"`
	Game *BracketGame `json:"game,omitempty"`
}

// IsSeeding reports whether the item refers to a seeding round run.
func (q *GameQueueItem) IsSeeding() bool {
	return q.SeedingTeamID != nil && q.SeedingRound != nil
}
