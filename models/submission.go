package models

import (
	"encoding/json"
	"time"
)

type ScoreType string

const (
	ScoreTypeSeeding ScoreType = "seeding"
	ScoreTypeBracket ScoreType = "bracket"
)

type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusAccepted SubmissionStatus = "accepted"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// ScoreSubmission is one judging event. The payload and the typed score fields
// are immutable after creation; only status and review metadata change.
// EventID is nullable because legacy spreadsheet-era rows have no event scope
// and must be routed around the acceptance engine.
type ScoreSubmission struct {
	ID            int              `json:"id"`
	EventID       *int             `json:"event_id,omitempty"`
	ScoreType     ScoreType        `json:"score_type"`
	TeamID        *int             `json:"team_id,omitempty"`
	TeamNumber    *int             `json:"team_number,omitempty"`
	RoundNumber   *int             `json:"round_number,omitempty"`
	Score         *float64         `json:"score,omitempty"`
	BracketGameID *int             `json:"bracket_game_id,omitempty"`
	WinnerTeamID  *int             `json:"winner_team_id,omitempty"`
	WinnerScore   *float64         `json:"winner_score,omitempty"`
	LoserScore    *float64         `json:"loser_score,omitempty"`
	Payload       json.RawMessage  `json:"payload,omitempty"`
	Status        SubmissionStatus `json:"status"`
	ReviewedBy    *int             `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time       `json:"reviewed_at,omitempty"`

	// SeedingScoreID points at the ledger row an accepted seeding submission produced.
	SeedingScoreID *int      `json:"seeding_score_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
