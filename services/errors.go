package services

import (
	"errors"
	"fmt"
)

// Shared errors used across services and the HTTP mapping layer.
var (
	// Not found family
	ErrNotFound           = errors.New("requested resource not found")
	ErrEventNotFound      = errors.New("event not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrSubmissionNotFound = errors.New("score submission not found")
	ErrGameNotFound       = errors.New("bracket game not found")
	ErrQueueItemNotFound  = errors.New("game queue item not found")

	// Validation and business-rule errors (map to 400)
	ErrSubmissionNotEventScoped  = errors.New("submission is not event-scoped, use the legacy import path")
	ErrSubmissionAlreadyAccepted = errors.New("submission has already been accepted")
	ErrSubmissionNotPending      = errors.New("submission is not pending review")
	ErrUnknownScoreType          = errors.New("unknown score type on submission")
	ErrSeedingFieldsMissing      = errors.New("submission is missing team or round for a seeding score")
	ErrBracketFieldsMissing      = errors.New("submission is missing bracket game or winner")
	ErrTeamNotInEvent            = errors.New("team does not belong to this event")
	ErrWinnerNotInGame           = errors.New("declared winner is not one of the game's teams")
	ErrGameSlotsIncomplete       = errors.New("bracket game does not have both teams assigned")
	ErrInvalidQueueTransition    = errors.New("invalid game queue status transition")
	ErrInvalidGameTransition     = errors.New("invalid bracket game status transition")
	ErrQueueItemMisconfigured    = errors.New("queue item must reference a seeding pair or a bracket game, not both")
	ErrBracketNotEnoughTeams     = errors.New("not enough teams to generate a bracket")

	// Conflict sentinels (map to 409); the typed errors below unwrap to these
	// so callers can errors.Is the family and errors.As the values.
	ErrSeedingScoreConflict  = errors.New("a seeding score is already recorded for this team and round")
	ErrBracketWinnerConflict = errors.New("a different winner is already recorded for this game")
	ErrQueueItemConflict     = errors.New("a queue item already exists for this work unit")

	// Auth perimeter
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// SeedingScoreConflictError carries both the recorded and the candidate value
// so a reviewer can see the diff before retrying with force.
type SeedingScoreConflictError struct {
	TeamID      int      `json:"team_id"`
	RoundNumber int      `json:"round_number"`
	Existing    *float64 `json:"existing_score"`
	Candidate   *float64 `json:"candidate_score"`
}

func (e *SeedingScoreConflictError) Error() string {
	return fmt.Sprintf("%v: team %d round %d (existing %s, candidate %s)",
		ErrSeedingScoreConflict, e.TeamID, e.RoundNumber,
		formatScore(e.Existing), formatScore(e.Candidate))
}

func (e *SeedingScoreConflictError) Unwrap() error { return ErrSeedingScoreConflict }

// BracketWinnerConflictError carries both winner ids for the same reason.
type BracketWinnerConflictError struct {
	GameID            int `json:"game_id"`
	ExistingWinnerID  int `json:"existing_winner_id"`
	CandidateWinnerID int `json:"candidate_winner_id"`
}

func (e *BracketWinnerConflictError) Error() string {
	return fmt.Sprintf("%v: game %d (existing winner %d, candidate winner %d)",
		ErrBracketWinnerConflict, e.GameID, e.ExistingWinnerID, e.CandidateWinnerID)
}

func (e *BracketWinnerConflictError) Unwrap() error { return ErrBracketWinnerConflict }

func formatScore(v *float64) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%g", *v)
}
