package models

import "time"

type BracketSide string

const (
	BracketWinners BracketSide = "winners"
	BracketLosers  BracketSide = "losers"
	BracketFinal   BracketSide = "final"
)

type GameStatus string

const (
	GameStatusPending    GameStatus = "pending"
	GameStatusReady      GameStatus = "ready"
	GameStatusInProgress GameStatus = "in_progress"
	GameStatusCompleted  GameStatus = "completed"
	GameStatusBye        GameStatus = "bye"
)

// BracketGame is a node in the bracket graph. The two forward edges name the
// downstream game and which of its slots (1 or 2) the advancing team fills.
// A loser edge pointing at the same game as the winner edge marks the
// grand-final reset special case and is never followed.
type BracketGame struct {
	ID       int         `json:"id"`
	EventID  int         `json:"event_id"`
	Bracket  BracketSide `json:"bracket"`
	Round    int         `json:"round"`
	Position int         `json:"position"`

	Team1ID *int `json:"team1_id,omitempty"`
	Team2ID *int `json:"team2_id,omitempty"`

	Status     GameStatus `json:"status"`
	WinnerID   *int       `json:"winner_id,omitempty"`
	LoserID    *int       `json:"loser_id,omitempty"`
	Team1Score *float64   `json:"team1_score,omitempty"`
	Team2Score *float64   `json:"team2_score,omitempty"`

	WinnerAdvancesToID *int `json:"winner_advances_to_id,omitempty"`
	WinnerSlot         *int `json:"winner_slot,omitempty"`
	LoserAdvancesToID  *int `json:"loser_advances_to_id,omitempty"`
	LoserSlot          *int `json:"loser_slot,omitempty"`

	ScoreSubmissionID *int       `json:"score_submission_id,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// HasTeam reports whether teamID occupies one of the game's slots.
func (g *BracketGame) HasTeam(teamID int) bool {
	return (g.Team1ID != nil && *g.Team1ID == teamID) ||
		(g.Team2ID != nil && *g.Team2ID == teamID)
}

// Opponent returns the other slot occupant, or nil if the slot is empty.
func (g *BracketGame) Opponent(teamID int) *int {
	if g.Team1ID != nil && *g.Team1ID == teamID {
		return g.Team2ID
	}
	if g.Team2ID != nil && *g.Team2ID == teamID {
		return g.Team1ID
	}
	return nil
}

// BothSlotsFilled reports whether both team slots are occupied.
func (g *BracketGame) BothSlotsFilled() bool {
	return g.Team1ID != nil && g.Team2ID != nil
}

// SoleOccupant returns the single filled slot of a one-team game, or nil when
// the game has zero or two occupants.
func (g *BracketGame) SoleOccupant() *int {
	if g.Team1ID != nil && g.Team2ID == nil {
		return g.Team1ID
	}
	if g.Team2ID != nil && g.Team1ID == nil {
		return g.Team2ID
	}
	return nil
}

// HasResetEdge reports whether winner and loser edges point at the same
// downstream game (the grand-final "no true reset" construction).
func (g *BracketGame) HasResetEdge() bool {
	return g.WinnerAdvancesToID != nil && g.LoserAdvancesToID != nil &&
		*g.WinnerAdvancesToID == *g.LoserAdvancesToID
}
