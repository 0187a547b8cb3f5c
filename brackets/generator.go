package brackets

import (
	"context"

	"github.com/arenadesk/scorekeeper/models"
)

// SeededEntry is one bracket entrant, ordered by seed (1 is best).
type SeededEntry struct {
	TeamID int
	Seed   int
}

// GeneratedGame is a bracket node before it has a database id. Forward edges
// reference other generated games by UID; the save pass resolves them to ids.
type GeneratedGame struct {
	UID      string
	Bracket  models.BracketSide
	Round    int
	Position int

	Team1ID *int
	Team2ID *int

	// IsBye marks a first-round game with a structurally empty slot whose sole
	// occupant auto-advances.
	IsBye bool

	WinnerToUID  *string
	WinnerToSlot *int
	LoserToUID   *string
	LoserToSlot  *int
}

type GenerateParams struct {
	EventID int
	Entries []SeededEntry
}

type Generator interface {
	Generate(ctx context.Context, params GenerateParams) ([]*GeneratedGame, error)

	Name() string
}
