package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenadesk/scorekeeper/models"
)

func gameByNode(games []*models.BracketGame, bracket models.BracketSide, round, position int) *models.BracketGame {
	for _, game := range games {
		if game.Bracket == bracket && game.Round == round && game.Position == position {
			return game
		}
	}
	return nil
}

func TestGenerateBracketFourTeams(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 0)
	t1 := env.addTeam(1, 1).ID
	t2 := env.addTeam(1, 2).ID
	t3 := env.addTeam(1, 3).ID
	t4 := env.addTeam(1, 4).ID

	games, err := env.brackets.GenerateBracket(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, games, 7)

	w1 := gameByNode(games, models.BracketWinners, 1, 1)
	w2 := gameByNode(games, models.BracketWinners, 1, 2)
	wf := gameByNode(games, models.BracketWinners, 2, 1)
	l1 := gameByNode(games, models.BracketLosers, 1, 1)
	l2 := gameByNode(games, models.BracketLosers, 2, 1)
	gf := gameByNode(games, models.BracketFinal, 1, 1)
	terminal := gameByNode(games, models.BracketFinal, 2, 1)
	for _, game := range []*models.BracketGame{w1, w2, wf, l1, l2, gf, terminal} {
		require.NotNil(t, game)
	}

	// No rankings: seeding falls back to team-number order, placed 1v4 / 2v3.
	assert.Equal(t, t1, *w1.Team1ID)
	assert.Equal(t, t4, *w1.Team2ID)
	assert.Equal(t, t2, *w2.Team1ID)
	assert.Equal(t, t3, *w2.Team2ID)

	assert.Equal(t, models.GameStatusReady, w1.Status)
	assert.Equal(t, models.GameStatusReady, w2.Status)
	assert.Equal(t, models.GameStatusPending, wf.Status)
	assert.Equal(t, models.GameStatusPending, l1.Status)
	assert.Equal(t, models.GameStatusPending, l2.Status)
	assert.Equal(t, models.GameStatusPending, gf.Status)
	assert.Equal(t, models.GameStatusBye, terminal.Status)

	// Winner and loser edges resolved to database ids.
	assert.Equal(t, wf.ID, *w1.WinnerAdvancesToID)
	assert.Equal(t, 1, *w1.WinnerSlot)
	assert.Equal(t, l1.ID, *w1.LoserAdvancesToID)
	assert.Equal(t, 1, *w1.LoserSlot)
	assert.Equal(t, wf.ID, *w2.WinnerAdvancesToID)
	assert.Equal(t, 2, *w2.WinnerSlot)
	assert.Equal(t, l1.ID, *w2.LoserAdvancesToID)
	assert.Equal(t, 2, *w2.LoserSlot)

	assert.Equal(t, l2.ID, *l1.WinnerAdvancesToID)
	assert.Equal(t, 1, *l1.WinnerSlot)
	assert.Equal(t, l2.ID, *wf.LoserAdvancesToID)
	assert.Equal(t, 2, *wf.LoserSlot)

	assert.Equal(t, gf.ID, *wf.WinnerAdvancesToID)
	assert.Equal(t, gf.ID, *l2.WinnerAdvancesToID)

	// The grand final points both edges at the terminal node.
	assert.True(t, gf.HasResetEdge())
	assert.Equal(t, terminal.ID, *gf.WinnerAdvancesToID)
	assert.Equal(t, terminal.ID, *gf.LoserAdvancesToID)
}

func TestGenerateBracketUsesSeedRanks(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 1)
	t1 := env.addTeam(1, 1)
	t2 := env.addTeam(1, 2)

	// Team 2 outscored team 1 in seeding.
	env.addSeedingScore(t, 1, t2.ID, 1, 100)
	env.addSeedingScore(t, 1, t1.ID, 1, 50)
	_, err := env.rankings.Recalculate(context.Background(), 1)
	require.NoError(t, err)

	games, err := env.brackets.GenerateBracket(context.Background(), 1)
	require.NoError(t, err)

	only := gameByNode(games, models.BracketWinners, 1, 1)
	require.NotNil(t, only)
	assert.Equal(t, t2.ID, *only.Team1ID)
	assert.Equal(t, t1.ID, *only.Team2ID)
}

func TestGenerateBracketExcludesInactiveTeams(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 0)
	env.addTeam(1, 1)
	env.addTeam(1, 2)
	noShow := env.addTeam(1, 3)
	require.NoError(t, env.teams.UpdateStatus(context.Background(), noShow.ID, models.TeamStatusNoShow))

	games, err := env.brackets.GenerateBracket(context.Background(), 1)
	require.NoError(t, err)

	for _, game := range games {
		assert.False(t, game.HasTeam(noShow.ID))
	}
}

func TestGenerateBracketNotEnoughTeams(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 0)
	env.addTeam(1, 1)

	_, err := env.brackets.GenerateBracket(context.Background(), 1)
	assert.ErrorIs(t, err, ErrBracketNotEnoughTeams)
}

func TestGenerateBracketReplacesExistingBracket(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 0)
	env.addTeam(1, 1)
	env.addTeam(1, 2)
	env.addTeam(1, 3)
	env.addTeam(1, 4)

	first, err := env.brackets.GenerateBracket(context.Background(), 1)
	require.NoError(t, err)
	second, err := env.brackets.GenerateBracket(context.Background(), 1)
	require.NoError(t, err)

	assert.Len(t, second, len(first))
	games, err := env.brackets.GetBracket(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, games, 7)
}

func TestGenerateBracketResolvesFirstRoundByes(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 0)
	t1 := env.addTeam(1, 1).ID
	env.addTeam(1, 2)
	env.addTeam(1, 3)

	games, err := env.brackets.GenerateBracket(context.Background(), 1)
	require.NoError(t, err)

	// Three entrants in a four slot field: the top seed walks over.
	walkover := gameByNode(games, models.BracketWinners, 1, 1)
	require.NotNil(t, walkover)
	assert.Equal(t, models.GameStatusBye, walkover.Status)
	require.NotNil(t, walkover.WinnerID)
	assert.Equal(t, t1, *walkover.WinnerID)

	wf := gameByNode(games, models.BracketWinners, 2, 1)
	require.NotNil(t, wf)
	require.NotNil(t, wf.Team1ID)
	assert.Equal(t, t1, *wf.Team1ID)
	assert.Equal(t, models.GameStatusPending, wf.Status)
}

func TestResolveByesCascadesThroughEmptyGames(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 0)
	a := env.addTeam(1, 1).ID
	c := env.addTeam(1, 2).ID

	// C has an occupant waiting; B sits between A and C with no other feed, so
	// A's occupant must ride two bye hops and make C ready.
	gameC := env.addGame(t, &models.BracketGame{
		EventID: 1, Bracket: models.BracketLosers, Round: 3, Position: 1,
		Team2ID: &c, Status: models.GameStatusPending,
	})
	gameB := env.addGame(t, &models.BracketGame{
		EventID: 1, Bracket: models.BracketLosers, Round: 2, Position: 1,
		Status:             models.GameStatusPending,
		WinnerAdvancesToID: &gameC.ID, WinnerSlot: intPtr(1),
	})
	gameA := env.addGame(t, &models.BracketGame{
		EventID: 1, Bracket: models.BracketLosers, Round: 1, Position: 1,
		Team1ID: &a, Status: models.GameStatusPending,
		WinnerAdvancesToID: &gameB.ID, WinnerSlot: intPtr(1),
	})

	resolution, err := env.brackets.ResolveByes(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, resolution.ByeGamesResolved)
	assert.Equal(t, 2, resolution.SlotsFilled)
	assert.Equal(t, 1, resolution.ReadyGamesUpdated)

	updatedA, err := env.games.GetByID(context.Background(), gameA.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusBye, updatedA.Status)
	assert.Equal(t, a, *updatedA.WinnerID)

	updatedB, err := env.games.GetByID(context.Background(), gameB.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusBye, updatedB.Status)
	assert.Equal(t, a, *updatedB.WinnerID)

	updatedC, err := env.games.GetByID(context.Background(), gameC.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusReady, updatedC.Status)
	assert.Equal(t, a, *updatedC.Team1ID)
	assert.Equal(t, c, *updatedC.Team2ID)
}

func TestResolveByesIsIdempotent(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 0)
	env.addTeam(1, 1)
	env.addTeam(1, 2)
	env.addTeam(1, 3)

	_, err := env.brackets.GenerateBracket(context.Background(), 1)
	require.NoError(t, err)

	resolution, err := env.brackets.ResolveByes(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, resolution.ByeGamesResolved)
	assert.Equal(t, 0, resolution.SlotsFilled)
	assert.Equal(t, 0, resolution.ReadyGamesUpdated)
}

func TestResolveByesLeavesFullBracketAlone(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 0)
	a := env.addTeam(1, 1).ID
	b := env.addTeam(1, 2).ID

	env.addGame(t, &models.BracketGame{
		EventID: 1, Bracket: models.BracketWinners, Round: 1, Position: 1,
		Team1ID: &a, Team2ID: &b, Status: models.GameStatusReady,
	})

	resolution, err := env.brackets.ResolveByes(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, resolution.ByeGamesResolved)
}
