package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenadesk/scorekeeper/models"
)

func (e *testEnv) addSeedingSubmission(t *testing.T, eventID, teamNumber, round int, score float64) *models.ScoreSubmission {
	t.Helper()
	sub := &models.ScoreSubmission{
		EventID:     intPtr(eventID),
		ScoreType:   models.ScoreTypeSeeding,
		TeamNumber:  intPtr(teamNumber),
		RoundNumber: intPtr(round),
		Score:       float64Ptr(score),
		Status:      models.SubmissionStatusPending,
	}
	require.NoError(t, e.submissions.Create(context.Background(), nil, sub))
	return sub
}

func (e *testEnv) addBracketSubmission(t *testing.T, eventID, gameID, winnerID int) *models.ScoreSubmission {
	t.Helper()
	sub := &models.ScoreSubmission{
		EventID:       intPtr(eventID),
		ScoreType:     models.ScoreTypeBracket,
		BracketGameID: intPtr(gameID),
		WinnerTeamID:  intPtr(winnerID),
		WinnerScore:   float64Ptr(2),
		LoserScore:    float64Ptr(1),
		Status:        models.SubmissionStatusPending,
	}
	require.NoError(t, e.submissions.Create(context.Background(), nil, sub))
	return sub
}

func (e *testEnv) addGame(t *testing.T, game *models.BracketGame) *models.BracketGame {
	t.Helper()
	require.NoError(t, e.games.Create(context.Background(), nil, game))
	return game
}

func TestAcceptSeedingScoreWritesLedgerAndDerivedState(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 3)
	team := env.addTeam(1, 7)
	sub := env.addSeedingSubmission(t, 1, 7, 2, 115.5)

	reviewer := 42
	result, err := env.acceptance.AcceptScore(context.Background(), sub.ID, false, &reviewer, "")
	require.NoError(t, err)

	require.NotNil(t, result.SeedingScore)
	assert.Equal(t, team.ID, result.SeedingScore.TeamID)
	assert.Equal(t, 2, result.SeedingScore.RoundNumber)
	assert.Equal(t, 115.5, *result.SeedingScore.Score)
	assert.Equal(t, models.SubmissionStatusAccepted, result.Submission.Status)
	assert.Equal(t, &reviewer, result.Submission.ReviewedBy)

	stored, err := env.scores.GetByTeamAndRound(context.Background(), team.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, *stored.SubmissionID)

	// Queue sync created the full team-by-round grid; the scored pair is
	// already completed.
	items, err := env.queueSvc.ListQueue(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, item := range items {
		if *item.SeedingRound == 2 {
			assert.Equal(t, models.QueueStatusCompleted, item.Status)
		} else {
			assert.Equal(t, models.QueueStatusQueued, item.Status)
		}
	}

	// Rankings were recomputed off the new ledger row.
	rankings, err := env.rankings.ListByEvent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rankings, 1)
	assert.Equal(t, 1, *rankings[0].SeedRank)

	require.NotEmpty(t, env.audit.entries)
	assert.Equal(t, "score.accepted", env.audit.entries[len(env.audit.entries)-1].Action)
}

func TestAcceptScoreTwiceFailsWithoutForce(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 1)
	env.addTeam(1, 1)
	sub := env.addSeedingSubmission(t, 1, 1, 1, 50)

	_, err := env.acceptance.AcceptScore(context.Background(), sub.ID, false, nil, "")
	require.NoError(t, err)

	_, err = env.acceptance.AcceptScore(context.Background(), sub.ID, false, nil, "")
	assert.ErrorIs(t, err, ErrSubmissionAlreadyAccepted)

	// Force re-applies the same submission.
	_, err = env.acceptance.AcceptScore(context.Background(), sub.ID, true, nil, "")
	assert.NoError(t, err)
}

func TestAcceptSeedingScoreConflict(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 1)
	team := env.addTeam(1, 1)

	first := env.addSeedingSubmission(t, 1, 1, 1, 100)
	_, err := env.acceptance.AcceptScore(context.Background(), first.ID, false, nil, "")
	require.NoError(t, err)

	second := env.addSeedingSubmission(t, 1, 1, 1, 80)
	_, err = env.acceptance.AcceptScore(context.Background(), second.ID, false, nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSeedingScoreConflict)

	var conflict *SeedingScoreConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, team.ID, conflict.TeamID)
	assert.Equal(t, 100.0, *conflict.Existing)
	assert.Equal(t, 80.0, *conflict.Candidate)

	// The ledger kept the first value.
	stored, err := env.scores.GetByTeamAndRound(context.Background(), team.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, *stored.Score)

	// Force overwrites.
	_, err = env.acceptance.AcceptScore(context.Background(), second.ID, true, nil, "")
	require.NoError(t, err)
	stored, err = env.scores.GetByTeamAndRound(context.Background(), team.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 80.0, *stored.Score)
}

func TestAcceptSeedingScoreValidation(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 1)

	sub := &models.ScoreSubmission{
		EventID:   intPtr(1),
		ScoreType: models.ScoreTypeSeeding,
		Score:     float64Ptr(10),
		Status:    models.SubmissionStatusPending,
	}
	require.NoError(t, env.submissions.Create(context.Background(), nil, sub))

	_, err := env.acceptance.AcceptScore(context.Background(), sub.ID, false, nil, "")
	assert.ErrorIs(t, err, ErrSeedingFieldsMissing)

	legacy := &models.ScoreSubmission{
		ScoreType: models.ScoreTypeSeeding,
		Status:    models.SubmissionStatusPending,
	}
	require.NoError(t, env.submissions.Create(context.Background(), nil, legacy))

	_, err = env.acceptance.AcceptScore(context.Background(), legacy.ID, false, nil, "")
	assert.ErrorIs(t, err, ErrSubmissionNotEventScoped)
}

// Four entrants, winners round one: both games feed the winners final and the
// single losers game.
func (e *testEnv) addFourTeamRound(t *testing.T, a, b, c, d int) (g1, g2, final, losers *models.BracketGame) {
	final = e.addGame(t, &models.BracketGame{
		EventID: 1, Bracket: models.BracketWinners, Round: 2, Position: 1,
		Status: models.GameStatusPending,
	})
	losers = e.addGame(t, &models.BracketGame{
		EventID: 1, Bracket: models.BracketLosers, Round: 1, Position: 1,
		Status: models.GameStatusPending,
	})
	g1 = e.addGame(t, &models.BracketGame{
		EventID: 1, Bracket: models.BracketWinners, Round: 1, Position: 1,
		Team1ID: &a, Team2ID: &b, Status: models.GameStatusReady,
		WinnerAdvancesToID: &final.ID, WinnerSlot: intPtr(1),
		LoserAdvancesToID: &losers.ID, LoserSlot: intPtr(1),
	})
	g2 = e.addGame(t, &models.BracketGame{
		EventID: 1, Bracket: models.BracketWinners, Round: 1, Position: 2,
		Team1ID: &c, Team2ID: &d, Status: models.GameStatusReady,
		WinnerAdvancesToID: &final.ID, WinnerSlot: intPtr(2),
		LoserAdvancesToID: &losers.ID, LoserSlot: intPtr(2),
	})
	return g1, g2, final, losers
}

func TestAcceptBracketScorePropagatesWinnerAndLoser(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 0)
	a := env.addTeam(1, 1).ID
	b := env.addTeam(1, 2).ID
	c := env.addTeam(1, 3).ID
	d := env.addTeam(1, 4).ID
	g1, g2, final, losers := env.addFourTeamRound(t, a, b, c, d)

	sub := env.addBracketSubmission(t, 1, g1.ID, a)
	result, err := env.acceptance.AcceptScore(context.Background(), sub.ID, false, nil, "")
	require.NoError(t, err)

	require.NotNil(t, result.Game)
	assert.Equal(t, a, *result.Game.WinnerID)
	assert.Equal(t, b, *result.Game.LoserID)
	assert.Equal(t, 2.0, *result.Game.Team1Score)
	assert.Equal(t, 1.0, *result.Game.Team2Score)

	updatedFinal, err := env.games.GetByID(context.Background(), final.ID)
	require.NoError(t, err)
	assert.Equal(t, a, *updatedFinal.Team1ID)
	assert.Nil(t, updatedFinal.Team2ID)
	assert.Equal(t, models.GameStatusPending, updatedFinal.Status)

	updatedLosers, err := env.games.GetByID(context.Background(), losers.ID)
	require.NoError(t, err)
	assert.Equal(t, b, *updatedLosers.Team1ID)

	// The completed game shows up in the bracket queue as completed; nothing
	// is runnable yet beyond the untouched g2.
	items, err := env.queueSvc.ListQueue(context.Background(), 1)
	require.NoError(t, err)
	statusByGame := make(map[int]models.QueueStatus)
	for _, item := range items {
		statusByGame[*item.BracketGameID] = item.Status
	}
	assert.Equal(t, models.QueueStatusCompleted, statusByGame[g1.ID])
	assert.Equal(t, models.QueueStatusQueued, statusByGame[g2.ID])
}

func TestAcceptBracketWinnerValidation(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 0)
	a := env.addTeam(1, 1).ID
	b := env.addTeam(1, 2).ID
	outsider := env.addTeam(1, 3).ID

	game := env.addGame(t, &models.BracketGame{
		EventID: 1, Bracket: models.BracketWinners, Round: 1, Position: 1,
		Team1ID: &a, Team2ID: &b, Status: models.GameStatusReady,
	})

	sub := env.addBracketSubmission(t, 1, game.ID, outsider)
	_, err := env.acceptance.AcceptScore(context.Background(), sub.ID, false, nil, "")
	assert.ErrorIs(t, err, ErrWinnerNotInGame)

	half := env.addGame(t, &models.BracketGame{
		EventID: 1, Bracket: models.BracketWinners, Round: 1, Position: 2,
		Team1ID: &a, Status: models.GameStatusPending,
	})
	sub2 := env.addBracketSubmission(t, 1, half.ID, a)
	_, err = env.acceptance.AcceptScore(context.Background(), sub2.ID, false, nil, "")
	assert.ErrorIs(t, err, ErrGameSlotsIncomplete)
}

func TestAcceptBracketWinnerConflict(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 0)
	a := env.addTeam(1, 1).ID
	b := env.addTeam(1, 2).ID

	game := env.addGame(t, &models.BracketGame{
		EventID: 1, Bracket: models.BracketWinners, Round: 1, Position: 1,
		Team1ID: &a, Team2ID: &b, Status: models.GameStatusReady,
	})

	first := env.addBracketSubmission(t, 1, game.ID, a)
	_, err := env.acceptance.AcceptScore(context.Background(), first.ID, false, nil, "")
	require.NoError(t, err)

	second := env.addBracketSubmission(t, 1, game.ID, b)
	_, err = env.acceptance.AcceptScore(context.Background(), second.ID, false, nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBracketWinnerConflict)

	var conflict *BracketWinnerConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, a, conflict.ExistingWinnerID)
	assert.Equal(t, b, conflict.CandidateWinnerID)

	// Force records the corrected result.
	_, err = env.acceptance.AcceptScore(context.Background(), second.ID, true, nil, "")
	require.NoError(t, err)
	updated, err := env.games.GetByID(context.Background(), game.ID)
	require.NoError(t, err)
	assert.Equal(t, b, *updated.WinnerID)
	assert.Equal(t, a, *updated.LoserID)
}

func TestAcceptGrandFinalDoesNotPropagateLoser(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 0)
	a := env.addTeam(1, 1).ID
	b := env.addTeam(1, 2).ID

	terminal := env.addGame(t, &models.BracketGame{
		EventID: 1, Bracket: models.BracketFinal, Round: 2, Position: 1,
		Status: models.GameStatusBye,
	})
	grandFinal := env.addGame(t, &models.BracketGame{
		EventID: 1, Bracket: models.BracketFinal, Round: 1, Position: 1,
		Team1ID: &a, Team2ID: &b, Status: models.GameStatusReady,
		WinnerAdvancesToID: &terminal.ID, WinnerSlot: intPtr(1),
		LoserAdvancesToID: &terminal.ID, LoserSlot: intPtr(2),
	})

	sub := env.addBracketSubmission(t, 1, grandFinal.ID, a)
	_, err := env.acceptance.AcceptScore(context.Background(), sub.ID, false, nil, "")
	require.NoError(t, err)

	// Only the champion lands in the terminal node; the loser edge is the
	// structural reset marker and is never followed.
	updated, err := env.games.GetByID(context.Background(), terminal.ID)
	require.NoError(t, err)
	assert.Equal(t, a, *updated.Team1ID)
	assert.Nil(t, updated.Team2ID)

	// Bye resolution then records the champion on the terminal node.
	assert.Equal(t, a, *updated.WinnerID)
}

func TestRejectScore(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 1)
	env.addTeam(1, 1)
	sub := env.addSeedingSubmission(t, 1, 1, 1, 60)

	reviewer := 9
	require.NoError(t, env.acceptance.RejectScore(context.Background(), sub.ID, &reviewer, ""))

	stored, err := env.submissions.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusRejected, stored.Status)

	// Rejection touches nothing else.
	_, err = env.scores.GetByTeamAndRound(context.Background(), 1, 1)
	assert.Error(t, err)

	err = env.acceptance.RejectScore(context.Background(), sub.ID, &reviewer, "")
	assert.ErrorIs(t, err, ErrSubmissionNotPending)
}

func TestResyncRebuildsDerivedState(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 2)
	team := env.addTeam(1, 1)
	env.addSeedingScore(t, 1, team.ID, 1, 40)

	require.NoError(t, env.acceptance.Resync(context.Background(), 1))

	items, err := env.queueSvc.ListQueue(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 2)

	rankings, err := env.rankings.ListByEvent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rankings, 1)
	assert.Equal(t, 1, *rankings[0].SeedRank)
}

func TestAcceptUnknownSubmission(t *testing.T) {
	env := newTestEnv()
	_, err := env.acceptance.AcceptScore(context.Background(), 999, false, nil, "")
	assert.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestAcceptSameWinnerAgainIsIdempotent(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 0)
	a := env.addTeam(1, 1).ID
	b := env.addTeam(1, 2).ID
	c := env.addTeam(1, 3).ID
	d := env.addTeam(1, 4).ID
	g1, _, final, _ := env.addFourTeamRound(t, a, b, c, d)

	first := env.addBracketSubmission(t, 1, g1.ID, a)
	_, err := env.acceptance.AcceptScore(context.Background(), first.ID, false, nil, "")
	require.NoError(t, err)

	// A duplicate report of the same result is not a conflict; it re-applies
	// without force.
	duplicate := env.addBracketSubmission(t, 1, g1.ID, a)
	result, err := env.acceptance.AcceptScore(context.Background(), duplicate.ID, false, nil, "")
	require.NoError(t, err)
	assert.Equal(t, a, *result.Game.WinnerID)

	updated, err := env.games.GetByID(context.Background(), g1.ID)
	require.NoError(t, err)
	assert.Equal(t, a, *updated.WinnerID)
	assert.Equal(t, b, *updated.LoserID)

	updatedFinal, err := env.games.GetByID(context.Background(), final.ID)
	require.NoError(t, err)
	assert.Equal(t, a, *updatedFinal.Team1ID)
}

func TestAcceptRejectedSubmissionSucceeds(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 1)
	team := env.addTeam(1, 1)
	sub := env.addSeedingSubmission(t, 1, 1, 1, 70)

	require.NoError(t, env.acceptance.RejectScore(context.Background(), sub.ID, nil, ""))

	// A judge can change their mind: rejected submissions may still be accepted.
	_, err := env.acceptance.AcceptScore(context.Background(), sub.ID, false, nil, "")
	require.NoError(t, err)

	stored, err := env.scores.GetByTeamAndRound(context.Background(), team.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 70.0, *stored.Score)
}

func TestRejectAcceptedSubmissionFails(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 1)
	env.addTeam(1, 1)
	sub := env.addSeedingSubmission(t, 1, 1, 1, 70)

	_, err := env.acceptance.AcceptScore(context.Background(), sub.ID, false, nil, "")
	require.NoError(t, err)

	err = env.acceptance.RejectScore(context.Background(), sub.ID, nil, "")
	assert.ErrorIs(t, err, ErrSubmissionNotPending)
}

func TestAcceptGameNotYetRunnable(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 0)
	a := env.addTeam(1, 1).ID
	b := env.addTeam(1, 2).ID

	// Both slots filled but still pending: the resolver has not flipped it yet.
	game := env.addGame(t, &models.BracketGame{
		EventID: 1, Bracket: models.BracketWinners, Round: 1, Position: 1,
		Team1ID: &a, Team2ID: &b, Status: models.GameStatusPending,
	})

	sub := env.addBracketSubmission(t, 1, game.ID, a)
	_, err := env.acceptance.AcceptScore(context.Background(), sub.ID, false, nil, "")
	assert.ErrorIs(t, err, ErrInvalidGameTransition)

	// Force records the result anyway.
	_, err = env.acceptance.AcceptScore(context.Background(), sub.ID, true, nil, "")
	require.NoError(t, err)
}

func TestAcceptRecordsAuditMetadata(t *testing.T) {
	env := newTestEnv()
	env.addEvent(1, 0)
	a := env.addTeam(1, 1).ID
	b := env.addTeam(1, 2).ID
	g1, _, _, _ := env.addFourTeamRound(t, a, b, env.addTeam(1, 3).ID, env.addTeam(1, 4).ID)

	reviewer := 5
	sub := env.addBracketSubmission(t, 1, g1.ID, a)
	_, err := env.acceptance.AcceptScore(context.Background(), sub.ID, false, &reviewer, "198.51.100.7")
	require.NoError(t, err)

	entries, err := env.audit.ListByEvent(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byAction := make(map[string]*models.AuditLogEntry)
	for _, entry := range entries {
		byAction[entry.Action] = entry
	}
	submissionEntry := byAction["score.accepted"]
	require.NotNil(t, submissionEntry)
	assert.Equal(t, &reviewer, submissionEntry.UserID)
	require.NotNil(t, submissionEntry.IP)
	assert.Equal(t, "198.51.100.7", *submissionEntry.IP)
	assert.NotNil(t, submissionEntry.OldValue)
	assert.NotNil(t, submissionEntry.NewValue)

	gameEntry := byAction["game.completed"]
	require.NotNil(t, gameEntry)
	require.NotNil(t, gameEntry.IP)
	assert.Equal(t, "198.51.100.7", *gameEntry.IP)
}
