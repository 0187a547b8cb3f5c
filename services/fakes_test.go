package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/arenadesk/scorekeeper/brackets"
	"github.com/arenadesk/scorekeeper/models"
	"github.com/arenadesk/scorekeeper/repositories"
)

// In-memory repository fakes. They mimic the store semantics the services rely
// on (guarded updates, upsert keys, copies on read) without a database.

type fakeTxRunner struct {
	calls int
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	f.calls++
	return fn(nil)
}

type fakeEventRepo struct {
	events map[int]*models.Event
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[int]*models.Event)}
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id int) (*models.Event, error) {
	event, ok := f.events[id]
	if !ok {
		return nil, repositories.ErrEventNotFound
	}
	clone := *event
	return &clone, nil
}

type fakeTeamRepo struct {
	teams  map[int]*models.Team
	nextID int
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{teams: make(map[int]*models.Team)}
}

func (f *fakeTeamRepo) Create(ctx context.Context, exec repositories.SQLExecutor, team *models.Team) error {
	f.nextID++
	team.ID = f.nextID
	team.CreatedAt = time.Now()
	clone := *team
	f.teams[team.ID] = &clone
	return nil
}

func (f *fakeTeamRepo) GetByID(ctx context.Context, id int) (*models.Team, error) {
	team, ok := f.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	clone := *team
	return &clone, nil
}

func (f *fakeTeamRepo) GetByEventAndNumber(ctx context.Context, eventID, teamNumber int) (*models.Team, error) {
	for _, team := range f.teams {
		if team.EventID == eventID && team.TeamNumber == teamNumber {
			clone := *team
			return &clone, nil
		}
	}
	return nil, repositories.ErrTeamNotFound
}

func (f *fakeTeamRepo) ListByEvent(ctx context.Context, eventID int) ([]*models.Team, error) {
	teams := make([]*models.Team, 0)
	for _, team := range f.teams {
		if team.EventID == eventID {
			clone := *team
			teams = append(teams, &clone)
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].TeamNumber < teams[j].TeamNumber })
	return teams, nil
}

func (f *fakeTeamRepo) UpdateStatus(ctx context.Context, id int, status models.TeamStatus) error {
	team, ok := f.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	team.Status = status
	return nil
}

type fakeSubmissionRepo struct {
	subs   map[int]*models.ScoreSubmission
	nextID int
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{subs: make(map[int]*models.ScoreSubmission)}
}

func (f *fakeSubmissionRepo) Create(ctx context.Context, exec repositories.SQLExecutor, sub *models.ScoreSubmission) error {
	f.nextID++
	sub.ID = f.nextID
	sub.CreatedAt = time.Now()
	clone := *sub
	f.subs[sub.ID] = &clone
	return nil
}

func (f *fakeSubmissionRepo) GetByID(ctx context.Context, id int) (*models.ScoreSubmission, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, repositories.ErrSubmissionNotFound
	}
	clone := *sub
	return &clone, nil
}

func (f *fakeSubmissionRepo) ListPendingByEvent(ctx context.Context, eventID int) ([]*models.ScoreSubmission, error) {
	subs := make([]*models.ScoreSubmission, 0)
	for _, sub := range f.subs {
		if sub.EventID != nil && *sub.EventID == eventID && sub.Status == models.SubmissionStatusPending {
			clone := *sub
			subs = append(subs, &clone)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (f *fakeSubmissionRepo) ListSeedingByEvent(ctx context.Context, eventID int) ([]*models.ScoreSubmission, error) {
	subs := make([]*models.ScoreSubmission, 0)
	for _, sub := range f.subs {
		if sub.EventID != nil && *sub.EventID == eventID &&
			sub.ScoreType == models.ScoreTypeSeeding &&
			(sub.Status == models.SubmissionStatusPending || sub.Status == models.SubmissionStatusAccepted) {
			clone := *sub
			subs = append(subs, &clone)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (f *fakeSubmissionRepo) MarkAccepted(ctx context.Context, exec repositories.SQLExecutor, id int, reviewerID *int, reviewedAt time.Time, seedingScoreID *int, force bool) error {
	sub, ok := f.subs[id]
	if !ok {
		return repositories.ErrSubmissionNotFound
	}
	if !force && sub.Status == models.SubmissionStatusAccepted {
		return repositories.ErrSubmissionAlreadyReviewed
	}
	sub.Status = models.SubmissionStatusAccepted
	sub.ReviewedBy = reviewerID
	sub.ReviewedAt = &reviewedAt
	if seedingScoreID != nil {
		sub.SeedingScoreID = seedingScoreID
	}
	return nil
}

func (f *fakeSubmissionRepo) MarkRejected(ctx context.Context, exec repositories.SQLExecutor, id int, reviewerID *int, reviewedAt time.Time) error {
	sub, ok := f.subs[id]
	if !ok {
		return repositories.ErrSubmissionNotFound
	}
	if sub.Status != models.SubmissionStatusPending {
		return repositories.ErrSubmissionAlreadyReviewed
	}
	sub.Status = models.SubmissionStatusRejected
	sub.ReviewedBy = reviewerID
	sub.ReviewedAt = &reviewedAt
	return nil
}

type fakeScoreRepo struct {
	scores map[int]*models.SeedingScore
	nextID int
}

func newFakeScoreRepo() *fakeScoreRepo {
	return &fakeScoreRepo{scores: make(map[int]*models.SeedingScore)}
}

func (f *fakeScoreRepo) GetByTeamAndRound(ctx context.Context, teamID, roundNumber int) (*models.SeedingScore, error) {
	for _, score := range f.scores {
		if score.TeamID == teamID && score.RoundNumber == roundNumber {
			clone := *score
			return &clone, nil
		}
	}
	return nil, repositories.ErrSeedingScoreNotFound
}

func (f *fakeScoreRepo) Upsert(ctx context.Context, exec repositories.SQLExecutor, score *models.SeedingScore) error {
	for _, existing := range f.scores {
		if existing.TeamID == score.TeamID && existing.RoundNumber == score.RoundNumber {
			existing.Score = score.Score
			existing.SubmissionID = score.SubmissionID
			existing.UpdatedAt = time.Now()
			score.ID = existing.ID
			score.UpdatedAt = existing.UpdatedAt
			return nil
		}
	}
	f.nextID++
	score.ID = f.nextID
	score.UpdatedAt = time.Now()
	clone := *score
	f.scores[score.ID] = &clone
	return nil
}

func (f *fakeScoreRepo) ListByEvent(ctx context.Context, eventID int) ([]*models.SeedingScore, error) {
	scores := make([]*models.SeedingScore, 0)
	for _, score := range f.scores {
		if score.EventID == eventID {
			clone := *score
			scores = append(scores, &clone)
		}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].TeamID != scores[j].TeamID {
			return scores[i].TeamID < scores[j].TeamID
		}
		return scores[i].RoundNumber < scores[j].RoundNumber
	})
	return scores, nil
}

func (f *fakeScoreRepo) Delete(ctx context.Context, id int) error {
	if _, ok := f.scores[id]; !ok {
		return repositories.ErrSeedingScoreNotFound
	}
	delete(f.scores, id)
	return nil
}

type fakeRankingRepo struct {
	byTeam map[int]*models.SeedingRanking
	teams  *fakeTeamRepo
	nextID int
}

func newFakeRankingRepo(teams *fakeTeamRepo) *fakeRankingRepo {
	return &fakeRankingRepo{byTeam: make(map[int]*models.SeedingRanking), teams: teams}
}

func (f *fakeRankingRepo) UpsertAll(ctx context.Context, exec repositories.SQLExecutor, rankings []*models.SeedingRanking) error {
	for _, ranking := range rankings {
		existing, ok := f.byTeam[ranking.TeamID]
		if !ok {
			f.nextID++
			ranking.ID = f.nextID
		} else {
			ranking.ID = existing.ID
		}
		clone := *ranking
		f.byTeam[ranking.TeamID] = &clone
	}
	return nil
}

func (f *fakeRankingRepo) ListByEvent(ctx context.Context, eventID int) ([]*models.SeedingRanking, error) {
	rankings := make([]*models.SeedingRanking, 0)
	for _, ranking := range f.byTeam {
		if ranking.EventID == eventID {
			clone := *ranking
			if f.teams != nil {
				if team, ok := f.teams.teams[clone.TeamID]; ok {
					teamClone := *team
					clone.Team = &teamClone
				}
			}
			rankings = append(rankings, &clone)
		}
	}
	sort.Slice(rankings, func(i, j int) bool {
		a, b := rankings[i], rankings[j]
		if (a.SeedRank == nil) != (b.SeedRank == nil) {
			return a.SeedRank != nil
		}
		if a.SeedRank != nil && *a.SeedRank != *b.SeedRank {
			return *a.SeedRank < *b.SeedRank
		}
		return a.TeamID < b.TeamID
	})
	return rankings, nil
}

type fakeGameRepo struct {
	games  map[int]*models.BracketGame
	nextID int
}

func newFakeGameRepo() *fakeGameRepo {
	return &fakeGameRepo{games: make(map[int]*models.BracketGame)}
}

func (f *fakeGameRepo) Create(ctx context.Context, exec repositories.SQLExecutor, game *models.BracketGame) error {
	f.nextID++
	game.ID = f.nextID
	game.CreatedAt = time.Now()
	clone := *game
	f.games[game.ID] = &clone
	return nil
}

func (f *fakeGameRepo) GetByID(ctx context.Context, id int) (*models.BracketGame, error) {
	game, ok := f.games[id]
	if !ok {
		return nil, repositories.ErrBracketGameNotFound
	}
	clone := *game
	return &clone, nil
}

func (f *fakeGameRepo) ListByEvent(ctx context.Context, eventID int) ([]*models.BracketGame, error) {
	games := make([]*models.BracketGame, 0)
	for _, game := range f.games {
		if game.EventID == eventID {
			clone := *game
			games = append(games, &clone)
		}
	}
	sort.Slice(games, func(i, j int) bool {
		a, b := games[i], games[j]
		if a.Bracket != b.Bracket {
			return a.Bracket < b.Bracket
		}
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		return a.Position < b.Position
	})
	return games, nil
}

func (f *fakeGameRepo) Complete(ctx context.Context, exec repositories.SQLExecutor, id int, winnerID, loserID int, team1Score, team2Score *float64, completedAt time.Time, submissionID *int) error {
	game, ok := f.games[id]
	if !ok {
		return repositories.ErrBracketGameNotFound
	}
	game.WinnerID = &winnerID
	game.LoserID = &loserID
	game.Team1Score = team1Score
	game.Team2Score = team2Score
	game.Status = models.GameStatusCompleted
	game.CompletedAt = &completedAt
	if submissionID != nil {
		game.ScoreSubmissionID = submissionID
	}
	return nil
}

func (f *fakeGameRepo) SetSlot(ctx context.Context, exec repositories.SQLExecutor, id, slot, teamID int) error {
	game, ok := f.games[id]
	if !ok {
		return repositories.ErrBracketGameNotFound
	}
	if slot == 1 {
		game.Team1ID = &teamID
	} else {
		game.Team2ID = &teamID
	}
	return nil
}

func (f *fakeGameRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.GameStatus) error {
	game, ok := f.games[id]
	if !ok {
		return repositories.ErrBracketGameNotFound
	}
	game.Status = status
	return nil
}

func (f *fakeGameRepo) SetByeWinner(ctx context.Context, exec repositories.SQLExecutor, id, winnerID int) error {
	game, ok := f.games[id]
	if !ok || game.Status != models.GameStatusBye {
		return repositories.ErrBracketGameNotFound
	}
	game.WinnerID = &winnerID
	return nil
}

func (f *fakeGameRepo) UpdateAdvancement(ctx context.Context, exec repositories.SQLExecutor, id int, winnerAdvancesToID, winnerSlot, loserAdvancesToID, loserSlot *int) error {
	game, ok := f.games[id]
	if !ok {
		return repositories.ErrBracketGameNotFound
	}
	game.WinnerAdvancesToID = winnerAdvancesToID
	game.WinnerSlot = winnerSlot
	game.LoserAdvancesToID = loserAdvancesToID
	game.LoserSlot = loserSlot
	return nil
}

func (f *fakeGameRepo) DeleteByEvent(ctx context.Context, exec repositories.SQLExecutor, eventID int) error {
	for id, game := range f.games {
		if game.EventID == eventID {
			delete(f.games, id)
		}
	}
	return nil
}

type fakeQueueRepo struct {
	items  map[int]*models.GameQueueItem
	nextID int
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{items: make(map[int]*models.GameQueueItem)}
}

func (f *fakeQueueRepo) Create(ctx context.Context, exec repositories.SQLExecutor, item *models.GameQueueItem) error {
	f.nextID++
	item.ID = f.nextID
	item.CreatedAt = time.Now()
	clone := *item
	f.items[item.ID] = &clone
	return nil
}

func (f *fakeQueueRepo) GetByID(ctx context.Context, id int) (*models.GameQueueItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, repositories.ErrQueueItemNotFound
	}
	clone := *item
	return &clone, nil
}

func (f *fakeQueueRepo) ListByEvent(ctx context.Context, exec repositories.SQLExecutor, eventID int) ([]*models.GameQueueItem, error) {
	items := make([]*models.GameQueueItem, 0)
	for _, item := range f.items {
		if item.EventID == eventID {
			clone := *item
			items = append(items, &clone)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].QueuePosition != items[j].QueuePosition {
			return items[i].QueuePosition < items[j].QueuePosition
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (f *fakeQueueRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.QueueStatus) error {
	item, ok := f.items[id]
	if !ok {
		return repositories.ErrQueueItemNotFound
	}
	item.Status = status
	return nil
}

func (f *fakeQueueRepo) RevertToQueued(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	item, ok := f.items[id]
	if !ok {
		return repositories.ErrQueueItemNotFound
	}
	item.Status = models.QueueStatusQueued
	item.TableNumber = nil
	item.CalledAt = nil
	return nil
}

func (f *fakeQueueRepo) UpdatePosition(ctx context.Context, exec repositories.SQLExecutor, id, position int) error {
	item, ok := f.items[id]
	if !ok {
		return repositories.ErrQueueItemNotFound
	}
	item.QueuePosition = position
	return nil
}

func (f *fakeQueueRepo) MarkCalled(ctx context.Context, exec repositories.SQLExecutor, id int, tableNumber *int, calledAt time.Time) error {
	item, ok := f.items[id]
	if !ok {
		return repositories.ErrQueueItemNotFound
	}
	item.Status = models.QueueStatusCalled
	item.TableNumber = tableNumber
	item.CalledAt = &calledAt
	return nil
}

func (f *fakeQueueRepo) DeleteByEvent(ctx context.Context, exec repositories.SQLExecutor, eventID int) error {
	for id, item := range f.items {
		if item.EventID == eventID {
			delete(f.items, id)
		}
	}
	return nil
}

type fakeAuditRepo struct {
	entries []*models.AuditLogEntry
}

func (f *fakeAuditRepo) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	entry.ID = len(f.entries) + 1
	entry.CreatedAt = time.Now()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditRepo) ListByEvent(ctx context.Context, eventID, limit int) ([]*models.AuditLogEntry, error) {
	entries := make([]*models.AuditLogEntry, 0)
	for i := len(f.entries) - 1; i >= 0 && len(entries) < limit; i-- {
		if f.entries[i].EventID == eventID {
			entries = append(entries, f.entries[i])
		}
	}
	return entries, nil
}

// testEnv wires every service against the fakes, mirroring cmd/main.go.
type testEnv struct {
	tx          *fakeTxRunner
	events      *fakeEventRepo
	teams       *fakeTeamRepo
	submissions *fakeSubmissionRepo
	scores      *fakeScoreRepo
	rankingRows *fakeRankingRepo
	games       *fakeGameRepo
	queue       *fakeQueueRepo
	audit       *fakeAuditRepo

	rankings   RankingService
	brackets   BracketService
	queueSvc   QueueService
	acceptance AcceptanceService
}

func newTestEnv() *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := brackets.NewHub(logger)

	env := &testEnv{
		tx:          &fakeTxRunner{},
		events:      newFakeEventRepo(),
		teams:       newFakeTeamRepo(),
		submissions: newFakeSubmissionRepo(),
		scores:      newFakeScoreRepo(),
		games:       newFakeGameRepo(),
		queue:       newFakeQueueRepo(),
		audit:       &fakeAuditRepo{},
	}
	env.rankingRows = newFakeRankingRepo(env.teams)

	auditService := NewAuditService(env.audit, logger)
	env.rankings = NewRankingService(env.tx, env.teams, env.scores, env.rankingRows, logger)
	env.brackets = NewBracketService(env.tx, env.games, env.teams, env.rankingRows, brackets.NewDoubleEliminationGenerator(), hub, logger)
	env.queueSvc = NewQueueService(env.tx, env.queue, env.events, env.teams, env.scores, env.submissions, env.games, hub, logger)
	env.acceptance = NewAcceptanceService(env.tx, env.submissions, env.teams, env.scores, env.games,
		env.rankings, env.brackets, env.queueSvc, auditService, hub, logger)
	return env
}

func (e *testEnv) addEvent(id, seedingRounds int) *models.Event {
	event := &models.Event{ID: id, Name: "Test Event", SeedingRounds: seedingRounds, Status: models.EventStatusSeeding}
	e.events.events[id] = event
	return event
}

func (e *testEnv) addTeam(eventID, number int) *models.Team {
	team := &models.Team{EventID: eventID, TeamNumber: number, Name: "Team", Status: models.TeamStatusCheckedIn}
	_ = e.teams.Create(context.Background(), nil, team)
	return team
}

func float64Ptr(v float64) *float64 { return &v }
