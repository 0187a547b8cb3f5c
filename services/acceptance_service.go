package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arenadesk/scorekeeper/brackets"
	"github.com/arenadesk/scorekeeper/models"
	"github.com/arenadesk/scorekeeper/repositories"
)

// AcceptResult describes everything one acceptance changed, for the HTTP
// response and the audit trail.
type AcceptResult struct {
	Submission    *models.ScoreSubmission `json:"submission"`
	SeedingScore  *models.SeedingScore    `json:"seeding_score,omitempty"`
	Game          *models.BracketGame     `json:"game,omitempty"`
	Ranking       *RankingResult          `json:"ranking,omitempty"`
	ByeResolution *ByeResolution          `json:"bye_resolution,omitempty"`
	QueueSync     *QueueSyncResult        `json:"queue_sync,omitempty"`
}

// AcceptanceService is the write path of the engine: it turns reviewed
// submissions into ledger and bracket state, then fans the consequences out to
// rankings, byes and the game queue.
type AcceptanceService interface {
	// AcceptScore applies a submission. The durable write (ledger or bracket row
	// plus the submission flip) is one transaction; downstream propagation runs
	// after commit and is repairable via Resync, so its failures are logged, not
	// returned. force overrides conflict checks and re-applies an already
	// accepted submission. ip is the caller's address for the audit trail;
	// empty for system paths.
	AcceptScore(ctx context.Context, submissionID int, force bool, reviewerID *int, ip string) (*AcceptResult, error)
	RejectScore(ctx context.Context, submissionID int, reviewerID *int, ip string) error
	// Resync rebuilds every derived surface of an event from its durable state.
	Resync(ctx context.Context, eventID int) error
}

type acceptanceService struct {
	tx             repositories.TxRunner
	submissionRepo repositories.SubmissionRepository
	teamRepo       repositories.TeamRepository
	scoreRepo      repositories.SeedingScoreRepository
	gameRepo       repositories.BracketGameRepository
	rankingService RankingService
	bracketService BracketService
	queueService   QueueService
	auditService   AuditService
	hub            *brackets.Hub
	logger         *slog.Logger
}

func NewAcceptanceService(
	tx repositories.TxRunner,
	submissionRepo repositories.SubmissionRepository,
	teamRepo repositories.TeamRepository,
	scoreRepo repositories.SeedingScoreRepository,
	gameRepo repositories.BracketGameRepository,
	rankingService RankingService,
	bracketService BracketService,
	queueService QueueService,
	auditService AuditService,
	hub *brackets.Hub,
	logger *slog.Logger,
) AcceptanceService {
	return &acceptanceService{
		tx:             tx,
		submissionRepo: submissionRepo,
		teamRepo:       teamRepo,
		scoreRepo:      scoreRepo,
		gameRepo:       gameRepo,
		rankingService: rankingService,
		bracketService: bracketService,
		queueService:   queueService,
		auditService:   auditService,
		hub:            hub,
		logger:         logger,
	}
}

func (s *acceptanceService) AcceptScore(ctx context.Context, submissionID int, force bool, reviewerID *int, ip string) (*AcceptResult, error) {
	sub, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	if sub.EventID == nil {
		return nil, ErrSubmissionNotEventScoped
	}
	if !force && !isValidSubmissionTransition(sub.Status, models.SubmissionStatusAccepted) {
		return nil, ErrSubmissionAlreadyAccepted
	}

	switch sub.ScoreType {
	case models.ScoreTypeSeeding:
		return s.acceptSeeding(ctx, sub, force, reviewerID, ip)
	case models.ScoreTypeBracket:
		return s.acceptBracket(ctx, sub, force, reviewerID, ip)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScoreType, sub.ScoreType)
	}
}

func (s *acceptanceService) acceptSeeding(ctx context.Context, sub *models.ScoreSubmission, force bool, reviewerID *int, ip string) (*AcceptResult, error) {
	if sub.RoundNumber == nil || sub.Score == nil || (sub.TeamID == nil && sub.TeamNumber == nil) {
		return nil, ErrSeedingFieldsMissing
	}
	eventID := *sub.EventID

	team, err := s.resolveTeam(ctx, sub)
	if err != nil {
		return nil, err
	}
	if team.EventID != eventID {
		return nil, ErrTeamNotInEvent
	}

	existing, err := s.scoreRepo.GetByTeamAndRound(ctx, team.ID, *sub.RoundNumber)
	if err != nil && !errors.Is(err, repositories.ErrSeedingScoreNotFound) {
		return nil, fmt.Errorf("failed to check for existing seeding score: %w", err)
	}
	// A non-null score from a different submission is a conflict unless forced.
	if !force && existing != nil && existing.Score != nil &&
		(existing.SubmissionID == nil || *existing.SubmissionID != sub.ID) {
		return nil, &SeedingScoreConflictError{
			TeamID:      team.ID,
			RoundNumber: *sub.RoundNumber,
			Existing:    existing.Score,
			Candidate:   sub.Score,
		}
	}

	ledgerRow := &models.SeedingScore{
		EventID:      eventID,
		TeamID:       team.ID,
		RoundNumber:  *sub.RoundNumber,
		Score:        sub.Score,
		SubmissionID: intPtr(sub.ID),
	}
	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.scoreRepo.Upsert(ctx, exec, ledgerRow); err != nil {
			return err
		}
		if err := s.submissionRepo.MarkAccepted(ctx, exec, sub.ID, reviewerID, now, intPtr(ledgerRow.ID), force); err != nil {
			if errors.Is(err, repositories.ErrSubmissionAlreadyReviewed) {
				return ErrSubmissionAlreadyAccepted
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sub.Status = models.SubmissionStatusAccepted
	sub.ReviewedBy = reviewerID
	sub.ReviewedAt = &now
	sub.SeedingScoreID = intPtr(ledgerRow.ID)

	result := &AcceptResult{Submission: sub, SeedingScore: ledgerRow}
	s.propagateSeeding(ctx, eventID, result)

	s.auditService.Record(ctx, &models.AuditLogEntry{
		EventID:    eventID,
		UserID:     reviewerID,
		Action:     "score.accepted",
		EntityType: "score_submission",
		EntityID:   sub.ID,
		OldValue:   auditValue(existing),
		NewValue:   auditValue(ledgerRow),
		IP:         auditIP(ip),
	})
	s.hub.BroadcastToRoom(eventRoom(eventID), brackets.WebSocketMessage{
		Type:    brackets.MessageScoreAccepted,
		Payload: result,
	})
	s.logger.InfoContext(ctx, "seeding score accepted",
		slog.Int("event_id", eventID),
		slog.Int("submission_id", sub.ID),
		slog.Int("team_id", team.ID),
		slog.Int("round", *sub.RoundNumber),
		slog.Bool("force", force),
	)
	return result, nil
}

// propagateSeeding runs the post-commit consequences of a seeding acceptance.
// Each failure is logged and left for Resync; none can undo the acceptance.
func (s *acceptanceService) propagateSeeding(ctx context.Context, eventID int, result *AcceptResult) {
	sync, err := s.queueService.SyncSeedingQueue(ctx, eventID)
	if err != nil {
		s.logger.WarnContext(ctx, "queue sync after acceptance failed", slog.Int("event_id", eventID), slog.Any("error", err))
	} else {
		result.QueueSync = sync
	}

	ranking, err := s.rankingService.Recalculate(ctx, eventID)
	if err != nil {
		s.logger.WarnContext(ctx, "ranking recompute after acceptance failed", slog.Int("event_id", eventID), slog.Any("error", err))
		return
	}
	result.Ranking = ranking

	rankings, err := s.rankingService.ListByEvent(ctx, eventID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load rankings for broadcast", slog.Int("event_id", eventID), slog.Any("error", err))
		return
	}
	s.hub.BroadcastToRoom(eventRoom(eventID), brackets.WebSocketMessage{
		Type:    brackets.MessageRankingsUpdated,
		Payload: rankings,
	})
}

func (s *acceptanceService) acceptBracket(ctx context.Context, sub *models.ScoreSubmission, force bool, reviewerID *int, ip string) (*AcceptResult, error) {
	if sub.BracketGameID == nil || sub.WinnerTeamID == nil {
		return nil, ErrBracketFieldsMissing
	}
	eventID := *sub.EventID
	winnerID := *sub.WinnerTeamID

	game, err := s.gameRepo.GetByID(ctx, *sub.BracketGameID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	if game.EventID != eventID {
		return nil, ErrGameNotFound
	}
	if !game.HasTeam(winnerID) {
		return nil, ErrWinnerNotInGame
	}
	opponent := game.Opponent(winnerID)
	if opponent == nil {
		return nil, ErrGameSlotsIncomplete
	}
	if !force && !isValidGameTransition(game.Status, models.GameStatusCompleted) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidGameTransition, game.Status, models.GameStatusCompleted)
	}
	// A duplicate report of the recorded result re-applies idempotently; only a
	// different winner is a conflict.
	if !force && game.WinnerID != nil && *game.WinnerID != winnerID {
		return nil, &BracketWinnerConflictError{
			GameID:            game.ID,
			ExistingWinnerID:  *game.WinnerID,
			CandidateWinnerID: winnerID,
		}
	}

	// Per-side scores are stored by slot, not by outcome.
	var team1Score, team2Score *float64
	if game.Team1ID != nil && *game.Team1ID == winnerID {
		team1Score, team2Score = sub.WinnerScore, sub.LoserScore
	} else {
		team1Score, team2Score = sub.LoserScore, sub.WinnerScore
	}

	previous := *game
	previousSub := *sub
	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.gameRepo.Complete(ctx, exec, game.ID, winnerID, *opponent, team1Score, team2Score, now, intPtr(sub.ID)); err != nil {
			return err
		}
		if game.WinnerAdvancesToID != nil && game.WinnerSlot != nil {
			if err := s.gameRepo.SetSlot(ctx, exec, *game.WinnerAdvancesToID, *game.WinnerSlot, winnerID); err != nil {
				return err
			}
		}
		// The grand-final reset edge is structural only; a loser never travels it.
		if game.LoserAdvancesToID != nil && game.LoserSlot != nil && !game.HasResetEdge() {
			if err := s.gameRepo.SetSlot(ctx, exec, *game.LoserAdvancesToID, *game.LoserSlot, *opponent); err != nil {
				return err
			}
		}
		if err := s.submissionRepo.MarkAccepted(ctx, exec, sub.ID, reviewerID, now, nil, force); err != nil {
			if errors.Is(err, repositories.ErrSubmissionAlreadyReviewed) {
				return ErrSubmissionAlreadyAccepted
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sub.Status = models.SubmissionStatusAccepted
	sub.ReviewedBy = reviewerID
	sub.ReviewedAt = &now
	game.WinnerID = &winnerID
	game.LoserID = opponent
	game.Team1Score = team1Score
	game.Team2Score = team2Score
	game.Status = models.GameStatusCompleted
	game.CompletedAt = &now
	game.ScoreSubmissionID = intPtr(sub.ID)

	result := &AcceptResult{Submission: sub, Game: game}
	s.propagateBracket(ctx, eventID, result)

	s.auditService.Record(ctx, &models.AuditLogEntry{
		EventID:    eventID,
		UserID:     reviewerID,
		Action:     "score.accepted",
		EntityType: "score_submission",
		EntityID:   sub.ID,
		OldValue:   auditValue(&previousSub),
		NewValue:   auditValue(sub),
		IP:         auditIP(ip),
	})
	s.auditService.Record(ctx, &models.AuditLogEntry{
		EventID:    eventID,
		UserID:     reviewerID,
		Action:     "game.completed",
		EntityType: "bracket_game",
		EntityID:   game.ID,
		OldValue:   auditValue(&previous),
		NewValue:   auditValue(game),
		IP:         auditIP(ip),
	})
	s.hub.BroadcastToRoom(eventRoom(eventID), brackets.WebSocketMessage{
		Type:    brackets.MessageScoreAccepted,
		Payload: result,
	})
	s.logger.InfoContext(ctx, "bracket score accepted",
		slog.Int("event_id", eventID),
		slog.Int("submission_id", sub.ID),
		slog.Int("game_id", game.ID),
		slog.Int("winner_team_id", winnerID),
		slog.Bool("force", force),
	)
	return result, nil
}

func (s *acceptanceService) propagateBracket(ctx context.Context, eventID int, result *AcceptResult) {
	resolution, err := s.bracketService.ResolveByes(ctx, eventID)
	if err != nil {
		s.logger.WarnContext(ctx, "bye resolution after acceptance failed", slog.Int("event_id", eventID), slog.Any("error", err))
	} else {
		result.ByeResolution = resolution
	}

	sync, err := s.queueService.SyncBracketQueue(ctx, eventID)
	if err != nil {
		s.logger.WarnContext(ctx, "queue sync after acceptance failed", slog.Int("event_id", eventID), slog.Any("error", err))
	} else {
		result.QueueSync = sync
	}

	games, err := s.gameRepo.ListByEvent(ctx, eventID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load bracket for broadcast", slog.Int("event_id", eventID), slog.Any("error", err))
		return
	}
	s.hub.BroadcastToRoom(eventRoom(eventID), brackets.WebSocketMessage{
		Type:    brackets.MessageBracketUpdated,
		Payload: games,
	})
}

func (s *acceptanceService) RejectScore(ctx context.Context, submissionID int, reviewerID *int, ip string) error {
	sub, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		return mapRepositoryError(err)
	}
	if sub.EventID == nil {
		return ErrSubmissionNotEventScoped
	}
	if !isValidSubmissionTransition(sub.Status, models.SubmissionStatusRejected) {
		return ErrSubmissionNotPending
	}

	now := time.Now().UTC()
	if err := s.submissionRepo.MarkRejected(ctx, nil, submissionID, reviewerID, now); err != nil {
		if errors.Is(err, repositories.ErrSubmissionAlreadyReviewed) {
			return ErrSubmissionNotPending
		}
		return mapRepositoryError(err)
	}

	s.auditService.Record(ctx, &models.AuditLogEntry{
		EventID:    *sub.EventID,
		UserID:     reviewerID,
		Action:     "score.rejected",
		EntityType: "score_submission",
		EntityID:   sub.ID,
		OldValue:   auditValue(sub),
		IP:         auditIP(ip),
	})
	s.logger.InfoContext(ctx, "score submission rejected",
		slog.Int("event_id", *sub.EventID),
		slog.Int("submission_id", sub.ID),
	)
	return nil
}

// Resync is the recovery hammer: every derived surface is rebuilt from the
// ledger and the bracket graph, so any propagation failure heals here.
func (s *acceptanceService) Resync(ctx context.Context, eventID int) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		_, err := s.rankingService.Recalculate(gctx, eventID)
		return err
	})
	g.Go(func() error {
		_, err := s.queueService.SyncSeedingQueue(gctx, eventID)
		return err
	})
	g.Go(func() error {
		// Byes first so the queue sync sees the post-cascade game statuses.
		if _, err := s.bracketService.ResolveByes(gctx, eventID); err != nil {
			return err
		}
		_, err := s.queueService.SyncBracketQueue(gctx, eventID)
		return err
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to resync event %d: %w", eventID, err)
	}
	s.logger.InfoContext(ctx, "event resynced", slog.Int("event_id", eventID))
	return nil
}

func (s *acceptanceService) resolveTeam(ctx context.Context, sub *models.ScoreSubmission) (*models.Team, error) {
	if sub.TeamID != nil {
		team, err := s.teamRepo.GetByID(ctx, *sub.TeamID)
		if err != nil {
			return nil, mapRepositoryError(err)
		}
		return team, nil
	}
	team, err := s.teamRepo.GetByEventAndNumber(ctx, *sub.EventID, *sub.TeamNumber)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return team, nil
}
