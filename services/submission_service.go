package services

import (
	"context"
	"log/slog"

	"github.com/arenadesk/scorekeeper/models"
	"github.com/arenadesk/scorekeeper/repositories"
)

// SubmitInput is the raw judging payload. Exactly the shape a scoring table
// posts; review happens later through the acceptance engine.
type SubmitInput struct {
	EventID       int              `json:"event_id"`
	ScoreType     models.ScoreType `json:"score_type"`
	TeamID        *int             `json:"team_id,omitempty"`
	TeamNumber    *int             `json:"team_number,omitempty"`
	RoundNumber   *int             `json:"round_number,omitempty"`
	Score         *float64         `json:"score,omitempty"`
	BracketGameID *int             `json:"bracket_game_id,omitempty"`
	WinnerTeamID  *int             `json:"winner_team_id,omitempty"`
	WinnerScore   *float64         `json:"winner_score,omitempty"`
	LoserScore    *float64         `json:"loser_score,omitempty"`
}

// SubmissionService is the intake side: it records pending submissions without
// touching the ledger or the bracket.
type SubmissionService interface {
	Submit(ctx context.Context, input SubmitInput) (*models.ScoreSubmission, error)
	GetByID(ctx context.Context, id int) (*models.ScoreSubmission, error)
	ListPendingByEvent(ctx context.Context, eventID int) ([]*models.ScoreSubmission, error)
}

type submissionService struct {
	submissionRepo repositories.SubmissionRepository
	eventRepo      repositories.EventRepository
	logger         *slog.Logger
}

func NewSubmissionService(
	submissionRepo repositories.SubmissionRepository,
	eventRepo repositories.EventRepository,
	logger *slog.Logger,
) SubmissionService {
	return &submissionService{
		submissionRepo: submissionRepo,
		eventRepo:      eventRepo,
		logger:         logger,
	}
}

func (s *submissionService) Submit(ctx context.Context, input SubmitInput) (*models.ScoreSubmission, error) {
	if _, err := s.eventRepo.GetByID(ctx, input.EventID); err != nil {
		return nil, mapRepositoryError(err)
	}

	switch input.ScoreType {
	case models.ScoreTypeSeeding:
		if input.RoundNumber == nil || input.Score == nil || (input.TeamID == nil && input.TeamNumber == nil) {
			return nil, ErrSeedingFieldsMissing
		}
	case models.ScoreTypeBracket:
		if input.BracketGameID == nil || input.WinnerTeamID == nil {
			return nil, ErrBracketFieldsMissing
		}
	default:
		return nil, ErrUnknownScoreType
	}

	sub := &models.ScoreSubmission{
		EventID:       intPtr(input.EventID),
		ScoreType:     input.ScoreType,
		TeamID:        input.TeamID,
		TeamNumber:    input.TeamNumber,
		RoundNumber:   input.RoundNumber,
		Score:         input.Score,
		BracketGameID: input.BracketGameID,
		WinnerTeamID:  input.WinnerTeamID,
		WinnerScore:   input.WinnerScore,
		LoserScore:    input.LoserScore,
		Status:        models.SubmissionStatusPending,
	}
	if err := s.submissionRepo.Create(ctx, nil, sub); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "score submission received",
		slog.Int("event_id", input.EventID),
		slog.Int("submission_id", sub.ID),
		slog.String("score_type", string(input.ScoreType)),
	)
	return sub, nil
}

func (s *submissionService) GetByID(ctx context.Context, id int) (*models.ScoreSubmission, error) {
	sub, err := s.submissionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return sub, nil
}

func (s *submissionService) ListPendingByEvent(ctx context.Context, eventID int) ([]*models.ScoreSubmission, error) {
	return s.submissionRepo.ListPendingByEvent(ctx, eventID)
}
