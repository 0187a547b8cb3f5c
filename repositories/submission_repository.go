package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arenadesk/scorekeeper/models"
)

var (
	ErrSubmissionNotFound = errors.New("score submission not found")

	// ErrSubmissionAlreadyReviewed is returned by the guarded accept/reject
	// updates when the WHERE predicate excluded an already-transitioned row.
	ErrSubmissionAlreadyReviewed = errors.New("score submission already reviewed")
)

type SubmissionRepository interface {
	Create(ctx context.Context, exec SQLExecutor, sub *models.ScoreSubmission) error
	GetByID(ctx context.Context, id int) (*models.ScoreSubmission, error)
	ListPendingByEvent(ctx context.Context, eventID int) ([]*models.ScoreSubmission, error)
	// ListSeedingByEvent returns pending and accepted seeding submissions,
	// used by queue sync to treat not-yet-folded scores as existing.
	ListSeedingByEvent(ctx context.Context, eventID int) ([]*models.ScoreSubmission, error)
	// MarkAccepted flips status to accepted with review metadata. Unless force
	// is set the update is guarded so a second concurrent acceptance of the
	// same row observes ErrSubmissionAlreadyReviewed instead of double-applying.
	MarkAccepted(ctx context.Context, exec SQLExecutor, id int, reviewerID *int, reviewedAt time.Time, seedingScoreID *int, force bool) error
	MarkRejected(ctx context.Context, exec SQLExecutor, id int, reviewerID *int, reviewedAt time.Time) error
}

type postgresSubmissionRepository struct {
	db *sql.DB
}

func NewPostgresSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &postgresSubmissionRepository{db: db}
}

func (r *postgresSubmissionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const submissionColumns = `
	id, event_id, score_type, team_id, team_number, round_number, score,
	bracket_game_id, winner_team_id, winner_score, loser_score, payload,
	status, reviewed_by, reviewed_at, seeding_score_id, created_at`

func (r *postgresSubmissionRepository) Create(ctx context.Context, exec SQLExecutor, sub *models.ScoreSubmission) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO score_submissions
			(event_id, score_type, team_id, team_number, round_number, score,
			 bracket_game_id, winner_team_id, winner_score, loser_score, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		sub.EventID,
		sub.ScoreType,
		sub.TeamID,
		sub.TeamNumber,
		sub.RoundNumber,
		sub.Score,
		sub.BracketGameID,
		sub.WinnerTeamID,
		sub.WinnerScore,
		sub.LoserScore,
		sub.Payload,
		sub.Status,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create score submission: %w", err)
	}
	return nil
}

func (r *postgresSubmissionRepository) GetByID(ctx context.Context, id int) (*models.ScoreSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM score_submissions WHERE id = $1`

	sub, err := r.scanSubmission(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to scan score submission by id %d: %w", id, err)
	}
	return sub, nil
}

func (r *postgresSubmissionRepository) ListPendingByEvent(ctx context.Context, eventID int) ([]*models.ScoreSubmission, error) {
	query := `SELECT ` + submissionColumns + `
		FROM score_submissions
		WHERE event_id = $1 AND status = $2
		ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, eventID, models.SubmissionStatusPending)
}

func (r *postgresSubmissionRepository) ListSeedingByEvent(ctx context.Context, eventID int) ([]*models.ScoreSubmission, error) {
	query := `SELECT ` + submissionColumns + `
		FROM score_submissions
		WHERE event_id = $1 AND score_type = $2 AND status IN ($3, $4)
		ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, eventID, models.ScoreTypeSeeding,
		models.SubmissionStatusPending, models.SubmissionStatusAccepted)
}

func (r *postgresSubmissionRepository) MarkAccepted(ctx context.Context, exec SQLExecutor, id int, reviewerID *int, reviewedAt time.Time, seedingScoreID *int, force bool) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE score_submissions
		SET status = $1, reviewed_by = $2, reviewed_at = $3, seeding_score_id = COALESCE($4, seeding_score_id)
		WHERE id = $5`
	args := []interface{}{models.SubmissionStatusAccepted, reviewerID, reviewedAt, seedingScoreID, id}
	if !force {
		query += ` AND status <> $6`
		args = append(args, models.SubmissionStatusAccepted)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark submission %d accepted: %w", id, err)
	}
	if !force {
		return checkAffectedRows(result, ErrSubmissionAlreadyReviewed)
	}
	return checkAffectedRows(result, ErrSubmissionNotFound)
}

func (r *postgresSubmissionRepository) MarkRejected(ctx context.Context, exec SQLExecutor, id int, reviewerID *int, reviewedAt time.Time) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE score_submissions
		SET status = $1, reviewed_by = $2, reviewed_at = $3
		WHERE id = $4 AND status = $5`

	result, err := executor.ExecContext(ctx, query,
		models.SubmissionStatusRejected, reviewerID, reviewedAt, id, models.SubmissionStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark submission %d rejected: %w", id, err)
	}
	return checkAffectedRows(result, ErrSubmissionAlreadyReviewed)
}

func (r *postgresSubmissionRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.ScoreSubmission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query score submissions: %w", err)
	}
	defer rows.Close()

	subs := make([]*models.ScoreSubmission, 0)
	for rows.Next() {
		sub, scanErr := r.scanSubmission(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan score submission row: %w", scanErr)
		}
		subs = append(subs, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during score submission rows iteration: %w", err)
	}
	return subs, nil
}

func (r *postgresSubmissionRepository) scanSubmission(scanner interface{ Scan(...interface{}) error }) (*models.ScoreSubmission, error) {
	sub := &models.ScoreSubmission{}
	err := scanner.Scan(
		&sub.ID,
		&sub.EventID,
		&sub.ScoreType,
		&sub.TeamID,
		&sub.TeamNumber,
		&sub.RoundNumber,
		&sub.Score,
		&sub.BracketGameID,
		&sub.WinnerTeamID,
		&sub.WinnerScore,
		&sub.LoserScore,
		&sub.Payload,
		&sub.Status,
		&sub.ReviewedBy,
		&sub.ReviewedAt,
		&sub.SeedingScoreID,
		&sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
