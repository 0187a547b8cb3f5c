package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arenadesk/scorekeeper/models"
	"github.com/lib/pq"
)

var (
	ErrSeedingScoreNotFound    = errors.New("seeding score not found")
	ErrSeedingScoreTeamInvalid = errors.New("seeding score team conflict or invalid")
)

type SeedingScoreRepository interface {
	GetByTeamAndRound(ctx context.Context, teamID, roundNumber int) (*models.SeedingScore, error)
	// Upsert inserts or overwrites the single (team, round) row and fills the
	// model's ID with the row it landed on.
	Upsert(ctx context.Context, exec SQLExecutor, score *models.SeedingScore) error
	ListByEvent(ctx context.Context, eventID int) ([]*models.SeedingScore, error)
	Delete(ctx context.Context, id int) error
}

type postgresSeedingScoreRepository struct {
	db *sql.DB
}

func NewPostgresSeedingScoreRepository(db *sql.DB) SeedingScoreRepository {
	return &postgresSeedingScoreRepository{db: db}
}

func (r *postgresSeedingScoreRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresSeedingScoreRepository) GetByTeamAndRound(ctx context.Context, teamID, roundNumber int) (*models.SeedingScore, error) {
	query := `
		SELECT id, event_id, team_id, round_number, score, submission_id, updated_at
		FROM seeding_scores
		WHERE team_id = $1 AND round_number = $2`

	score := &models.SeedingScore{}
	err := r.db.QueryRowContext(ctx, query, teamID, roundNumber).Scan(
		&score.ID,
		&score.EventID,
		&score.TeamID,
		&score.RoundNumber,
		&score.Score,
		&score.SubmissionID,
		&score.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeedingScoreNotFound
		}
		return nil, fmt.Errorf("failed to scan seeding score for team %d round %d: %w", teamID, roundNumber, err)
	}
	return score, nil
}

func (r *postgresSeedingScoreRepository) Upsert(ctx context.Context, exec SQLExecutor, score *models.SeedingScore) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO seeding_scores (event_id, team_id, round_number, score, submission_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (team_id, round_number)
		DO UPDATE SET score = EXCLUDED.score, submission_id = EXCLUDED.submission_id, updated_at = NOW()
		RETURNING id, updated_at`

	err := executor.QueryRowContext(ctx, query,
		score.EventID,
		score.TeamID,
		score.RoundNumber,
		score.Score,
		score.SubmissionID,
	).Scan(&score.ID, &score.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Constraint == "seeding_scores_team_id_fkey" {
			return ErrSeedingScoreTeamInvalid
		}
		return fmt.Errorf("failed to upsert seeding score for team %d round %d: %w", score.TeamID, score.RoundNumber, err)
	}
	return nil
}

func (r *postgresSeedingScoreRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.SeedingScore, error) {
	query := `
		SELECT id, event_id, team_id, round_number, score, submission_id, updated_at
		FROM seeding_scores
		WHERE event_id = $1
		ORDER BY team_id ASC, round_number ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query seeding scores for event %d: %w", eventID, err)
	}
	defer rows.Close()

	scores := make([]*models.SeedingScore, 0)
	for rows.Next() {
		var score models.SeedingScore
		if scanErr := rows.Scan(
			&score.ID,
			&score.EventID,
			&score.TeamID,
			&score.RoundNumber,
			&score.Score,
			&score.SubmissionID,
			&score.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan seeding score row: %w", scanErr)
		}
		scores = append(scores, &score)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during seeding score rows iteration: %w", err)
	}
	return scores, nil
}

func (r *postgresSeedingScoreRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM seeding_scores WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete seeding score %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrSeedingScoreNotFound)
}
