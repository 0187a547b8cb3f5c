package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/arenadesk/scorekeeper/models"
)

type SeedingRankingRepository interface {
	// UpsertAll writes one row per team, insert-or-update keyed by team id.
	// Callers run it inside the recompute transaction.
	UpsertAll(ctx context.Context, exec SQLExecutor, rankings []*models.SeedingRanking) error
	ListByEvent(ctx context.Context, eventID int) ([]*models.SeedingRanking, error)
}

type postgresSeedingRankingRepository struct {
	db *sql.DB
}

func NewPostgresSeedingRankingRepository(db *sql.DB) SeedingRankingRepository {
	return &postgresSeedingRankingRepository{db: db}
}

func (r *postgresSeedingRankingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresSeedingRankingRepository) UpsertAll(ctx context.Context, exec SQLExecutor, rankings []*models.SeedingRanking) error {
	if len(rankings) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO seeding_rankings
			(event_id, team_id, seed_average, tiebreaker, seed_rank, raw_seed_score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (team_id)
		DO UPDATE SET
			seed_average = EXCLUDED.seed_average,
			tiebreaker = EXCLUDED.tiebreaker,
			seed_rank = EXCLUDED.seed_rank,
			raw_seed_score = EXCLUDED.raw_seed_score,
			updated_at = NOW()
		RETURNING id`

	for _, ranking := range rankings {
		err := executor.QueryRowContext(ctx, query,
			ranking.EventID,
			ranking.TeamID,
			ranking.SeedAverage,
			ranking.Tiebreaker,
			ranking.SeedRank,
			ranking.RawSeedScore,
		).Scan(&ranking.ID)
		if err != nil {
			return fmt.Errorf("failed to upsert seeding ranking for team %d: %w", ranking.TeamID, err)
		}
	}
	return nil
}

func (r *postgresSeedingRankingRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.SeedingRanking, error) {
	query := `
		SELECT r.id, r.event_id, r.team_id, r.seed_average, r.tiebreaker, r.seed_rank, r.raw_seed_score, r.updated_at,
		       t.id, t.event_id, t.team_number, t.name, t.status, t.created_at
		FROM seeding_rankings r
		JOIN teams t ON t.id = r.team_id
		WHERE r.event_id = $1
		ORDER BY r.seed_rank ASC NULLS LAST, t.team_number ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query seeding rankings for event %d: %w", eventID, err)
	}
	defer rows.Close()

	rankings := make([]*models.SeedingRanking, 0)
	for rows.Next() {
		var ranking models.SeedingRanking
		var team models.Team
		if scanErr := rows.Scan(
			&ranking.ID,
			&ranking.EventID,
			&ranking.TeamID,
			&ranking.SeedAverage,
			&ranking.Tiebreaker,
			&ranking.SeedRank,
			&ranking.RawSeedScore,
			&ranking.UpdatedAt,
			&team.ID,
			&team.EventID,
			&team.TeamNumber,
			&team.Name,
			&team.Status,
			&team.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan seeding ranking row: %w", scanErr)
		}
		ranking.Team = &team
		rankings = append(rankings, &ranking)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during seeding ranking rows iteration: %w", err)
	}
	return rankings, nil
}
