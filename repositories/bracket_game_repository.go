package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arenadesk/scorekeeper/models"
	"github.com/lib/pq"
)

var (
	ErrBracketGameNotFound    = errors.New("bracket game not found")
	ErrBracketGameTeamInvalid = errors.New("bracket game team conflict or invalid")
)

type BracketGameRepository interface {
	Create(ctx context.Context, exec SQLExecutor, game *models.BracketGame) error
	GetByID(ctx context.Context, id int) (*models.BracketGame, error)
	ListByEvent(ctx context.Context, eventID int) ([]*models.BracketGame, error)
	// Complete records the outcome in one shot: winner, loser, per-side scores,
	// completion time, submission back-reference and status=completed.
	Complete(ctx context.Context, exec SQLExecutor, id int, winnerID, loserID int, team1Score, team2Score *float64, completedAt time.Time, submissionID *int) error
	// SetSlot writes a team into slot 1 or 2 of the downstream game.
	SetSlot(ctx context.Context, exec SQLExecutor, id, slot, teamID int) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.GameStatus) error
	// SetByeWinner records the auto-advanced occupant of a bye game.
	SetByeWinner(ctx context.Context, exec SQLExecutor, id, winnerID int) error
	// UpdateAdvancement fills the forward edges after all games of a generated
	// bracket have database ids (second pass of generation).
	UpdateAdvancement(ctx context.Context, exec SQLExecutor, id int, winnerAdvancesToID, winnerSlot, loserAdvancesToID, loserSlot *int) error
	DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) error
}

type postgresBracketGameRepository struct {
	db *sql.DB
}

func NewPostgresBracketGameRepository(db *sql.DB) BracketGameRepository {
	return &postgresBracketGameRepository{db: db}
}

func (r *postgresBracketGameRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const bracketGameColumns = `
	id, event_id, bracket, round, position, team1_id, team2_id, status,
	winner_id, loser_id, team1_score, team2_score,
	winner_advances_to_id, winner_slot, loser_advances_to_id, loser_slot,
	score_submission_id, completed_at, created_at`

func (r *postgresBracketGameRepository) Create(ctx context.Context, exec SQLExecutor, game *models.BracketGame) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO bracket_games
			(event_id, bracket, round, position, team1_id, team2_id, status,
			 winner_advances_to_id, winner_slot, loser_advances_to_id, loser_slot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		game.EventID,
		game.Bracket,
		game.Round,
		game.Position,
		game.Team1ID,
		game.Team2ID,
		game.Status,
		game.WinnerAdvancesToID,
		game.WinnerSlot,
		game.LoserAdvancesToID,
		game.LoserSlot,
	).Scan(&game.ID, &game.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Constraint {
			case "bracket_games_team1_id_fkey", "bracket_games_team2_id_fkey":
				return ErrBracketGameTeamInvalid
			}
		}
		return fmt.Errorf("failed to create bracket game: %w", err)
	}
	return nil
}

func (r *postgresBracketGameRepository) GetByID(ctx context.Context, id int) (*models.BracketGame, error) {
	query := `SELECT ` + bracketGameColumns + ` FROM bracket_games WHERE id = $1`

	game, err := r.scanGame(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketGameNotFound
		}
		return nil, fmt.Errorf("failed to scan bracket game by id %d: %w", id, err)
	}
	return game, nil
}

func (r *postgresBracketGameRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.BracketGame, error) {
	query := `SELECT ` + bracketGameColumns + `
		FROM bracket_games
		WHERE event_id = $1
		ORDER BY bracket ASC, round ASC, position ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bracket games for event %d: %w", eventID, err)
	}
	defer rows.Close()

	games := make([]*models.BracketGame, 0)
	for rows.Next() {
		game, scanErr := r.scanGame(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan bracket game row: %w", scanErr)
		}
		games = append(games, game)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during bracket game rows iteration: %w", err)
	}
	return games, nil
}

func (r *postgresBracketGameRepository) Complete(ctx context.Context, exec SQLExecutor, id int, winnerID, loserID int, team1Score, team2Score *float64, completedAt time.Time, submissionID *int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE bracket_games
		SET winner_id = $1, loser_id = $2, team1_score = $3, team2_score = $4,
		    status = $5, completed_at = $6, score_submission_id = COALESCE($7, score_submission_id)
		WHERE id = $8`

	result, err := executor.ExecContext(ctx, query,
		winnerID, loserID, team1Score, team2Score,
		models.GameStatusCompleted, completedAt, submissionID, id)
	if err != nil {
		return fmt.Errorf("failed to complete bracket game %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrBracketGameNotFound)
}

func (r *postgresBracketGameRepository) SetSlot(ctx context.Context, exec SQLExecutor, id, slot, teamID int) error {
	executor := r.getExecutor(exec)
	var query string
	switch slot {
	case 1:
		query = `UPDATE bracket_games SET team1_id = $1 WHERE id = $2`
	case 2:
		query = `UPDATE bracket_games SET team2_id = $1 WHERE id = $2`
	default:
		return fmt.Errorf("invalid bracket game slot %d for game %d", slot, id)
	}

	result, err := executor.ExecContext(ctx, query, teamID, id)
	if err != nil {
		return fmt.Errorf("failed to set slot %d of bracket game %d: %w", slot, id, err)
	}
	return checkAffectedRows(result, ErrBracketGameNotFound)
}

func (r *postgresBracketGameRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.GameStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE bracket_games SET status = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update status of bracket game %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrBracketGameNotFound)
}

func (r *postgresBracketGameRepository) SetByeWinner(ctx context.Context, exec SQLExecutor, id, winnerID int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE bracket_games SET winner_id = $1 WHERE id = $2 AND status = $3`
	result, err := executor.ExecContext(ctx, query, winnerID, id, models.GameStatusBye)
	if err != nil {
		return fmt.Errorf("failed to set bye winner for bracket game %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrBracketGameNotFound)
}

func (r *postgresBracketGameRepository) UpdateAdvancement(ctx context.Context, exec SQLExecutor, id int, winnerAdvancesToID, winnerSlot, loserAdvancesToID, loserSlot *int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE bracket_games
		SET winner_advances_to_id = $1, winner_slot = $2, loser_advances_to_id = $3, loser_slot = $4
		WHERE id = $5`
	result, err := executor.ExecContext(ctx, query,
		winnerAdvancesToID, winnerSlot, loserAdvancesToID, loserSlot, id)
	if err != nil {
		return fmt.Errorf("failed to update advancement of bracket game %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrBracketGameNotFound)
}

func (r *postgresBracketGameRepository) DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM bracket_games WHERE event_id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("failed to delete bracket games for event %d: %w", eventID, err)
	}
	return nil
}

func (r *postgresBracketGameRepository) scanGame(scanner interface{ Scan(...interface{}) error }) (*models.BracketGame, error) {
	game := &models.BracketGame{}
	err := scanner.Scan(
		&game.ID,
		&game.EventID,
		&game.Bracket,
		&game.Round,
		&game.Position,
		&game.Team1ID,
		&game.Team2ID,
		&game.Status,
		&game.WinnerID,
		&game.LoserID,
		&game.Team1Score,
		&game.Team2Score,
		&game.WinnerAdvancesToID,
		&game.WinnerSlot,
		&game.LoserAdvancesToID,
		&game.LoserSlot,
		&game.ScoreSubmissionID,
		&game.CompletedAt,
		&game.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return game, nil
}
