package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arenadesk/scorekeeper/models"
)

var ErrQueueItemNotFound = errors.New("game queue item not found")

type QueueRepository interface {
	Create(ctx context.Context, exec SQLExecutor, item *models.GameQueueItem) error
	GetByID(ctx context.Context, id int) (*models.GameQueueItem, error)
	ListByEvent(ctx context.Context, exec SQLExecutor, eventID int) ([]*models.GameQueueItem, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.QueueStatus) error
	// RevertToQueued puts an item back in line and clears operator call state.
	RevertToQueued(ctx context.Context, exec SQLExecutor, id int) error
	UpdatePosition(ctx context.Context, exec SQLExecutor, id, position int) error
	MarkCalled(ctx context.Context, exec SQLExecutor, id int, tableNumber *int, calledAt time.Time) error
	DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) error
}

type postgresQueueRepository struct {
	db *sql.DB
}

func NewPostgresQueueRepository(db *sql.DB) QueueRepository {
	return &postgresQueueRepository{db: db}
}

func (r *postgresQueueRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const queueColumns = `
	id, event_id, seeding_team_id, seeding_round, bracket_game_id,
	queue_position, status, table_number, called_at, created_at`

func (r *postgresQueueRepository) Create(ctx context.Context, exec SQLExecutor, item *models.GameQueueItem) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO game_queue
			(event_id, seeding_team_id, seeding_round, bracket_game_id, queue_position, status, table_number, called_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		item.EventID,
		item.SeedingTeamID,
		item.SeedingRound,
		item.BracketGameID,
		item.QueuePosition,
		item.Status,
		item.TableNumber,
		item.CalledAt,
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create game queue item: %w", err)
	}
	return nil
}

func (r *postgresQueueRepository) GetByID(ctx context.Context, id int) (*models.GameQueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM game_queue WHERE id = $1`

	item, err := r.scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQueueItemNotFound
		}
		return nil, fmt.Errorf("failed to scan game queue item by id %d: %w", id, err)
	}
	return item, nil
}

func (r *postgresQueueRepository) ListByEvent(ctx context.Context, exec SQLExecutor, eventID int) ([]*models.GameQueueItem, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + queueColumns + `
		FROM game_queue
		WHERE event_id = $1
		ORDER BY queue_position ASC, id ASC`

	rows, err := executor.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query game queue for event %d: %w", eventID, err)
	}
	defer rows.Close()

	items := make([]*models.GameQueueItem, 0)
	for rows.Next() {
		item, scanErr := r.scanItem(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan game queue row: %w", scanErr)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during game queue rows iteration: %w", err)
	}
	return items, nil
}

func (r *postgresQueueRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.QueueStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE game_queue SET status = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update status of queue item %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrQueueItemNotFound)
}

func (r *postgresQueueRepository) RevertToQueued(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE game_queue SET status = $1, table_number = NULL, called_at = NULL WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, models.QueueStatusQueued, id)
	if err != nil {
		return fmt.Errorf("failed to revert queue item %d to queued: %w", id, err)
	}
	return checkAffectedRows(result, ErrQueueItemNotFound)
}

func (r *postgresQueueRepository) UpdatePosition(ctx context.Context, exec SQLExecutor, id, position int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE game_queue SET queue_position = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, position, id)
	if err != nil {
		return fmt.Errorf("failed to update position of queue item %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrQueueItemNotFound)
}

func (r *postgresQueueRepository) MarkCalled(ctx context.Context, exec SQLExecutor, id int, tableNumber *int, calledAt time.Time) error {
	executor := r.getExecutor(exec)
	query := `UPDATE game_queue SET status = $1, table_number = $2, called_at = $3 WHERE id = $4`
	result, err := executor.ExecContext(ctx, query, models.QueueStatusCalled, tableNumber, calledAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark queue item %d called: %w", id, err)
	}
	return checkAffectedRows(result, ErrQueueItemNotFound)
}

func (r *postgresQueueRepository) DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM game_queue WHERE event_id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("failed to delete game queue for event %d: %w", eventID, err)
	}
	return nil
}

func (r *postgresQueueRepository) scanItem(scanner interface{ Scan(...interface{}) error }) (*models.GameQueueItem, error) {
	item := &models.GameQueueItem{}
	err := scanner.Scan(
		&item.ID,
		&item.EventID,
		&item.SeedingTeamID,
		&item.SeedingRound,
		&item.BracketGameID,
		&item.QueuePosition,
		&item.Status,
		&item.TableNumber,
		&item.CalledAt,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}
