package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/arenadesk/scorekeeper/models"
)

type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditLogEntry) error
	ListByEvent(ctx context.Context, eventID, limit int) ([]*models.AuditLogEntry, error)
}

type postgresAuditRepository struct {
	db *sql.DB
}

func NewPostgresAuditRepository(db *sql.DB) AuditRepository {
	return &postgresAuditRepository{db: db}
}

func (r *postgresAuditRepository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	query := `
		INSERT INTO audit_log (event_id, user_id, action, entity_type, entity_id, old_value, new_value, ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		entry.EventID,
		entry.UserID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.OldValue,
		entry.NewValue,
		entry.IP,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit log entry: %w", err)
	}
	return nil
}

func (r *postgresAuditRepository) ListByEvent(ctx context.Context, eventID, limit int) ([]*models.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, event_id, user_id, action, entity_type, entity_id, old_value, new_value, ip, created_at
		FROM audit_log
		WHERE event_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log for event %d: %w", eventID, err)
	}
	defer rows.Close()

	entries := make([]*models.AuditLogEntry, 0)
	for rows.Next() {
		var entry models.AuditLogEntry
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.EventID,
			&entry.UserID,
			&entry.Action,
			&entry.EntityType,
			&entry.EntityID,
			&entry.OldValue,
			&entry.NewValue,
			&entry.IP,
			&entry.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan audit log row: %w", scanErr)
		}
		entries = append(entries, &entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during audit log rows iteration: %w", err)
	}
	return entries, nil
}
