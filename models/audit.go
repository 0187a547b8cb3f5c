package models

import "time"

// AuditLogEntry is append-only. UserID is null for system auto-acceptance and
// set for admin-reviewed actions.
type AuditLogEntry struct {
	ID         int       `json:"id"`
	EventID    int       `json:"event_id"`
	UserID     *int      `json:"user_id,omitempty"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   int       `json:"entity_id"`
	OldValue   *string   `json:"old_value,omitempty"`
	NewValue   *string   `json:"new_value,omitempty"`
	IP         *string   `json:"ip,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
