package services

import (
	"context"
	"log/slog"

	"github.com/arenadesk/scorekeeper/models"
	"github.com/arenadesk/scorekeeper/repositories"
)

// AuditService writes the append-only trail. Writes are best effort: a failed
// audit insert is logged and swallowed so it can never roll back an otherwise
// successful acceptance.
type AuditService interface {
	Record(ctx context.Context, entry *models.AuditLogEntry)
	ListByEvent(ctx context.Context, eventID, limit int) ([]*models.AuditLogEntry, error)
}

type auditService struct {
	auditRepo repositories.AuditRepository
	logger    *slog.Logger
}

func NewAuditService(auditRepo repositories.AuditRepository, logger *slog.Logger) AuditService {
	return &auditService{auditRepo: auditRepo, logger: logger}
}

func (s *auditService) Record(ctx context.Context, entry *models.AuditLogEntry) {
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "failed to write audit log entry",
			slog.String("action", entry.Action),
			slog.String("entity_type", entry.EntityType),
			slog.Int("entity_id", entry.EntityID),
			slog.Any("error", err),
		)
	}
}

func (s *auditService) ListByEvent(ctx context.Context, eventID, limit int) ([]*models.AuditLogEntry, error) {
	return s.auditRepo.ListByEvent(ctx, eventID, limit)
}
