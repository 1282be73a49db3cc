package services

import (
	"context"
	"log/slog"

	"github.com/connectcrm/auth-service/internal/models"
	"github.com/connectcrm/auth-service/internal/repositories"
	"github.com/connectcrm/auth-service/pkg/logger"
)

// SecurityLogStore is the persistence surface the audit service needs.
type SecurityLogStore interface {
	Record(ctx context.Context, entry *models.SecurityLog) error
	List(ctx context.Context, filter repositories.SecurityLogFilter) ([]*models.SecurityLog, error)
}

// AuditService writes the immutable security audit trail. Every entry goes
// to the security_logs table and is mirrored to structured logs. Recording
// is best-effort: a failed audit write is logged but never fails the
// operation being audited.
type AuditService struct {
	store       SecurityLogStore
	auditLogger *logger.AuditLogger
	logger      *slog.Logger
}

func NewAuditService(store SecurityLogStore, auditLogger *logger.AuditLogger, log *slog.Logger) *AuditService {
	return &AuditService{
		store:       store,
		auditLogger: auditLogger,
		logger:      log,
	}
}

// RecordEvent appends one audit entry. accountID may be empty when the
// event concerns an unknown principal (e.g. login against an unknown email
// is not recorded here at all; see LoginAttemptRepository).
func (s *AuditService) RecordEvent(ctx context.Context, eventType, accountID, description, ipAddress, userAgent string) {
	entry := &models.SecurityLog{
		EventType:   eventType,
		Description: description,
	}
	if accountID != "" {
		entry.AccountID = &accountID
	}
	if ipAddress != "" {
		entry.IPAddress = &ipAddress
	}
	if userAgent != "" {
		entry.UserAgent = &userAgent
	}

	if err := s.store.Record(ctx, entry); err != nil {
		s.logger.Error("failed to record security log entry",
			slog.String("event_type", eventType),
			slog.Any("error", err))
	}

	s.auditLogger.LogAccountAction(eventType, accountID, ipAddress, map[string]string{
		"description": description,
	})
}

// List returns audit entries for the admin security log view.
func (s *AuditService) List(ctx context.Context, filter repositories.SecurityLogFilter) ([]*models.SecurityLog, error) {
	return s.store.List(ctx, filter)
}
