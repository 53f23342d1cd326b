package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/safevoice-app/safevoice-api/internal/models"
	appErrors "github.com/safevoice-app/safevoice-api/pkg/errors"
)

type auditRepository interface {
	Append(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// AuditService records administrative actions. Appends are best-effort:
// a failed write must never fail the triggering action.
type AuditService struct {
	repo   auditRepository
	logger *zap.Logger
}

// NewAuditService constructs an AuditService.
func NewAuditService(repo auditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// Record appends one entry for the actor's action. Errors are logged and
// swallowed.
func (s *AuditService) Record(ctx context.Context, actor models.Actor, action, details string, reportID *string) {
	if s == nil || s.repo == nil {
		return
	}
	entry := &models.AuditLog{
		AdminEmail: actor.Email,
		Action:     action,
		Details:    details,
		ReportID:   reportID,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to append audit log",
			zap.String("action", action),
			zap.String("admin", actor.Email),
			zap.Error(err))
	}
}

// List returns audit entries for super-admin review.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	return entries, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}
