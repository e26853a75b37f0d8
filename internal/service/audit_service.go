package service

import (
	"context"

	"github.com/abbasifarasat36-dev/globaldragon/internal/clock"
	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"
	"github.com/abbasifarasat36-dev/globaldragon/internal/repository"
)

// AuditService handles audit logging. It satisfies reward.Auditor.
type AuditService struct {
	repo  *repository.AuditRepository
	clock clock.Clock
}

// NewAuditService creates a new audit service
func NewAuditService(repo *repository.AuditRepository, clk clock.Clock) *AuditService {
	if clk == nil {
		clk = clock.Real{}
	}
	return &AuditService{repo: repo, clock: clk}
}

// Log creates a new audit log entry. Failures are logged, never returned.
func (s *AuditService) Log(ctx context.Context, userID, action, category string, details map[string]interface{}) {
	s.create(ctx, &domain.AuditLog{
		UserID:   userID,
		Action:   action,
		Category: category,
		Details:  details,
	})
}

// LogWithRequest creates an audit log with request info (IP, User-Agent)
func (s *AuditService) LogWithRequest(ctx context.Context, userID, action, category, ip, userAgent string, details map[string]interface{}) {
	s.create(ctx, &domain.AuditLog{
		UserID:    userID,
		Action:    action,
		Category:  category,
		Details:   details,
		IP:        ip,
		UserAgent: userAgent,
	})
}

// LogAdmin records an action an admin took on userID.
func (s *AuditService) LogAdmin(ctx context.Context, actorID, userID, action string, details map[string]interface{}) {
	s.create(ctx, &domain.AuditLog{
		UserID:   userID,
		ActorID:  actorID,
		Action:   action,
		Category: domain.AuditCategoryAdmin,
		Details:  details,
	})
}

func (s *AuditService) create(ctx context.Context, entry *domain.AuditLog) {
	entry.CreatedAt = s.clock.Now()
	if err := s.repo.Create(ctx, entry); err != nil {
		logger.Error("failed to create audit log", "error", err, "action", entry.Action, "user_id", entry.UserID)
	}
}

// GetUserAuditLogs returns audit logs for a user
func (s *AuditService) GetUserAuditLogs(ctx context.Context, userID string, limit int) ([]*domain.AuditLog, error) {
	return s.repo.GetByUserID(ctx, userID, limit)
}

// GetRecentLogs returns recent audit logs
func (s *AuditService) GetRecentLogs(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	return s.repo.List(ctx, limit)
}

// GetLogsByAction returns recent logs of one action
func (s *AuditService) GetLogsByAction(ctx context.Context, action string, limit int) ([]*domain.AuditLog, error) {
	return s.repo.GetByAction(ctx, action, limit)
}
