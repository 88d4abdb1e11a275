package usecase

import (
	"context"

	"shopdesk/internal/domain/access"
	"shopdesk/internal/domain/entity"
	"shopdesk/internal/domain/repository"
	"shopdesk/pkg/errors"
	"shopdesk/pkg/logger"
)

// Audit actions.
const (
	AuditConversationCreated = "conversation.created"
	AuditConversationDeleted = "conversation.deleted"
	AuditProductCreated      = "product.created"
	AuditProductUpdated      = "product.updated"
	AuditStockAdjusted       = "stock.adjusted"
	AuditSaleCreated         = "sale.created"
	AuditServiceCreated      = "service.created"
	AuditServiceStatus       = "service.status_changed"
	AuditUserCreated         = "user.created"
	AuditRoleChanged         = "user.role_changed"
	AuditCommissionChanged   = "user.commission_changed"
	AuditNotificationSent    = "notification.sent"
)

type AuditUseCase struct {
	auditRepo repository.AuditRepository
	policy    *access.Policy
}

func NewAuditUseCase(auditRepo repository.AuditRepository, policy *access.Policy) *AuditUseCase {
	return &AuditUseCase{auditRepo: auditRepo, policy: policy}
}

// Record appends an audit entry. It never fails the calling operation; errors are logged.
func (uc *AuditUseCase) Record(ctx context.Context, actor *entity.User, action, entityName, entityID string, details map[string]interface{}) {
	if uc == nil {
		return
	}
	entry := &entity.AuditEntry{
		TenantID: actor.TenantID,
		ActorID:  actor.ID,
		Action:   action,
		Entity:   entityName,
		EntityID: entityID,
		Details:  details,
	}
	if _, err := uc.auditRepo.Append(detached(ctx), entry); err != nil {
		logger.Error("Audit: failed to record %s on %s/%s by %s: %v", action, entityName, entityID, actor.ID, err)
	}
}

func (uc *AuditUseCase) List(ctx context.Context, actor *entity.User, limit int) ([]*entity.AuditEntry, error) {
	if err := authorize(uc.policy, actor, access.AuditView); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > repository.AuditPage {
		limit = repository.AuditPage
	}
	entries, err := uc.auditRepo.List(ctx, actor.TenantID, limit)
	if err != nil {
		return nil, errors.Internal("Failed to load audit log", err)
	}
	return entries, nil
}
