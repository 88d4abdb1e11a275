package repository

import (
	"context"

	"shopdesk/internal/domain/entity"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) (string, error)
	GetByID(ctx context.Context, id string) (*entity.Notification, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

type AuditRepository interface {
	Append(ctx context.Context, entry *entity.AuditEntry) (string, error)
	List(ctx context.Context, tenantID string, limit int) ([]*entity.AuditEntry, error)
}
