package repository

import (
	"context"

	"shopdesk/internal/domain/entity"
	"shopdesk/internal/domain/repository"
	"shopdesk/internal/livesync"
)

type documentNotificationRepository struct {
	collection
}

func NewNotificationRepository(backend livesync.Backend) repository.NotificationRepository {
	return &documentNotificationRepository{collection{backend: backend, name: repository.Notifications, resource: "Notification"}}
}

func (r *documentNotificationRepository) Create(ctx context.Context, n *entity.Notification) (string, error) {
	return r.add(ctx, n.Fields())
}

func (r *documentNotificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return entity.NotificationFromDocument(doc), nil
}

func (r *documentNotificationRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Notification, error) {
	docs, err := r.find(ctx, livesync.Query{}.
		Where("userId", livesync.OpEqual, userID).
		Ordered("createdAt", livesync.Desc))
	if err != nil {
		return nil, err
	}
	out := make([]*entity.Notification, 0, len(docs))
	for _, doc := range docs {
		out = append(out, entity.NotificationFromDocument(doc))
	}
	return out, nil
}

// MarkRead only flips the flag; notifications are never deleted.
func (r *documentNotificationRepository) MarkRead(ctx context.Context, id string) error {
	if err := r.backend.Update(ctx, r.name, id, map[string]interface{}{"read": true}); err != nil {
		return translate(r.resource, err)
	}
	return nil
}

type documentAuditRepository struct {
	collection
}

func NewAuditRepository(backend livesync.Backend) repository.AuditRepository {
	return &documentAuditRepository{collection{backend: backend, name: repository.AuditLogs, resource: "Audit entry"}}
}

func (r *documentAuditRepository) Append(ctx context.Context, entry *entity.AuditEntry) (string, error) {
	fields := entry.Fields()
	fields["createdAt"] = livesync.ServerTimestamp
	id, err := r.backend.Add(ctx, r.name, fields)
	if err != nil {
		return "", translate(r.resource, err)
	}
	return id, nil
}

func (r *documentAuditRepository) List(ctx context.Context, tenantID string, limit int) ([]*entity.AuditEntry, error) {
	docs, err := r.find(ctx, repository.AuditFeed(tenantID, limit))
	if err != nil {
		return nil, err
	}
	out := make([]*entity.AuditEntry, 0, len(docs))
	for _, doc := range docs {
		out = append(out, entity.AuditEntryFromDocument(doc))
	}
	return out, nil
}
