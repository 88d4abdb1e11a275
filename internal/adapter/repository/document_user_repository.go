package repository

import (
	"context"

	"shopdesk/internal/domain/entity"
	"shopdesk/internal/domain/repository"
	"shopdesk/internal/livesync"
)

type documentUserRepository struct {
	collection
}

func NewUserRepository(backend livesync.Backend) repository.UserRepository {
	return &documentUserRepository{collection{backend: backend, name: repository.Users, resource: "User"}}
}

func (r *documentUserRepository) Create(ctx context.Context, user *entity.User) error {
	fields := user.Fields()
	fields["lastSeen"] = livesync.ServerTimestamp
	return r.set(ctx, user.ID, fields)
}

func (r *documentUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return entity.UserFromDocument(doc), nil
}

func (r *documentUserRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.update(ctx, id, fields)
}

func (r *documentUserRepository) ListByTenant(ctx context.Context, tenantID string) ([]*entity.User, error) {
	return r.list(ctx, livesync.Query{}.Where("tenantId", livesync.OpEqual, tenantID))
}

func (r *documentUserRepository) ListByRole(ctx context.Context, tenantID string, role entity.Role) ([]*entity.User, error) {
	return r.list(ctx, livesync.Query{}.
		Where("tenantId", livesync.OpEqual, tenantID).
		Where("role", livesync.OpEqual, string(role)))
}

func (r *documentUserRepository) list(ctx context.Context, q livesync.Query) ([]*entity.User, error) {
	docs, err := r.find(ctx, q)
	if err != nil {
		return nil, err
	}
	users := make([]*entity.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, entity.UserFromDocument(doc))
	}
	return users, nil
}
