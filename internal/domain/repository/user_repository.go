package repository

import (
	"context"

	"shopdesk/internal/domain/entity"
)

type UserRepository interface {
	// Create stores the profile under the auth provider's uid.
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	ListByTenant(ctx context.Context, tenantID string) ([]*entity.User, error)
	ListByRole(ctx context.Context, tenantID string, role entity.Role) ([]*entity.User, error)
}
