package repository

import (
	"context"

	"shopdesk/internal/domain/entity"
)

type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) (string, error)
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	List(ctx context.Context, tenantID string) ([]*entity.Product, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
}

type SaleRepository interface {
	Create(ctx context.Context, sale *entity.Sale) (string, error)
	GetByID(ctx context.Context, id string) (*entity.Sale, error)
	// List returns the tenant's sales, only sellerID's when it is not empty.
	List(ctx context.Context, tenantID, sellerID string) ([]*entity.Sale, error)
}

type ServiceOrderRepository interface {
	Create(ctx context.Context, order *entity.ServiceOrder) (string, error)
	GetByID(ctx context.Context, id string) (*entity.ServiceOrder, error)
	List(ctx context.Context, tenantID string) ([]*entity.ServiceOrder, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
}
