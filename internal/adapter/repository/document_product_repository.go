package repository

import (
	"context"

	"shopdesk/internal/domain/entity"
	"shopdesk/internal/domain/repository"
	"shopdesk/internal/livesync"
)

type documentProductRepository struct {
	collection
}

func NewProductRepository(backend livesync.Backend) repository.ProductRepository {
	return &documentProductRepository{collection{backend: backend, name: repository.Products, resource: "Product"}}
}

func (r *documentProductRepository) Create(ctx context.Context, product *entity.Product) (string, error) {
	return r.add(ctx, product.Fields())
}

func (r *documentProductRepository) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return entity.ProductFromDocument(doc), nil
}

func (r *documentProductRepository) List(ctx context.Context, tenantID string) ([]*entity.Product, error) {
	docs, err := r.find(ctx, livesync.Query{}.
		Where("tenantId", livesync.OpEqual, tenantID).
		Ordered("name", livesync.Asc))
	if err != nil {
		return nil, err
	}
	out := make([]*entity.Product, 0, len(docs))
	for _, doc := range docs {
		out = append(out, entity.ProductFromDocument(doc))
	}
	return out, nil
}

func (r *documentProductRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.update(ctx, id, fields)
}

type documentSaleRepository struct {
	collection
}

func NewSaleRepository(backend livesync.Backend) repository.SaleRepository {
	return &documentSaleRepository{collection{backend: backend, name: repository.Sales, resource: "Sale"}}
}

func (r *documentSaleRepository) Create(ctx context.Context, sale *entity.Sale) (string, error) {
	return r.add(ctx, sale.Fields())
}

func (r *documentSaleRepository) GetByID(ctx context.Context, id string) (*entity.Sale, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return entity.SaleFromDocument(doc), nil
}

func (r *documentSaleRepository) List(ctx context.Context, tenantID, sellerID string) ([]*entity.Sale, error) {
	q := livesync.Query{}.Where("tenantId", livesync.OpEqual, tenantID)
	if sellerID != "" {
		q = q.Where("sellerId", livesync.OpEqual, sellerID)
	}
	docs, err := r.find(ctx, q.Ordered("createdAt", livesync.Desc))
	if err != nil {
		return nil, err
	}
	out := make([]*entity.Sale, 0, len(docs))
	for _, doc := range docs {
		out = append(out, entity.SaleFromDocument(doc))
	}
	return out, nil
}

type documentServiceOrderRepository struct {
	collection
}

func NewServiceOrderRepository(backend livesync.Backend) repository.ServiceOrderRepository {
	return &documentServiceOrderRepository{collection{backend: backend, name: repository.ServiceOrders, resource: "Service order"}}
}

func (r *documentServiceOrderRepository) Create(ctx context.Context, order *entity.ServiceOrder) (string, error) {
	return r.add(ctx, order.Fields())
}

func (r *documentServiceOrderRepository) GetByID(ctx context.Context, id string) (*entity.ServiceOrder, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return entity.ServiceOrderFromDocument(doc), nil
}

func (r *documentServiceOrderRepository) List(ctx context.Context, tenantID string) ([]*entity.ServiceOrder, error) {
	docs, err := r.find(ctx, livesync.Query{}.
		Where("tenantId", livesync.OpEqual, tenantID).
		Ordered("createdAt", livesync.Desc))
	if err != nil {
		return nil, err
	}
	out := make([]*entity.ServiceOrder, 0, len(docs))
	for _, doc := range docs {
		out = append(out, entity.ServiceOrderFromDocument(doc))
	}
	return out, nil
}

func (r *documentServiceOrderRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.update(ctx, id, fields)
}
