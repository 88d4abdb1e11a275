package usecase

import (
	"context"
	"fmt"
	"strings"

	"shopdesk/internal/domain/access"
	"shopdesk/internal/domain/entity"
	"shopdesk/internal/domain/repository"
	"shopdesk/pkg/errors"
	"shopdesk/pkg/logger"
)

// lowStockRecipients are told when a product reaches its minimum stock.
var lowStockRecipients = []entity.Role{entity.RoleAdmin, entity.RoleManager}

type ProductUseCase struct {
	productRepo   repository.ProductRepository
	policy        *access.Policy
	notifications *NotificationUseCase
	audit         *AuditUseCase
}

func NewProductUseCase(productRepo repository.ProductRepository, policy *access.Policy, notifications *NotificationUseCase, audit *AuditUseCase) *ProductUseCase {
	return &ProductUseCase{
		productRepo:   productRepo,
		policy:        policy,
		notifications: notifications,
		audit:         audit,
	}
}

type ProductInput struct {
	Name        string
	SKU         string
	Category    string
	Description string
	Price       float64
	Cost        float64
	Stock       int
	MinStock    int
	ImageURL    string
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.BadRequest("Product name is required", nil)
	}
	if in.Price < 0 || in.Cost < 0 || in.Stock < 0 || in.MinStock < 0 {
		return errors.BadRequest("Price, cost and stock cannot be negative", nil)
	}
	return nil
}

func (uc *ProductUseCase) CreateProduct(ctx context.Context, actor *entity.User, input ProductInput) (*entity.Product, error) {
	if err := authorize(uc.policy, actor, access.ProductManage); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	product := &entity.Product{
		TenantID:    actor.TenantID,
		Name:        strings.TrimSpace(input.Name),
		SKU:         input.SKU,
		Category:    input.Category,
		Description: input.Description,
		Price:       input.Price,
		Cost:        input.Cost,
		Stock:       input.Stock,
		MinStock:    input.MinStock,
		ImageURL:    input.ImageURL,
		Active:      true,
	}
	id, err := uc.productRepo.Create(ctx, product)
	if err != nil {
		return nil, err
	}
	product.ID = id
	uc.audit.Record(ctx, actor, AuditProductCreated, "product", id, map[string]interface{}{"name": product.Name})
	uc.checkLowStock(ctx, actor, product)
	return product, nil
}

func (uc *ProductUseCase) UpdateProduct(ctx context.Context, actor *entity.User, id string, input ProductInput) (*entity.Product, error) {
	if err := authorize(uc.policy, actor, access.ProductManage); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	product, err := uc.GetProduct(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	product.Name = strings.TrimSpace(input.Name)
	product.SKU = input.SKU
	product.Category = input.Category
	product.Description = input.Description
	product.Price = input.Price
	product.Cost = input.Cost
	product.Stock = input.Stock
	product.MinStock = input.MinStock
	product.ImageURL = input.ImageURL

	fields := product.Fields()
	delete(fields, "lowStockAlerted")
	if err := uc.productRepo.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	uc.audit.Record(ctx, actor, AuditProductUpdated, "product", id, nil)
	uc.checkLowStock(ctx, actor, product)
	return product, nil
}

func (uc *ProductUseCase) GetProduct(ctx context.Context, actor *entity.User, id string) (*entity.Product, error) {
	if err := authorize(uc.policy, actor, access.ProductView); err != nil {
		return nil, err
	}
	product, err := uc.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sameTenant(actor, product.TenantID, "Product"); err != nil {
		return nil, err
	}
	return product, nil
}

func (uc *ProductUseCase) ListProducts(ctx context.Context, actor *entity.User, lowStockOnly bool) ([]*entity.Product, error) {
	if err := authorize(uc.policy, actor, access.ProductView); err != nil {
		return nil, err
	}
	products, err := uc.productRepo.List(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	if !lowStockOnly {
		return products, nil
	}
	out := make([]*entity.Product, 0, len(products))
	for _, p := range products {
		if p.IsLowStock() {
			out = append(out, p)
		}
	}
	return out, nil
}

// AdjustStock adds delta (negative to remove) to the product's stock. Stock never goes below zero.
func (uc *ProductUseCase) AdjustStock(ctx context.Context, actor *entity.User, id string, delta int, reason string) (*entity.Product, error) {
	if err := authorize(uc.policy, actor, access.StockAdjust); err != nil {
		return nil, err
	}
	return uc.adjust(ctx, actor, id, delta, reason)
}

// adjust skips the capability check; sales decrement stock on behalf of sellers.
func (uc *ProductUseCase) adjust(ctx context.Context, actor *entity.User, id string, delta int, reason string) (*entity.Product, error) {
	product, err := uc.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sameTenant(actor, product.TenantID, "Product"); err != nil {
		return nil, err
	}
	if product.Stock+delta < 0 {
		return nil, errors.BadRequest(fmt.Sprintf("Only %d units of %s in stock", product.Stock, product.Name), nil)
	}
	before := product.Stock
	product.Stock += delta
	if err := uc.productRepo.Update(ctx, id, map[string]interface{}{"stock": product.Stock}); err != nil {
		return nil, err
	}
	uc.audit.Record(ctx, actor, AuditStockAdjusted, "product", id, map[string]interface{}{
		"from":   before,
		"to":     product.Stock,
		"reason": reason,
	})
	uc.checkLowStock(ctx, actor, product)
	return product, nil
}

// checkLowStock alerts managers once when the product reaches its minimum, and re-arms the alert when the
// stock recovers.
func (uc *ProductUseCase) checkLowStock(ctx context.Context, actor *entity.User, product *entity.Product) {
	low := product.IsLowStock()
	if low == product.LowStockAlerted {
		return
	}
	if err := uc.productRepo.Update(ctx, product.ID, map[string]interface{}{"lowStockAlerted": low}); err != nil {
		logger.Error("Catalog: failed to latch low stock alert for %s: %v", product.ID, err)
		return
	}
	product.LowStockAlerted = low
	if !low || uc.notifications == nil {
		return
	}
	sent := uc.notifications.NotifyRoles(ctx, product.TenantID, actor.ID, lowStockRecipients, NotificationInput{
		Type:    entity.NotificationSystem,
		Title:   "Low stock",
		Message: fmt.Sprintf("%s has %d units left (minimum %d)", product.Name, product.Stock, product.MinStock),
		Data:    map[string]interface{}{"productId": product.ID},
	})
	logger.Info("Catalog: low stock alert for %s sent to %d users", product.ID, sent)
}
