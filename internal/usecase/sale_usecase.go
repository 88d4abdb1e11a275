package usecase

import (
	"context"
	"fmt"

	"shopdesk/internal/domain/access"
	"shopdesk/internal/domain/entity"
	"shopdesk/internal/domain/repository"
	"shopdesk/pkg/errors"
	"shopdesk/pkg/logger"
)

type SaleUseCase struct {
	saleRepo      repository.SaleRepository
	userRepo      repository.UserRepository
	products      *ProductUseCase
	policy        *access.Policy
	notifications *NotificationUseCase
	audit         *AuditUseCase
}

func NewSaleUseCase(saleRepo repository.SaleRepository, userRepo repository.UserRepository, products *ProductUseCase, policy *access.Policy, notifications *NotificationUseCase, audit *AuditUseCase) *SaleUseCase {
	return &SaleUseCase{
		saleRepo:      saleRepo,
		userRepo:      userRepo,
		products:      products,
		policy:        policy,
		notifications: notifications,
		audit:         audit,
	}
}

type SaleItemInput struct {
	ProductID string
	Quantity  int
}

type CreateSaleInput struct {
	ClientName    string
	PaymentMethod string
	Discount      float64
	Items         []SaleItemInput
}

// CreateSale prices the items from the catalog, applies the seller's commission percent, records the sale
// and takes the units out of stock.
func (uc *SaleUseCase) CreateSale(ctx context.Context, seller *entity.User, input CreateSaleInput) (*entity.Sale, error) {
	if err := authorize(uc.policy, seller, access.SaleCreate); err != nil {
		return nil, err
	}

	sale := &entity.Sale{
		TenantID:      seller.TenantID,
		SellerID:      seller.ID,
		ClientName:    input.ClientName,
		PaymentMethod: input.PaymentMethod,
		Discount:      input.Discount,
	}
	for _, item := range input.Items {
		product, err := uc.products.GetProduct(ctx, seller, item.ProductID)
		if err != nil {
			return nil, err
		}
		if !product.Active {
			return nil, errors.BadRequest(product.Name+" is not for sale", nil)
		}
		if item.Quantity > product.Stock {
			return nil, errors.BadRequest(fmt.Sprintf("Only %d units of %s in stock", product.Stock, product.Name), nil)
		}
		sale.Items = append(sale.Items, entity.SaleItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
	}
	if err := sale.ComputeTotals(seller.CommissionPercent); err != nil {
		return nil, errors.BadRequest(err.Error(), err)
	}

	id, err := uc.saleRepo.Create(ctx, sale)
	if err != nil {
		return nil, err
	}
	sale.ID = id

	for _, item := range sale.Items {
		if _, err := uc.products.adjust(ctx, seller, item.ProductID, -item.Quantity, "sale "+id); err != nil {
			logger.Error("Sales: sale %s recorded but stock of %s not decremented: %v", id, item.ProductID, err)
		}
	}

	uc.audit.Record(ctx, seller, AuditSaleCreated, "sale", id, map[string]interface{}{
		"total":      sale.Total,
		"commission": sale.Commission,
	})
	if uc.notifications != nil {
		uc.notifications.NotifyRoles(ctx, seller.TenantID, seller.ID, []entity.Role{entity.RoleAdmin}, NotificationInput{
			Type:    entity.NotificationSale,
			Title:   "New sale",
			Message: fmt.Sprintf("%s sold %.2f", seller.DisplayName, sale.Total),
			Data:    map[string]interface{}{"saleId": id},
		})
	}
	return sale, nil
}

// ListSales returns every sale of the tenant to roles with sale.view_all, otherwise the actor's own.
func (uc *SaleUseCase) ListSales(ctx context.Context, actor *entity.User) ([]*entity.Sale, error) {
	sellerID := actor.ID
	if uc.policy.Can(actor.Role, access.SaleViewAll) {
		sellerID = ""
	} else if err := authorize(uc.policy, actor, access.SaleCreate); err != nil {
		return nil, err
	}
	return uc.saleRepo.List(ctx, actor.TenantID, sellerID)
}

func (uc *SaleUseCase) GetSale(ctx context.Context, actor *entity.User, id string) (*entity.Sale, error) {
	sale, err := uc.saleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sameTenant(actor, sale.TenantID, "Sale"); err != nil {
		return nil, err
	}
	if sale.SellerID != actor.ID && !uc.policy.Can(actor.Role, access.SaleViewAll) {
		return nil, errors.NotFound("Sale", nil)
	}
	return sale, nil
}
