package entity

import (
	"errors"
	"math"
	"time"

	"shopdesk/internal/livesync"
	"shopdesk/pkg/utils"
)

var (
	ErrEmptySale       = errors.New("sale needs at least one item")
	ErrInvalidQuantity = errors.New("item quantity must be positive")
	ErrNegativeAmount  = errors.New("amounts cannot be negative")
)

type SaleItem struct {
	ProductID string  `json:"product_id" firestore:"productId"`
	Name      string  `json:"name" firestore:"name"`
	Quantity  int     `json:"quantity" firestore:"quantity"`
	UnitPrice float64 `json:"unit_price" firestore:"unitPrice"`
}

type Sale struct {
	ID                string     `json:"id" firestore:"id"`
	TenantID          string     `json:"tenant_id" firestore:"tenantId"`
	SellerID          string     `json:"seller_id" firestore:"sellerId"`
	ClientName        string     `json:"client_name,omitempty" firestore:"clientName,omitempty"`
	PaymentMethod     string     `json:"payment_method" firestore:"paymentMethod"`
	Items             []SaleItem `json:"items" firestore:"items"`
	Subtotal          float64    `json:"subtotal" firestore:"subtotal"`
	Discount          float64    `json:"discount" firestore:"discount"`
	Total             float64    `json:"total" firestore:"total"`
	CommissionPercent float64    `json:"commission_percent" firestore:"commissionPercent"`
	Commission        float64    `json:"commission" firestore:"commission"`
	CreatedAt         time.Time  `json:"created_at" firestore:"createdAt"`
}

// ComputeTotals fills subtotal, total and commission from the items, the discount and the seller's
// commission percent. The total never goes below zero.
func (s *Sale) ComputeTotals(commissionPercent float64) error {
	if len(s.Items) == 0 {
		return ErrEmptySale
	}
	if s.Discount < 0 || commissionPercent < 0 {
		return ErrNegativeAmount
	}
	subtotal := 0.0
	for _, item := range s.Items {
		if item.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		if item.UnitPrice < 0 {
			return ErrNegativeAmount
		}
		subtotal += float64(item.Quantity) * item.UnitPrice
	}
	s.Subtotal = utils.Round2(subtotal)
	s.Total = math.Max(0, utils.Round2(s.Subtotal-s.Discount))
	s.CommissionPercent = commissionPercent
	s.Commission = utils.Percent(s.Total, commissionPercent)
	return nil
}

func (s *Sale) Fields() map[string]interface{} {
	items := make([]interface{}, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, map[string]interface{}{
			"productId": item.ProductID,
			"name":      item.Name,
			"quantity":  item.Quantity,
			"unitPrice": item.UnitPrice,
		})
	}
	return map[string]interface{}{
		"tenantId":          s.TenantID,
		"sellerId":          s.SellerID,
		"clientName":        s.ClientName,
		"paymentMethod":     s.PaymentMethod,
		"items":             items,
		"subtotal":          s.Subtotal,
		"discount":          s.Discount,
		"total":             s.Total,
		"commissionPercent": s.CommissionPercent,
		"commission":        s.Commission,
	}
}

func SaleFromDocument(doc livesync.Document) *Sale {
	s := &Sale{
		ID:                doc.ID,
		TenantID:          doc.String("tenantId"),
		SellerID:          doc.String("sellerId"),
		ClientName:        doc.String("clientName"),
		PaymentMethod:     doc.String("paymentMethod"),
		Subtotal:          doc.Float64("subtotal"),
		Discount:          doc.Float64("discount"),
		Total:             doc.Float64("total"),
		CommissionPercent: doc.Float64("commissionPercent"),
		Commission:        doc.Float64("commission"),
		CreatedAt:         doc.Time("createdAt"),
	}
	if raw, ok := doc.Value("items"); ok {
		if list, ok := raw.([]interface{}); ok {
			for _, entry := range list {
				m, ok := entry.(map[string]interface{})
				if !ok {
					continue
				}
				item := livesync.Document{Data: m}
				s.Items = append(s.Items, SaleItem{
					ProductID: item.String("productId"),
					Name:      item.String("name"),
					Quantity:  int(item.Int64("quantity")),
					UnitPrice: item.Float64("unitPrice"),
				})
			}
		}
	}
	return s
}
