package entity

import (
	"time"

	"shopdesk/internal/livesync"
)

type Product struct {
	ID          string    `json:"id" firestore:"id"`
	TenantID    string    `json:"tenant_id" firestore:"tenantId"`
	Name        string    `json:"name" firestore:"name"`
	SKU         string    `json:"sku,omitempty" firestore:"sku,omitempty"`
	Category    string    `json:"category,omitempty" firestore:"category,omitempty"`
	Description string    `json:"description,omitempty" firestore:"description,omitempty"`
	Price       float64   `json:"price" firestore:"price"`
	Cost        float64   `json:"cost" firestore:"cost"`
	Stock       int       `json:"stock" firestore:"stock"`
	MinStock    int       `json:"min_stock" firestore:"minStock"`
	ImageURL    string    `json:"image_url,omitempty" firestore:"imageUrl,omitempty"`
	Active      bool      `json:"active" firestore:"active"`
	CreatedAt   time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time `json:"updated_at" firestore:"updatedAt"`

	// LowStockAlerted latches once the low stock alert went out, until stock recovers.
	LowStockAlerted bool `json:"low_stock_alerted" firestore:"lowStockAlerted"`
}

func (p *Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}

func (p *Product) Fields() map[string]interface{} {
	return map[string]interface{}{
		"tenantId":        p.TenantID,
		"name":            p.Name,
		"sku":             p.SKU,
		"category":        p.Category,
		"description":     p.Description,
		"price":           p.Price,
		"cost":            p.Cost,
		"stock":           p.Stock,
		"minStock":        p.MinStock,
		"imageUrl":        p.ImageURL,
		"active":          p.Active,
		"lowStockAlerted": p.LowStockAlerted,
	}
}

func ProductFromDocument(doc livesync.Document) *Product {
	return &Product{
		ID:              doc.ID,
		TenantID:        doc.String("tenantId"),
		Name:            doc.String("name"),
		SKU:             doc.String("sku"),
		Category:        doc.String("category"),
		Description:     doc.String("description"),
		Price:           doc.Float64("price"),
		Cost:            doc.Float64("cost"),
		Stock:           int(doc.Int64("stock")),
		MinStock:        int(doc.Int64("minStock")),
		ImageURL:        doc.String("imageUrl"),
		Active:          doc.Bool("active"),
		LowStockAlerted: doc.Bool("lowStockAlerted"),
		CreatedAt:       doc.Time("createdAt"),
		UpdatedAt:       doc.Time("updatedAt"),
	}
}
