package handler

import (
	"github.com/labstack/echo/v4"

	"shopdesk/internal/usecase"
	"shopdesk/pkg/response"
)

type ProductHandler struct {
	productUseCase *usecase.ProductUseCase
}

func NewProductHandler(productUseCase *usecase.ProductUseCase) *ProductHandler {
	return &ProductHandler{
		productUseCase: productUseCase,
	}
}

type productRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	SKU         string  `json:"sku" validate:"max=64"`
	Category    string  `json:"category" validate:"max=64"`
	Description string  `json:"description" validate:"max=2000"`
	Price       float64 `json:"price" validate:"gte=0"`
	Cost        float64 `json:"cost" validate:"gte=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
	MinStock    int     `json:"min_stock" validate:"gte=0"`
	ImageURL    string  `json:"image_url" validate:"omitempty,url"`
}

func (r productRequest) input() usecase.ProductInput {
	return usecase.ProductInput{
		Name:        r.Name,
		SKU:         r.SKU,
		Category:    r.Category,
		Description: r.Description,
		Price:       r.Price,
		Cost:        r.Cost,
		Stock:       r.Stock,
		MinStock:    r.MinStock,
		ImageURL:    r.ImageURL,
	}
}

type adjustStockRequest struct {
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required,max=200"`
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	product, err := h.productUseCase.CreateProduct(c.Request().Context(), currentUser(c), req.input())
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, product)
}

func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	product, err := h.productUseCase.UpdateProduct(c.Request().Context(), currentUser(c), c.Param("id"), req.input())
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, product)
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	product, err := h.productUseCase.GetProduct(c.Request().Context(), currentUser(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, product)
}

func (h *ProductHandler) ListProducts(c echo.Context) error {
	products, err := h.productUseCase.ListProducts(c.Request().Context(), currentUser(c), c.QueryParam("low_stock") == "true")
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, products)
}

// AdjustStock applies a signed delta, e.g. a delivery (+) or shrinkage (-).
func (h *ProductHandler) AdjustStock(c echo.Context) error {
	var req adjustStockRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	product, err := h.productUseCase.AdjustStock(c.Request().Context(), currentUser(c), c.Param("id"), req.Delta, req.Reason)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, product)
}
