package handler

import (
	"github.com/labstack/echo/v4"

	"shopdesk/internal/usecase"
	"shopdesk/pkg/response"
	"shopdesk/pkg/utils"
)

type SaleHandler struct {
	saleUseCase *usecase.SaleUseCase
}

func NewSaleHandler(saleUseCase *usecase.SaleUseCase) *SaleHandler {
	return &SaleHandler{
		saleUseCase: saleUseCase,
	}
}

type saleItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type createSaleRequest struct {
	ClientName    string            `json:"client_name" validate:"max=120"`
	PaymentMethod string            `json:"payment_method" validate:"required,oneof=cash card transfer"`
	Discount      float64           `json:"discount" validate:"gte=0"`
	Items         []saleItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *SaleHandler) CreateSale(c echo.Context) error {
	var req createSaleRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	items := make([]usecase.SaleItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, usecase.SaleItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	sale, err := h.saleUseCase.CreateSale(c.Request().Context(), currentUser(c), usecase.CreateSaleInput{
		ClientName:    req.ClientName,
		PaymentMethod: req.PaymentMethod,
		Discount:      req.Discount,
		Items:         items,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, sale)
}

func (h *SaleHandler) ListSales(c echo.Context) error {
	sales, err := h.saleUseCase.ListSales(c.Request().Context(), currentUser(c))
	if err != nil {
		return response.Error(c, err)
	}

	page := utils.GetPaginationParams(c)
	start, end := page.Window(len(sales))
	return response.Paginated(c, sales[start:end], int64(len(sales)), page.Page, page.PageSize)
}

func (h *SaleHandler) GetSale(c echo.Context) error {
	sale, err := h.saleUseCase.GetSale(c.Request().Context(), currentUser(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, sale)
}
