package handler

import (
	"github.com/labstack/echo/v4"

	"shopdesk/internal/domain/entity"
	"shopdesk/internal/usecase"
	"shopdesk/pkg/response"
	"shopdesk/pkg/utils"
)

type ServiceOrderHandler struct {
	orderUseCase *usecase.ServiceOrderUseCase
}

func NewServiceOrderHandler(orderUseCase *usecase.ServiceOrderUseCase) *ServiceOrderHandler {
	return &ServiceOrderHandler{
		orderUseCase: orderUseCase,
	}
}

type createServiceOrderRequest struct {
	ClientName    string  `json:"client_name" validate:"required,max=120"`
	ClientPhone   string  `json:"client_phone" validate:"max=32"`
	Device        string  `json:"device" validate:"required,max=120"`
	Problem       string  `json:"problem" validate:"required,max=2000"`
	Notes         string  `json:"notes" validate:"max=2000"`
	EstimatedCost float64 `json:"estimated_cost" validate:"gte=0"`
	AssignedTo    string  `json:"assigned_to"`
}

type advanceServiceOrderRequest struct {
	Status string `json:"status" validate:"required,oneof=in_progress ready delivered cancelled"`
}

func (h *ServiceOrderHandler) Create(c echo.Context) error {
	var req createServiceOrderRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	order, err := h.orderUseCase.Create(c.Request().Context(), currentUser(c), usecase.CreateServiceOrderInput{
		ClientName:    req.ClientName,
		ClientPhone:   req.ClientPhone,
		Device:        req.Device,
		Problem:       req.Problem,
		Notes:         req.Notes,
		EstimatedCost: req.EstimatedCost,
		AssignedTo:    req.AssignedTo,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, order)
}

func (h *ServiceOrderHandler) Advance(c echo.Context) error {
	var req advanceServiceOrderRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	order, err := h.orderUseCase.Advance(c.Request().Context(), currentUser(c), c.Param("id"), entity.ServiceStatus(req.Status))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, order)
}

func (h *ServiceOrderHandler) Get(c echo.Context) error {
	order, err := h.orderUseCase.Get(c.Request().Context(), currentUser(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, order)
}

func (h *ServiceOrderHandler) List(c echo.Context) error {
	orders, err := h.orderUseCase.List(c.Request().Context(), currentUser(c), entity.ServiceStatus(c.QueryParam("status")))
	if err != nil {
		return response.Error(c, err)
	}

	page := utils.GetPaginationParams(c)
	start, end := page.Window(len(orders))
	return response.Paginated(c, orders[start:end], int64(len(orders)), page.Page, page.PageSize)
}
