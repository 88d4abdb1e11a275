package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"shopdesk/internal/usecase"
	"shopdesk/pkg/response"
)

type AuditHandler struct {
	auditUseCase *usecase.AuditUseCase
}

func NewAuditHandler(auditUseCase *usecase.AuditUseCase) *AuditHandler {
	return &AuditHandler{
		auditUseCase: auditUseCase,
	}
}

func (h *AuditHandler) List(c echo.Context) error {
	limit := 100
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	entries, err := h.auditUseCase.List(c.Request().Context(), currentUser(c), limit)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, entries)
}
