package handler

import (
	"github.com/labstack/echo/v4"

	"shopdesk/internal/domain/entity"
	"shopdesk/internal/usecase"
	"shopdesk/pkg/response"
)

type NotificationHandler struct {
	notificationUseCase *usecase.NotificationUseCase
}

func NewNotificationHandler(notificationUseCase *usecase.NotificationUseCase) *NotificationHandler {
	return &NotificationHandler{
		notificationUseCase: notificationUseCase,
	}
}

type sendNotificationRequest struct {
	UserID  string                 `json:"user_id" validate:"required"`
	Type    string                 `json:"type" validate:"required,oneof=order service sale client payment system reminder"`
	Title   string                 `json:"title" validate:"required,max=120"`
	Message string                 `json:"message" validate:"max=1000"`
	Data    map[string]interface{} `json:"data"`
}

func (h *NotificationHandler) List(c echo.Context) error {
	items, err := h.notificationUseCase.List(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, items)
}

func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	count, err := h.notificationUseCase.UnreadCount(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int{"unread": count})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	if err := h.notificationUseCase.MarkRead(c.Request().Context(), currentUser(c).ID, c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"message": "Notification marked as read"})
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	marked, err := h.notificationUseCase.MarkAllRead(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int{"marked": marked})
}

// Send lets managers notify a colleague directly.
func (h *NotificationHandler) Send(c echo.Context) error {
	var req sendNotificationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	id, err := h.notificationUseCase.Send(c.Request().Context(), currentUser(c), req.UserID, usecase.NotificationInput{
		Type:    entity.NotificationType(req.Type),
		Title:   req.Title,
		Message: req.Message,
		Data:    req.Data,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, map[string]string{"id": id})
}
