package router

import (
	"github.com/labstack/echo/v4"

	"shopdesk/internal/adapter/api/handler"
	"shopdesk/internal/domain/access"
)

func SetupNotificationRouter(v1 *echo.Group, mw Middlewares) {
	notificationHandler := handler.GetNotificationHandler()

	notifications := v1.Group("/notifications", mw.Auth.Authenticate)
	notifications.GET("", notificationHandler.List)
	notifications.GET("/unread-count", notificationHandler.UnreadCount)
	notifications.PUT("/read-all", notificationHandler.MarkAllRead)
	notifications.PUT("/:id/read", notificationHandler.MarkRead)
	notifications.POST("", notificationHandler.Send, mw.Capability.Require(access.NotificationSend))
}
