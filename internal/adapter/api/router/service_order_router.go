package router

import (
	"github.com/labstack/echo/v4"

	"shopdesk/internal/adapter/api/handler"
	"shopdesk/internal/domain/access"
)

func SetupServiceOrderRouter(v1 *echo.Group, mw Middlewares) {
	orderHandler := handler.GetServiceOrderHandler()

	orders := v1.Group("/service-orders", mw.Auth.Authenticate)
	orders.POST("", orderHandler.Create, mw.Capability.Require(access.ServiceCreate))
	orders.GET("", orderHandler.List)
	orders.GET("/:id", orderHandler.Get)
	orders.PUT("/:id/status", orderHandler.Advance, mw.Capability.Require(access.ServiceUpdate))
}
