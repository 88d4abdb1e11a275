package router

import (
	"github.com/labstack/echo/v4"

	"shopdesk/internal/adapter/api/handler"
	"shopdesk/internal/domain/access"
)

func SetupUserRouter(v1 *echo.Group, mw Middlewares) {
	userHandler := handler.GetUserHandler()

	me := v1.Group("/users/me", mw.Auth.Authenticate)
	me.GET("", userHandler.GetProfile)
	me.PATCH("", userHandler.UpdateProfile)
	me.POST("/devices", userHandler.RegisterDevice)
	me.POST("/push-subscriptions", userHandler.RegisterPushSubscription)

	users := v1.Group("/users", mw.Auth.Authenticate)
	users.GET("", userHandler.ListUsers, mw.Capability.Require(access.ChatUse))
	users.POST("", userHandler.CreateUser, mw.Capability.Require(access.UserManage))
	users.PUT("/:id/role", userHandler.SetRole, mw.Capability.Require(access.UserManage))
	users.PUT("/:id/commission", userHandler.SetCommission, mw.Capability.Require(access.CommissionManage))
}
