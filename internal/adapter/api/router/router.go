package router

import (
	"github.com/labstack/echo/v4"

	"shopdesk/internal/adapter/api/middleware"
	"shopdesk/internal/usecase"
)

type Middlewares struct {
	Auth       *middleware.AuthMiddleware
	Capability *middleware.CapabilityMiddleware
	// SignInLimiter budgets sign in and sign up attempts per client IP.
	SignInLimiter usecase.RateLimiter
}

// Setup mounts the REST API under /v1. handler.Setup must have run first.
func Setup(e *echo.Echo, mw Middlewares) {
	v1 := e.Group("/v1")
	SetupAuthRouter(v1, mw)
	SetupUserRouter(v1, mw)
	SetupChatRouter(v1, mw)
	SetupNotificationRouter(v1, mw)
	SetupAuditRouter(v1, mw)
	SetupProductRouter(v1, mw)
	SetupSaleRouter(v1, mw)
	SetupServiceOrderRouter(v1, mw)
}
