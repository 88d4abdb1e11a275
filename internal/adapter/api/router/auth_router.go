package router

import (
	"github.com/labstack/echo/v4"

	"shopdesk/internal/adapter/api/handler"
	"shopdesk/internal/adapter/api/middleware"
	"shopdesk/internal/infrastructure/ratelimit"
)

func SetupAuthRouter(v1 *echo.Group, mw Middlewares) {
	authHandler := handler.GetAuthHandler()
	limit := middleware.RateLimit(mw.SignInLimiter, ratelimit.ActionSignIn)

	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register, limit)
	auth.POST("/login", authHandler.Login, limit)
	auth.POST("/logout", authHandler.Logout, mw.Auth.Authenticate)
}
