package router

import (
	"github.com/labstack/echo/v4"

	"shopdesk/internal/adapter/api/handler"
	"shopdesk/internal/domain/access"
)

func SetupAuditRouter(v1 *echo.Group, mw Middlewares) {
	v1.GET("/audit", handler.GetAuditHandler().List, mw.Auth.Authenticate, mw.Capability.Require(access.AuditView))
}
