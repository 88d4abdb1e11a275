package middleware

import (
	"github.com/labstack/echo/v4"

	"shopdesk/internal/domain/access"
	"shopdesk/pkg/errors"
	"shopdesk/pkg/logger"
	"shopdesk/pkg/response"
)

// CapabilityMiddleware gates routes on the capabilities of the caller's role. It must run after
// AuthMiddleware.Authenticate.
type CapabilityMiddleware struct {
	policy *access.Policy
}

func NewCapabilityMiddleware(policy *access.Policy) *CapabilityMiddleware {
	return &CapabilityMiddleware{policy: policy}
}

func (m *CapabilityMiddleware) Require(action access.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return response.Error(c, errors.Unauthorized("Authentication required", nil))
			}
			if !m.policy.Can(user.Role, action) {
				logger.Warn("Access: %s (%s) denied %s on %s", user.ID, user.Role, action, c.Path())
				return response.Error(c, errors.Forbidden("Your role may not "+string(action), nil))
			}
			return next(c)
		}
	}
}
