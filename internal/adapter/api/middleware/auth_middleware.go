package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"shopdesk/internal/domain/entity"
	"shopdesk/internal/usecase"
	"shopdesk/pkg/errors"
	"shopdesk/pkg/response"
)

// Context keys set by Authenticate.
const (
	ContextUserID = "uid"
	ContextUser   = "user"
)

type AuthMiddleware struct {
	authUseCase *usecase.AuthUseCase
}

func NewAuthMiddleware(authUseCase *usecase.AuthUseCase) *AuthMiddleware {
	return &AuthMiddleware{
		authUseCase: authUseCase,
	}
}

// Authenticate resolves the bearer token to an active user and stores it on the context.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return response.Error(c, errors.Unauthorized("Authorization header is required", nil))
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			return response.Error(c, errors.Unauthorized("Invalid authorization format", nil))
		}

		user, err := m.authUseCase.Authenticate(c.Request().Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			return response.Error(c, err)
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextUser, user)
		return next(c)
	}
}

// CurrentUser returns the user stored by Authenticate, or nil.
func CurrentUser(c echo.Context) *entity.User {
	user, _ := c.Get(ContextUser).(*entity.User)
	return user
}
