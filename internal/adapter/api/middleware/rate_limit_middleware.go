package middleware

import (
	"github.com/labstack/echo/v4"

	"shopdesk/internal/usecase"
	"shopdesk/pkg/errors"
	"shopdesk/pkg/logger"
	"shopdesk/pkg/response"
)

// RateLimit spends one token of action per request from the client IP. Used on the sign in and sign up
// routes, where there is no user yet to key on.
func RateLimit(limiter usecase.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ok, wait := limiter.Allow("ip:"+ip, action); !ok {
				logger.Warn("RATE LIMIT: %s from %s blocked for %v", action, ip, wait)
				return response.Error(c, errors.TooManyRequests("Too many attempts, try again later", wait))
			}
			return next(c)
		}
	}
}
