package middlewares

import (
	"crypto/subtle"
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/onurcolak/future-message-service/pkg/logger"
	"github.com/onurcolak/future-message-service/pkg/response"
)

const APIKeyHeader = "x-mf-auth-key"

var errKeyNotConfigured = errors.New("API key is not configured for this endpoint group")

// APIKeyAuth guards a route group with a shared key sent in x-mf-auth-key.
// An empty server key is a misconfiguration and every request gets a 500.
func APIKeyAuth(apiKey string) echo.MiddlewareFunc {
	expected := []byte(apiKey)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(expected) == 0 {
				logger.Errorf("Rejected %s %s: %v", c.Request().Method, c.Path(), errKeyNotConfigured)
				return response.InternalServerError(c, errKeyNotConfigured)
			}

			token := c.Request().Header.Get(APIKeyHeader)
			if token == "" || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
				logger.Debugf("Unauthorized %s %s from %s", c.Request().Method, c.Path(), c.RealIP())
				return response.Unauthorized(c)
			}

			return next(c)
		}
	}
}
