package middleware

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Additional-Code/storefront/internal/actor"
	"github.com/Additional-Code/storefront/internal/config"
	"github.com/Additional-Code/storefront/internal/presentation/http/response"
	"github.com/Additional-Code/storefront/pkg/errorbank"
)

// ErrUnauthenticated is returned when the gateway did not forward a usable identity.
var ErrUnauthenticated = errorbank.Unauthorized("missing or invalid caller identity", errorbank.WithCode("UNAUTHORIZED"))

// Actor resolves the caller from the gateway headers named in cfg and stores
// it on the request context.
func Actor(cfg config.Auth, logger *zap.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			who, err := actor.Parse(req.Header.Get(cfg.AccountHeader), req.Header.Get(cfg.RoleHeader))
			if err != nil {
				logger.Debug("rejecting request without identity", zap.String("path", c.Path()), zap.Error(err))
				return response.New(c).WithError(ErrUnauthenticated.With(errorbank.WithCause(err))).Build()
			}
			c.SetRequest(req.WithContext(actor.WithContext(req.Context(), who)))
			return next(c)
		}
	}
}
