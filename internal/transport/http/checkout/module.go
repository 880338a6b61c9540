package checkout

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/storefront/internal/config"
	"github.com/Additional-Code/storefront/internal/transport/http/middleware"
)

// Module wires HTTP checkout handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(func(e *echo.Echo, h *Handler, cfg config.Config, logger *zap.Logger) {
		Register(e, h, middleware.Actor(cfg.Auth, logger))
	}),
)
