package http

import (
	"go.uber.org/fx"

	checkouttransport "github.com/Additional-Code/storefront/internal/transport/http/checkout"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	checkouttransport.Module,
)
