package main

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/storefront/internal/app"
	"github.com/Additional-Code/storefront/internal/logger"
)

// main runs the HTTP and gRPC API until SIGINT or SIGTERM.
func main() {
	fx.New(app.Module, logger.FxEvents).Run()
}
