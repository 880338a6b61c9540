package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/storefront/internal/cache"
	"github.com/Additional-Code/storefront/internal/config"
	"github.com/Additional-Code/storefront/internal/database"
	"github.com/Additional-Code/storefront/internal/logger"
	"github.com/Additional-Code/storefront/internal/messaging"
	"github.com/Additional-Code/storefront/internal/observability"
	repositorycart "github.com/Additional-Code/storefront/internal/repository/cart"
	repositorycustomer "github.com/Additional-Code/storefront/internal/repository/customer"
	repositoryorder "github.com/Additional-Code/storefront/internal/repository/order"
	repositoryoutbox "github.com/Additional-Code/storefront/internal/repository/outbox"
	repositorystock "github.com/Additional-Code/storefront/internal/repository/stock"
	grpcserver "github.com/Additional-Code/storefront/internal/server/grpc"
	httpserver "github.com/Additional-Code/storefront/internal/server/http"
	servicecheckout "github.com/Additional-Code/storefront/internal/service/checkout"
	transporthttp "github.com/Additional-Code/storefront/internal/transport/http"
	"github.com/Additional-Code/storefront/internal/worker"
	workerorder "github.com/Additional-Code/storefront/internal/worker/order"
	workeroutbox "github.com/Additional-Code/storefront/internal/worker/outbox"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositorystock.Module,
	repositorycart.Module,
	repositorycustomer.Module,
	repositoryorder.Module,
	repositoryoutbox.Module,
	servicecheckout.Module,
)

// HTTP wires the HTTP and gRPC transports on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
	grpcserver.Module,
)

// Worker exposes background processing: the outbox relay and event consumers.
var Worker = fx.Options(
	Core,
	workeroutbox.Module,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP and gRPC).
var Module = HTTP
