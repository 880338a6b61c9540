package customer

import "go.uber.org/fx"

// Module provides the customer information repository to Fx.
var Module = fx.Provide(NewRepository)
