package identifier

import (
	"github.com/smallbiznis/buildledger/internal/identifier/service"
	"go.uber.org/fx"
)

var Module = fx.Module("identifier.service",
	fx.Provide(service.New),
)
