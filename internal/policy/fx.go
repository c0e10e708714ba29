package policy

import (
	"github.com/casbin/casbin/v2"
	"github.com/smallbiznis/buildledger/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("policy",
	fx.Provide(NewEnforcer),
	fx.Provide(provideEngine),
	fx.Provide(NewAuthorizer),
)

type engineParams struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	Metrics  *metrics.Core `optional:"true"`
}

func provideEngine(p engineParams) (*Engine, error) {
	engine := NewEngine(p.Log, p.Metrics)
	for _, rule := range DefaultRules(p.Enforcer) {
		if err := engine.RegisterRule(rule); err != nil {
			return nil, err
		}
	}
	return engine, nil
}
