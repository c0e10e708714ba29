package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/buildledger/internal/audit"
	"github.com/smallbiznis/buildledger/internal/clock"
	"github.com/smallbiznis/buildledger/internal/config"
	"github.com/smallbiznis/buildledger/internal/featureflag"
	"github.com/smallbiznis/buildledger/internal/identifier"
	"github.com/smallbiznis/buildledger/internal/observability"
	"github.com/smallbiznis/buildledger/internal/policy"
	"github.com/smallbiznis/buildledger/internal/ratelimit"
	"github.com/smallbiznis/buildledger/internal/salesrep"
	"github.com/smallbiznis/buildledger/internal/sequence"
	"github.com/smallbiznis/buildledger/internal/server"
	"github.com/smallbiznis/buildledger/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		ratelimit.Module,

		// Domains
		audit.Module,
		sequence.Module,
		identifier.Module,
		salesrep.Module,
		policy.Module,
		featureflag.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
