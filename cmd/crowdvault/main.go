package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/crowdvault/crowdvault/internal/clock"
	"github.com/crowdvault/crowdvault/internal/config"
	"github.com/crowdvault/crowdvault/internal/logger"
	"github.com/crowdvault/crowdvault/internal/migration"
	obsmetrics "github.com/crowdvault/crowdvault/internal/observability/metrics"
	"github.com/crowdvault/crowdvault/internal/server"
	"github.com/crowdvault/crowdvault/pkg/db"
	"github.com/crowdvault/crowdvault/pkg/telemetry"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		telemetry.Module,
		obsmetrics.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain + transport
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
