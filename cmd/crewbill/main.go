package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewbill/internal/config"
	"github.com/smallbiznis/crewbill/internal/migration"
	"github.com/smallbiznis/crewbill/internal/observability"
	"github.com/smallbiznis/crewbill/internal/server"
	"github.com/smallbiznis/crewbill/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
