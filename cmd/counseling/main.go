package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/counseling/internal/config"
	"github.com/smallbiznis/counseling/internal/migration"
	"github.com/smallbiznis/counseling/internal/observability"
	"github.com/smallbiznis/counseling/internal/server"
	"github.com/smallbiznis/counseling/pkg/db"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		// Domains and HTTP surface
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
