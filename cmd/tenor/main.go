package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenor/internal/audit"
	"github.com/smallbiznis/tenor/internal/clock"
	"github.com/smallbiznis/tenor/internal/config"
	"github.com/smallbiznis/tenor/internal/events"
	"github.com/smallbiznis/tenor/internal/jobrun"
	"github.com/smallbiznis/tenor/internal/ledger"
	"github.com/smallbiznis/tenor/internal/migration"
	"github.com/smallbiznis/tenor/internal/observability/logger"
	"github.com/smallbiznis/tenor/internal/payment"
	"github.com/smallbiznis/tenor/internal/plan"
	"github.com/smallbiznis/tenor/internal/scheduler"
	"github.com/smallbiznis/tenor/internal/server"
	"github.com/smallbiznis/tenor/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(func(cfg config.Config) *snowflake.Node {
			node, err := snowflake.NewNode(cfg.SnowflakeNode)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return migration.RunMigrations(sqlDB)
		}),
		clock.Module,
		events.Module,
		audit.Module,
		ledger.Module,
		payment.Module,
		plan.Module,
		jobrun.Module,
		scheduler.Module,
		server.Module,
	)
	app.Run()
}
