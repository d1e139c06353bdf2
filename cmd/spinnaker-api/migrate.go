package main

import (
	"context"

	"github.com/bd2kgenomics/spinnaker/internal/config"
	"github.com/bd2kgenomics/spinnaker/internal/store"
	"github.com/bd2kgenomics/spinnaker/pkg/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, undo := setup()
		defer undo()

		zap.S().Info("Starting migration...")
		defer zap.S().Info("Db migrated")

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if err := migrations.MigrateStore(db, cfg); err != nil {
			zap.S().Fatalw("running migrations", "error", err)
		}

		if cfg.Service.Dispatcher.Type != config.DispatcherRiver {
			return nil
		}

		ctx := context.Background()
		pool, err := pgxpool.New(ctx, store.PostgresDSN(cfg))
		if err != nil {
			zap.S().Fatalw("connecting to the job queue database", "error", err)
		}
		defer pool.Close()

		if err := migrations.MigrateRiver(ctx, pool); err != nil {
			zap.S().Fatalw("running job queue migrations", "error", err)
		}

		return nil
	},
}
