package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	apiserver "github.com/bd2kgenomics/spinnaker/internal/api_server"
	"github.com/bd2kgenomics/spinnaker/internal/config"
	"github.com/bd2kgenomics/spinnaker/internal/store"
	"github.com/bd2kgenomics/spinnaker/pkg/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the spinnaker api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, undo := setup()
		defer undo()

		zap.S().Info("Starting API service...")
		defer zap.S().Info("API service stopped")
		zap.S().Infof("Using config: %s", cfg)

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		store := store.NewStore(db)
		defer store.Close()

		// postgres schemas are owned by the migrate command
		if cfg.Database.Type == config.DatabaseTypeSqlite {
			if err := migrations.MigrateStore(db, cfg); err != nil {
				zap.S().Fatalw("running migrations", "error", err)
			}
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		listener, err := newListener(cfg.Service.Address)
		if err != nil {
			zap.S().Fatalw("creating listener", "error", err)
		}

		metricsListener, err := newListener(cfg.Service.MetricsAddress)
		if err != nil {
			zap.S().Fatalw("creating metrics listener", "error", err)
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return apiserver.New(cfg, store, listener).Run(ctx)
		})
		g.Go(func() error {
			return apiserver.NewMetricServer(cfg.Service.MetricsAddress, metricsListener).Run(ctx)
		})

		if err := g.Wait(); err != nil {
			zap.S().Errorw("server failed", "error", err)
			return err
		}
		return nil
	},
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
