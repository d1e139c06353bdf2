package apiserver

import (
	"context"
	"fmt"
	"time"

	"github.com/bd2kgenomics/spinnaker/internal/config"
	"github.com/bd2kgenomics/spinnaker/internal/jobs"
	"github.com/bd2kgenomics/spinnaker/internal/store"
	"github.com/bd2kgenomics/spinnaker/pkg/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
)

// runner is a dispatcher with a lifecycle.
type runner interface {
	Enqueue(ctx context.Context, args jobs.ValidationArgs) error
	Start(ctx context.Context, completer jobs.Completer) error
	Stop(ctx context.Context) error
}

// newRunner builds the dispatcher selected by the configuration. The returned cleanup
// must be called once the runner is stopped. A nil runner means no dispatcher.
func newRunner(ctx context.Context, cfg *config.Config) (runner, func(), error) {
	switch cfg.Service.Dispatcher.Type {
	case config.DispatcherRiver:
		pool, err := newPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}

		if err := migrations.MigrateRiver(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}

		client, err := jobs.NewClient(pool, cfg.Service.Dispatcher.Workers)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to create river client: %w", err)
		}
		return client, pool.Close, nil
	case config.DispatcherLocal:
		return jobs.NewLocalDispatcher(cfg.Service.Dispatcher.Workers, cfg.Service.Dispatcher.QueueSize), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(store.PostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}

	// job processing plus LISTEN
	poolCfg.MaxConns = int32(cfg.Service.Dispatcher.Workers) + 4
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}
