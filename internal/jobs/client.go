package jobs

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"go.uber.org/zap"
)

// Client dispatches validation jobs through river. Jobs survive a restart of the
// process since they are stored in postgres.
type Client struct {
	*river.Client[pgx.Tx]
	worker *ValidationWorker
}

func NewClient(pool *pgxpool.Pool, maxWorkers int) (*Client, error) {
	worker := NewValidationWorker(nil)

	workers := river.NewWorkers()
	river.AddWorker(workers, worker)

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			DefaultQueue: {MaxWorkers: maxWorkers},
		},
		Workers: workers,

		FetchCooldown:     50 * time.Millisecond,
		FetchPollInterval: 100 * time.Millisecond,

		CancelledJobRetentionPeriod: 24 * time.Hour,
		CompletedJobRetentionPeriod: 24 * time.Hour,
		DiscardedJobRetentionPeriod: 7 * 24 * time.Hour,
	})
	if err != nil {
		return nil, err
	}

	return &Client{Client: riverClient, worker: worker}, nil
}

// Start starts working jobs with completer. It must be called once, before any job
// is enqueued.
func (c *Client) Start(ctx context.Context, completer Completer) error {
	c.worker.completer = completer
	return c.Client.Start(ctx)
}

func (c *Client) Enqueue(ctx context.Context, args ValidationArgs) error {
	id, err := c.InsertJob(ctx, args)
	if err != nil {
		return err
	}
	zap.S().Named("river_dispatcher").Debugw("validation job inserted", "job_id", id, "submission_id", args.SubmissionID)
	return nil
}

func (c *Client) InsertJob(ctx context.Context, args ValidationArgs) (int64, error) {
	result, err := c.Insert(ctx, args, nil)
	if err != nil {
		return 0, err
	}
	return result.Job.ID, nil
}
