package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bd2kgenomics/spinnaker/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrQueueFull  = errors.New("validation queue is full")
	ErrNotRunning = errors.New("validation dispatcher is not running")
)

// LocalDispatcher runs validation jobs on a pool of goroutines. Jobs are lost when
// the process stops.
type LocalDispatcher struct {
	workers int
	queue   chan ValidationArgs

	mu      sync.RWMutex
	running bool
	stop    chan struct{}
	group   *errgroup.Group
}

func NewLocalDispatcher(workers, queueSize int) *LocalDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &LocalDispatcher{
		workers: workers,
		queue:   make(chan ValidationArgs, queueSize),
	}
}

func (d *LocalDispatcher) Start(ctx context.Context, completer Completer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("validation dispatcher already started")
	}

	d.stop = make(chan struct{})
	d.group = new(errgroup.Group)
	// in-flight jobs are not cancelled with ctx; Stop waits for them
	jobCtx := context.WithoutCancel(ctx)

	for i := 0; i < d.workers; i++ {
		d.group.Go(func() error {
			d.loop(jobCtx, completer)
			return nil
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = d.Stop(context.Background())
		case <-d.stop:
		}
	}()

	d.running = true
	zap.S().Named("local_dispatcher").Infow("validation dispatcher started", "workers", d.workers, "queue_size", cap(d.queue))
	return nil
}

func (d *LocalDispatcher) loop(ctx context.Context, completer Completer) {
	for {
		select {
		case <-d.stop:
			return
		case args := <-d.queue:
			d.work(ctx, completer, args)
		}
	}
}

func (d *LocalDispatcher) work(ctx context.Context, completer Completer, args ValidationArgs) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Named("local_dispatcher").Errorw("validation job panicked", "submission_id", args.SubmissionID, "panic", r)
			metrics.IncreaseValidationJobsMetric(metrics.JobFailed)
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, JobTimeout)
	defer cancel()

	_ = run(jobCtx, completer, args)
}

// Enqueue never blocks: ErrQueueFull is returned when every slot is taken.
func (d *LocalDispatcher) Enqueue(ctx context.Context, args ValidationArgs) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.running {
		return ErrNotRunning
	}

	select {
	case d.queue <- args:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Stop stops taking jobs and waits for the running ones. Jobs still queued are dropped.
func (d *LocalDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.stop)
	group := d.group
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	dropped := 0
	for {
		select {
		case <-d.queue:
			dropped++
		default:
			zap.S().Named("local_dispatcher").Infow("validation dispatcher stopped", "dropped", dropped)
			return nil
		}
	}
}
