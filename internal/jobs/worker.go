package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/bd2kgenomics/spinnaker/pkg/metrics"
	"github.com/riverqueue/river"
	"go.uber.org/zap"
)

var ErrNoCompleter = errors.New("validation worker has no completer")

type ValidationWorker struct {
	river.WorkerDefaults[ValidationArgs]
	completer Completer
}

func NewValidationWorker(completer Completer) *ValidationWorker {
	return &ValidationWorker{completer: completer}
}

func (w *ValidationWorker) Timeout(job *river.Job[ValidationArgs]) time.Duration {
	return JobTimeout
}

func (w *ValidationWorker) Work(ctx context.Context, job *river.Job[ValidationArgs]) error {
	return run(ctx, w.completer, job.Args)
}

// run is shared by every dispatcher.
func run(ctx context.Context, completer Completer, args ValidationArgs) error {
	logger := zap.S().Named("validation_worker")

	if completer == nil {
		metrics.IncreaseValidationJobsMetric(metrics.JobFailed)
		return ErrNoCompleter
	}

	if err := ctx.Err(); err != nil {
		metrics.IncreaseValidationJobsMetric(metrics.JobFailed)
		return err
	}

	logger.Debugw("validation job started", "submission_id", args.SubmissionID)

	if err := completer.CompleteValidation(ctx, args.SubmissionID, args.Receipt); err != nil {
		logger.Errorw("validation job failed", "submission_id", args.SubmissionID, "error", err)
		metrics.IncreaseValidationJobsMetric(metrics.JobFailed)
		return err
	}

	return nil
}
