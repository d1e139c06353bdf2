package service

import (
	"context"
	"errors"
	"time"

	"github.com/bd2kgenomics/spinnaker/internal/events"
	"github.com/bd2kgenomics/spinnaker/internal/jobs"
	"github.com/bd2kgenomics/spinnaker/internal/service/mappers"
	"github.com/bd2kgenomics/spinnaker/internal/store"
	"github.com/bd2kgenomics/spinnaker/internal/store/model"
	"github.com/bd2kgenomics/spinnaker/internal/validation"
	"github.com/bd2kgenomics/spinnaker/pkg/metrics"
	"go.uber.org/zap"
)

// Dispatcher hands validation jobs to a runner. Enqueue must not wait for the job.
type Dispatcher interface {
	Enqueue(ctx context.Context, args jobs.ValidationArgs) error
}

type Validator interface {
	Validate(ctx context.Context, receipt *string) validation.ValidationResult
}

type EventWriter interface {
	WriteSubmissionEvent(ctx context.Context, kind string, event events.SubmissionEvent) error
}

type SubmissionFilter struct {
	Status *model.SubmissionStatus
}

type SubmissionOption func(s *SubmissionService)

// WithDispatcher sets the dispatcher of validation jobs. Without one, edits are
// recorded but never validated asynchronously.
func WithDispatcher(d Dispatcher) SubmissionOption {
	return func(s *SubmissionService) {
		s.dispatcher = d
	}
}

func WithEventWriter(w EventWriter) SubmissionOption {
	return func(s *SubmissionService) {
		s.eventWriter = w
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SubmissionOption {
	return func(s *SubmissionService) {
		s.now = now
	}
}

// SubmissionService drives the lifecycle of submissions:
//
//	new -> received (edit) -> validated | invalid
//
// An edit moves any submission back to received and enqueues a validation job.
type SubmissionService struct {
	store       store.Store
	validator   Validator
	dispatcher  Dispatcher
	eventWriter EventWriter
	now         func() time.Time
}

// Make sure we can be used by the job runners
var _ jobs.Completer = (*SubmissionService)(nil)

func NewSubmissionService(store store.Store, validator Validator, opts ...SubmissionOption) *SubmissionService {
	s := &SubmissionService{
		store:     store,
		validator: validator,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *SubmissionService) ListSubmissions(ctx context.Context, filter *SubmissionFilter) (model.SubmissionList, error) {
	storeFilter := store.NewSubmissionQueryFilter()
	if filter != nil && filter.Status != nil {
		if !filter.Status.IsValid() {
			return nil, NewErrInvalidForm("unknown status %q", filter.Status.String())
		}
		storeFilter = storeFilter.ByStatus(*filter.Status)
	}

	return s.store.Submission().List(ctx, storeFilter, store.NewSubmissionQueryOptions().WithSortOrder(store.SortByID))
}

func (s *SubmissionService) GetSubmission(ctx context.Context, id uint) (*model.Submission, error) {
	submission, err := s.store.Submission().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrSubmissionNotFound(id)
		}
		return nil, err
	}

	return submission, nil
}

func (s *SubmissionService) CreateSubmission(ctx context.Context, form mappers.SubmissionCreateForm) (model.Submission, error) {
	submission, err := s.store.Submission().Create(ctx, form.ToSubmission(s.timestamp()))
	if err != nil {
		return model.Submission{}, err
	}

	zap.S().Named("submission_service").Infow("submission created", "submission_id", submission.ID)
	s.emit(ctx, *submission, "", "")

	return *submission, nil
}

// EditSubmission resets the submission to received and enqueues its validation. The
// job is enqueued after the commit; a dispatch failure does not fail the edit.
func (s *SubmissionService) EditSubmission(ctx context.Context, id uint, form mappers.SubmissionUpdateForm) (model.Submission, error) {
	txCtx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return model.Submission{}, err
	}

	submission, err := s.store.Submission().Get(txCtx, id)
	if err != nil {
		_, _ = store.Rollback(txCtx)
		if errors.Is(err, store.ErrRecordNotFound) {
			return model.Submission{}, NewErrSubmissionNotFound(id)
		}
		return model.Submission{}, err
	}

	previous := submission.Status
	form.ApplyTo(submission, s.nextTimestamp(submission.Modified))

	updated, err := s.store.Submission().Update(txCtx, *submission)
	if err != nil {
		_, _ = store.Rollback(txCtx)
		if errors.Is(err, store.ErrRecordNotFound) {
			return model.Submission{}, NewErrSubmissionNotFound(id)
		}
		return model.Submission{}, err
	}

	if _, err := store.Commit(txCtx); err != nil {
		return model.Submission{}, err
	}

	zap.S().Named("submission_service").Infow("submission received", "submission_id", id, "previous_status", previous, "receipt", updated.ReceiptValue())
	s.emit(ctx, *updated, previous, "")
	s.dispatch(ctx, jobs.ValidationArgs{SubmissionID: updated.ID, Receipt: updated.Receipt})

	return *updated, nil
}

func (s *SubmissionService) DeleteSubmission(ctx context.Context, id uint) error {
	txCtx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return err
	}

	submission, err := s.store.Submission().Get(txCtx, id)
	if err != nil {
		_, _ = store.Rollback(txCtx)
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrSubmissionNotFound(id)
		}
		return err
	}

	if err := s.store.Submission().Delete(txCtx, id); err != nil {
		_, _ = store.Rollback(txCtx)
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrSubmissionNotFound(id)
		}
		return err
	}

	if _, err := store.Commit(txCtx); err != nil {
		return err
	}

	zap.S().Named("submission_service").Infow("submission deleted", "submission_id", id)
	if s.eventWriter != nil {
		event := mappers.SubmissionToEvent(*submission, submission.Status, "")
		event.Modified = s.timestamp()
		s.write(ctx, events.SubmissionDeletedKind, event)
	}

	return nil
}

// ValidateSubmission validates the current receipt of the submission and records the
// outcome, whatever the status of the submission. ErrValidationStale is returned when
// the receipt changed in the meantime.
func (s *SubmissionService) ValidateSubmission(ctx context.Context, id uint) (model.Submission, validation.ValidationResult, error) {
	submission, err := s.GetSubmission(ctx, id)
	if err != nil {
		return model.Submission{}, validation.ValidationResult{}, err
	}

	// remote calls are made outside of the transaction
	result := s.validator.Validate(ctx, submission.Receipt)

	cond := store.NewSubmissionQueryFilter().ByReceipt(submission.Receipt)
	updated, err := s.recordOutcome(ctx, submission, result, cond)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrRecordNotFound):
			return model.Submission{}, result, NewErrSubmissionNotFound(id)
		case errors.Is(err, store.ErrPreconditionFailed):
			return model.Submission{}, result, NewErrValidationStale(id)
		default:
			return model.Submission{}, result, err
		}
	}

	return *updated, result, nil
}

// CompleteValidation is run by the dispatcher for every job. The outcome is only
// recorded if the submission is still received with the receipt the job was enqueued
// for; otherwise the job is stale and its outcome is discarded.
func (s *SubmissionService) CompleteValidation(ctx context.Context, submissionID uint, receipt *string) error {
	logger := zap.S().Named("submission_service").With("submission_id", submissionID)

	submission, err := s.store.Submission().Get(ctx, submissionID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			logger.Infow("submission deleted before validation, discarding job")
			metrics.IncreaseValidationJobsMetric(metrics.JobStale)
			return nil
		}
		return err
	}

	if !isCurrent(submission, receipt) {
		logger.Infow("submission changed before validation, discarding job", "status", submission.Status)
		metrics.IncreaseValidationJobsMetric(metrics.JobStale)
		return nil
	}

	result := s.validator.Validate(ctx, receipt)

	cond := store.NewSubmissionQueryFilter().
		ByStatus(model.SubmissionStatusReceived).
		ByReceipt(receipt)
	if _, err := s.recordOutcome(ctx, submission, result, cond); err != nil {
		if errors.Is(err, store.ErrPreconditionFailed) || errors.Is(err, store.ErrRecordNotFound) {
			logger.Infow("submission changed during validation, discarding outcome", "validated", result.Validated)
			metrics.IncreaseValidationJobsMetric(metrics.JobStale)
			return nil
		}
		return err
	}

	metrics.IncreaseValidationJobsMetric(metrics.JobCompleted)
	return nil
}

// recordOutcome writes validated or invalid if the row still matches cond.
func (s *SubmissionService) recordOutcome(ctx context.Context, submission *model.Submission, result validation.ValidationResult, cond *store.SubmissionQueryFilter) (*model.Submission, error) {
	status := model.SubmissionStatusInvalid
	if result.Validated {
		status = model.SubmissionStatusValidated
	}

	txCtx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.Submission().UpdateStatus(txCtx, submission.ID, status, s.nextTimestamp(submission.Modified), cond)
	if err != nil {
		_, _ = store.Rollback(txCtx)
		return nil, err
	}

	if _, err := store.Commit(txCtx); err != nil {
		return nil, err
	}

	zap.S().Named("submission_service").Infow("validation recorded", "submission_id", submission.ID, "status", status, "response", result.Response)
	s.emit(ctx, *updated, submission.Status, result.Response)

	return updated, nil
}

func (s *SubmissionService) dispatch(ctx context.Context, args jobs.ValidationArgs) {
	logger := zap.S().Named("submission_service").With("submission_id", args.SubmissionID)

	if s.dispatcher == nil {
		logger.Warnw("no dispatcher configured, validation skipped")
		metrics.IncreaseValidationJobsMetric(metrics.JobSkipped)
		return
	}

	if err := s.dispatcher.Enqueue(ctx, args); err != nil {
		logger.Errorw("failed to enqueue validation job", "error", err)
		metrics.IncreaseValidationJobsMetric(metrics.JobRejected)
		return
	}

	metrics.IncreaseValidationJobsMetric(metrics.JobEnqueued)
}

func (s *SubmissionService) emit(ctx context.Context, submission model.Submission, previous model.SubmissionStatus, response string) {
	if s.eventWriter == nil {
		return
	}
	s.write(ctx, mappers.EventKind(submission.Status), mappers.SubmissionToEvent(submission, previous, response))
}

func (s *SubmissionService) write(ctx context.Context, kind string, event events.SubmissionEvent) {
	if err := s.eventWriter.WriteSubmissionEvent(ctx, kind, event); err != nil {
		zap.S().Named("submission_service").Warnw("failed to write event", "kind", kind, "submission_id", event.SubmissionID, "error", err)
	}
}

// timestamp is truncated to microseconds, the precision of the database.
func (s *SubmissionService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// nextTimestamp is always after prev so that modified strictly increases.
func (s *SubmissionService) nextTimestamp(prev time.Time) time.Time {
	now := s.timestamp()
	if !now.After(prev) {
		now = prev.UTC().Add(time.Microsecond)
	}
	return now
}

func isCurrent(submission *model.Submission, receipt *string) bool {
	if submission.Status != model.SubmissionStatusReceived {
		return false
	}
	if submission.Receipt == nil || receipt == nil {
		return submission.Receipt == nil && receipt == nil
	}
	return *submission.Receipt == *receipt
}
