package jobs

import (
	"context"
	"time"

	"github.com/riverqueue/river"
)

const (
	DefaultQueue   = "validation"
	MaxJobAttempts = 1
	JobTimeout     = 5 * time.Minute
	JobKind        = "submission_validation"
)

// ValidationArgs is the payload of a validation job. Receipt is the receipt the job was
// enqueued for; the outcome is only recorded if the submission still carries it.
type ValidationArgs struct {
	SubmissionID uint    `json:"submission_id"`
	Receipt      *string `json:"receipt"`
}

func (ValidationArgs) Kind() string {
	return JobKind
}

func (ValidationArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       DefaultQueue,
		MaxAttempts: MaxJobAttempts,
	}
}

// Completer runs the validation of a submission and records its outcome.
type Completer interface {
	CompleteValidation(ctx context.Context, submissionID uint, receipt *string) error
}
