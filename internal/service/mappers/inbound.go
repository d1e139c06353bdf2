package mappers

import (
	"time"

	"github.com/bd2kgenomics/spinnaker/internal/store/model"
)

// SubmissionCreateForm holds the fields a submission can be created with. The status
// is always new.
type SubmissionCreateForm struct {
	Receipt *string
}

func (f SubmissionCreateForm) ToSubmission(now time.Time) model.Submission {
	return model.Submission{
		Status:   model.SubmissionStatusNew,
		Created:  now,
		Modified: now,
		Receipt:  f.Receipt,
	}
}

// SubmissionUpdateForm holds the fields of an edit. A nil receipt keeps the stored one
// unless ClearReceipt is set.
type SubmissionUpdateForm struct {
	Receipt      *string
	ClearReceipt bool
}

func (f SubmissionUpdateForm) ApplyTo(submission *model.Submission, now time.Time) {
	switch {
	case f.Receipt != nil:
		submission.Receipt = f.Receipt
	case f.ClearReceipt:
		submission.Receipt = nil
	}
	submission.Status = model.SubmissionStatusReceived
	submission.Modified = now
}
