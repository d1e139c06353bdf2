package events

import (
	"time"
)

const (
	SubmissionCreatedKind   string = "spinnaker.events.submission.created"
	SubmissionReceivedKind  string = "spinnaker.events.submission.received"
	SubmissionValidatedKind string = "spinnaker.events.submission.validated"
	SubmissionInvalidKind   string = "spinnaker.events.submission.invalid"
	SubmissionDeletedKind   string = "spinnaker.events.submission.deleted"
)

type SubmissionEvent struct {
	SubmissionID   uint      `json:"submission_id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Receipt        *string   `json:"receipt,omitempty"`
	Modified       time.Time `json:"modified"`
	// Response is the validation message, set on validated and invalid events.
	Response string `json:"response,omitempty"`
}
