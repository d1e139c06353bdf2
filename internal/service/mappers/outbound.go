package mappers

import (
	"github.com/bd2kgenomics/spinnaker/internal/events"
	"github.com/bd2kgenomics/spinnaker/internal/store/model"
)

func SubmissionToEvent(submission model.Submission, previous model.SubmissionStatus, response string) events.SubmissionEvent {
	return events.SubmissionEvent{
		SubmissionID:   submission.ID,
		Status:         submission.Status.String(),
		PreviousStatus: previous.String(),
		Receipt:        submission.Receipt,
		Modified:       submission.Modified,
		Response:       response,
	}
}

// EventKind maps the status a submission moved to onto the event kind.
func EventKind(status model.SubmissionStatus) string {
	switch status {
	case model.SubmissionStatusNew:
		return events.SubmissionCreatedKind
	case model.SubmissionStatusReceived:
		return events.SubmissionReceivedKind
	case model.SubmissionStatusValidated:
		return events.SubmissionValidatedKind
	case model.SubmissionStatusInvalid:
		return events.SubmissionInvalidKind
	default:
		return "spinnaker.events.submission." + status.String()
	}
}
