package client

import (
	"fmt"
)

// RemoteReason tells apart the ways the storage server can fail us.
type RemoteReason int

const (
	// RemoteReasonTransport means the request could not be built or sent, or the reply
	// could not be read as JSON.
	RemoteReasonTransport RemoteReason = iota
	// RemoteReasonShape means the reply was JSON but did not carry a signed URL.
	RemoteReasonShape
)

func (r RemoteReason) String() string {
	switch r {
	case RemoteReasonTransport:
		return "transport"
	case RemoteReasonShape:
		return "shape"
	default:
		return "unknown"
	}
}

// ErrRemoteService is returned when the storage server could not be reached or
// replied with something unusable.
type ErrRemoteService struct {
	Reason   RemoteReason
	ObjectID string
	// Payload holds the raw reply for shape failures.
	Payload []byte
	error
}

func NewErrRemoteTransport(objectID string, cause error) *ErrRemoteService {
	return &ErrRemoteService{
		Reason:   RemoteReasonTransport,
		ObjectID: objectID,
		error:    fmt.Errorf("storage server unreachable for object %s: %w", objectID, cause),
	}
}

func NewErrRemoteShape(objectID string, payload []byte) *ErrRemoteService {
	return &ErrRemoteService{
		Reason:   RemoteReasonShape,
		ObjectID: objectID,
		Payload:  payload,
		error:    fmt.Errorf("storage server returned no signed url for object %s: %s", objectID, truncate(payload)),
	}
}

func (e *ErrRemoteService) Unwrap() error {
	return e.error
}

// ErrDecode is returned when a downloaded object is not valid JSON.
type ErrDecode struct {
	ObjectID string
	error
}

func NewErrDecode(objectID string, cause error) *ErrDecode {
	return &ErrDecode{
		ObjectID: objectID,
		error:    fmt.Errorf("object %s is not valid json: %w", objectID, cause),
	}
}

func (e *ErrDecode) Unwrap() error {
	return e.error
}

const maxPayloadInMessage = 256

func truncate(payload []byte) string {
	if len(payload) > maxPayloadInMessage {
		return string(payload[:maxPayloadInMessage]) + "..."
	}
	return string(payload)
}
