package v1alpha1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
)

// SubmissionStatus is the lifecycle state of a submission.
type SubmissionStatus string

const (
	SubmissionStatusNew       SubmissionStatus = "new"
	SubmissionStatusReceived  SubmissionStatus = "received"
	SubmissionStatusValidated SubmissionStatus = "validated"
	SubmissionStatusInvalid   SubmissionStatus = "invalid"
	SubmissionStatusSigned    SubmissionStatus = "signed"
)

type Submission struct {
	Id       uint             `json:"id"`
	Status   SubmissionStatus `json:"status"`
	Created  time.Time        `json:"created"`
	Modified time.Time        `json:"modified"`
	Receipt  *string          `json:"receipt"`
}

// SubmissionCreate is the body of POST /submissions. Status cannot be set.
type SubmissionCreate struct {
	Receipt *string `json:"receipt,omitempty" validate:"omitnil,receipt"`
}

// SubmissionUpdate is the body of PUT /submissions/{id}. An absent receipt keeps the
// stored one, an explicit null clears it.
type SubmissionUpdate struct {
	Receipt *string `json:"receipt,omitempty" validate:"omitnil,receipt"`

	ClearReceipt bool `json:"-"`
}

func (s *SubmissionUpdate) UnmarshalJSON(data []byte) error {
	type fields SubmissionUpdate

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	var form fields
	if err := decoder.Decode(&form); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, value := range raw {
		if strings.EqualFold(key, "receipt") && bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			form.ClearReceipt = true
		}
	}

	*s = SubmissionUpdate(form)
	return nil
}

type SubmissionReply struct {
	Submission Submission `json:"submission"`

	status int
}

func NewSubmissionReply(s Submission, status int) *SubmissionReply {
	return &SubmissionReply{Submission: s, status: status}
}

func (s *SubmissionReply) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, s.status)
	return nil
}

type SubmissionListReply struct {
	Submissions []Submission `json:"submissions"`
}

func (s SubmissionListReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type MessageReply struct {
	Message string `json:"message"`
}

func (m MessageReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type ValidationReply struct {
	Message   string `json:"message"`
	Validated bool   `json:"validated"`
}

func (v ValidationReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// Error is the body of every error reply.
type Error struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`

	status int
}

func NewError(status int, message, requestID string) *Error {
	return &Error{Message: message, RequestID: requestID, status: status}
}

func (e *Error) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.status)
	return nil
}

type HealthReply struct {
	Status string `json:"status"`
}

func (h HealthReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}
