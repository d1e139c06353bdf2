package model

import (
	"encoding/json"
	"time"
)

type SubmissionStatus string

const (
	SubmissionStatusNew       SubmissionStatus = "new"
	SubmissionStatusReceived  SubmissionStatus = "received"
	SubmissionStatusValidated SubmissionStatus = "validated"
	SubmissionStatusInvalid   SubmissionStatus = "invalid"
	SubmissionStatusSigned    SubmissionStatus = "signed"
)

var SubmissionStatuses = []SubmissionStatus{
	SubmissionStatusNew,
	SubmissionStatusReceived,
	SubmissionStatusValidated,
	SubmissionStatusInvalid,
	SubmissionStatusSigned,
}

func (s SubmissionStatus) IsValid() bool {
	for _, status := range SubmissionStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s SubmissionStatus) String() string {
	return string(s)
}

type Submission struct {
	ID       uint             `gorm:"primaryKey;autoIncrement"`
	Status   SubmissionStatus `gorm:"type:VARCHAR(16);not null;default:'new';index:submissions_status_idx;check:chk_submissions_status,status IN ('new','received','validated','invalid','signed')"`
	Created  time.Time        `gorm:"not null"`
	Modified time.Time        `gorm:"not null"`
	Receipt  *string          `gorm:"type:TEXT"`
}

type SubmissionList []Submission

func (s Submission) String() string {
	val, _ := json.Marshal(s)
	return string(val)
}

// ReceiptValue returns the receipt or an empty string when none was attached.
func (s Submission) ReceiptValue() string {
	if s.Receipt == nil {
		return ""
	}
	return *s.Receipt
}
