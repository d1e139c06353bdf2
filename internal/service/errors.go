package service

import (
	"fmt"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id uint, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %d not found", resourceType, id)}
}

func NewErrSubmissionNotFound(id uint) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "submission")
}

type ErrInvalidForm struct {
	error
}

func NewErrInvalidForm(format string, args ...any) *ErrInvalidForm {
	return &ErrInvalidForm{fmt.Errorf(format, args...)}
}

// ErrValidationStale is returned when the receipt of a submission changed while the
// submission was being validated. The outcome was not recorded.
type ErrValidationStale struct {
	error
}

func NewErrValidationStale(id uint) *ErrValidationStale {
	return &ErrValidationStale{fmt.Errorf("submission %d was edited while being validated", id)}
}
