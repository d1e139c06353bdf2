package store

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("already exists")
	// ErrPreconditionFailed is returned by conditional updates when the row no longer
	// matches the expected state.
	ErrPreconditionFailed = errors.New("row does not match the expected state")
)
