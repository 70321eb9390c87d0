package domain

import "errors"

var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrExternalService = errors.New("external service failure")
	ErrJobFailed       = errors.New("job failed")
)
