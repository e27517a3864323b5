package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrInvalidSubmission   = errors.New("invalid submission")
	ErrDuplicateItem       = errors.New("item ranked more than once")
	ErrDuplicateSubmission = errors.New("submission already applied")
	ErrNotStarted          = errors.New("service not started")
)
