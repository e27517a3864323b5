package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("rating row not found")
	ErrInvalidLimit  = errors.New("invalid limit")
	ErrClosed        = errors.New("store closed")
	ErrUnknownDriver = errors.New("unknown store driver")
)
