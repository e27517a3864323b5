package elo

import "errors"

// ErrInvalidKFactor is returned when a rater is built with a non-positive K.
var ErrInvalidKFactor = errors.New("k-factor must be positive")
