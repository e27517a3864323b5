package repository

import (
	"github.com/okian/ranker/internal/domain/model"
	"github.com/okian/ranker/pkg/logger"
)

type options struct {
	initialRating float64
	seed          int64
	log           logger.Logger
}

func defaultOptions() options {
	return options{initialRating: model.DefaultRating, seed: 1}
}

// Option configures a store.
type Option func(*options)

// WithInitialRating sets the rating of lazily created rows.
func WithInitialRating(r float64) Option {
	return func(o *options) {
		o.initialRating = r
	}
}

// WithSeed seeds the treap priority generator of the memory store.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithLogger sets the logger used by the store.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}
