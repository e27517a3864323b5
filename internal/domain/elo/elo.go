// Package elo implements the two-player Elo rating update.
package elo

import (
	"fmt"
	"math"
)

// Default rating configuration constants.
const (
	DefaultKFactor = 32.0
	DefaultScale   = 400.0
	logisticBase   = 10.0
)

// Option applies a configuration option to a Rater.
type Option func(*Rater)

// WithKFactor sets the maximum rating change per comparison.
func WithKFactor(k float64) Option {
	return func(r *Rater) {
		r.k = k
	}
}

// WithScale sets the rating difference that corresponds to 10:1 odds.
func WithScale(scale float64) Option {
	return func(r *Rater) {
		if scale > 0 {
			r.scale = scale
		}
	}
}

// Rater computes expected scores and rating updates. It is stateless and
// safe for concurrent use.
type Rater struct {
	k     float64
	scale float64
}

// New creates a Rater with K=32 and scale 400 unless overridden.
func New(opts ...Option) (*Rater, error) {
	r := &Rater{
		k:     DefaultKFactor,
		scale: DefaultScale,
	}
	for _, opt := range opts {
		opt(r)
	}
	if !(r.k > 0) || math.IsInf(r.k, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKFactor, r.k)
	}
	return r, nil
}

// Default returns a Rater with the standard configuration.
func Default() *Rater {
	return &Rater{k: DefaultKFactor, scale: DefaultScale}
}

// K returns the configured K-factor.
func (r *Rater) K() float64 { return r.k }

// Expected returns the probability that a player rated ra beats one rated rb.
func (r *Rater) Expected(ra, rb float64) float64 {
	return 1 / (1 + math.Pow(logisticBase, (rb-ra)/r.scale))
}

// Update applies one decided comparison and returns the new winner and
// loser ratings along with the points transferred. The loser loses exactly
// what the winner gains.
func (r *Rater) Update(winner, loser float64) (newWinner, newLoser, delta float64) {
	delta = r.k * (1 - r.Expected(winner, loser))
	return winner + delta, loser - delta, delta
}
