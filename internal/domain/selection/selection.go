// Package selection picks the items offered in a user's next ranking round.
//
// A batch mixes exploration and exploitation: up to three items are drawn
// uniformly at random, then one more is chosen among already compared items
// whose global rating is closest to the mean of the random draw. This is a
// heuristic, not an optimal matchmaking algorithm.
package selection

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/ranker/internal/domain/model"
)

const defaultBaseSize = 3

// Option applies a configuration option to a Selector.
type Option func(*Selector)

// WithSeed makes selection reproducible.
func WithSeed(seed int64) Option {
	return func(s *Selector) {
		s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // selection is not security sensitive
	}
}

// WithRand injects a random source. The Selector serialises access to it.
func WithRand(rng *rand.Rand) Option {
	return func(s *Selector) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithBaseSize sets how many items are drawn at random before the
// proximity slot is filled.
func WithBaseSize(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.baseSize = n
		}
	}
}

// Selector builds batches. It is safe for concurrent use.
type Selector struct {
	mu       sync.Mutex
	rng      *rand.Rand
	baseSize int
}

// New creates a Selector seeded from the clock unless overridden.
func New(opts ...Option) *Selector {
	s := &Selector{
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // selection is not security sensitive
		baseSize: defaultBaseSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns up to k distinct names from catalog. ratings holds the
// known global state; catalog entries absent from it count as unrated at
// model.DefaultRating. The result is empty when the catalog is empty or k < 1.
func (s *Selector) Select(catalog []string, k int, ratings map[string]model.Item) []string {
	names := distinct(catalog)
	if len(names) == 0 || k < 1 {
		return []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := min(s.baseSize, len(names))
	perm := s.rng.Perm(len(names))
	base := make([]string, 0, m+1)
	inBase := make(map[string]struct{}, m)
	for _, idx := range perm[:m] {
		base = append(base, names[idx])
		inBase[names[idx]] = struct{}{}
	}

	if len(names) <= s.baseSize || k <= m {
		s.shuffle(base)
		return base[:min(k, m)]
	}

	avg := 0.0
	for _, name := range base {
		avg += ratingOf(ratings, name)
	}
	avg /= float64(len(base))

	if pick, ok := closest(names, inBase, ratings, avg); ok {
		base = append(base, pick)
	} else {
		rest := make([]string, 0, len(names)-m)
		for _, idx := range perm[m:] {
			rest = append(rest, names[idx])
		}
		if len(rest) > 0 {
			base = append(base, rest[s.rng.Intn(len(rest))])
		}
	}

	s.shuffle(base)
	return base[:min(k, len(base))]
}

// closest finds the compared catalog item outside the base whose rating is
// nearest to avg. Ties go to the lexicographically smallest name.
func closest(names []string, inBase map[string]struct{}, ratings map[string]model.Item, avg float64) (string, bool) {
	best, bestDist, found := "", math.Inf(1), false
	for _, name := range names {
		if _, skip := inBase[name]; skip {
			continue
		}
		it, ok := ratings[name]
		if !ok || it.Count <= 0 {
			continue
		}
		d := math.Abs(it.Rating - avg)
		if !found || d < bestDist || (d == bestDist && name < best) {
			best, bestDist, found = name, d, true
		}
	}
	return best, found
}

func (s *Selector) shuffle(names []string) {
	s.rng.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
}

func ratingOf(ratings map[string]model.Item, name string) float64 {
	if it, ok := ratings[name]; ok {
		return it.Rating
	}
	return model.DefaultRating
}

func distinct(catalog []string) []string {
	seen := make(map[string]struct{}, len(catalog))
	out := make([]string, 0, len(catalog))
	for _, name := range catalog {
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
