// Package pairwise expands a best-to-worst ordering into decided pairs and
// applies them to a rating ledger.
package pairwise

import (
	"github.com/okian/ranker/internal/domain/elo"
	"github.com/okian/ranker/internal/domain/model"
)

// Pair is one decided comparison: Winner was ranked above Loser.
type Pair struct {
	Winner string
	Loser  string
}

// Standing is the mutable rating state of one item inside a ledger.
type Standing struct {
	Rating float64
	Count  int64
}

// Outcome records the effect of applying one pair.
type Outcome struct {
	Pair
	Delta        float64
	WinnerBefore float64
	LoserBefore  float64
	WinnerAfter  float64
	LoserAfter   float64
}

// Ledger maps item names to their standings.
type Ledger map[string]*Standing

// Pairs returns every (i<j) pair of order in canonical nested-loop order.
// An order of n items yields n*(n-1)/2 pairs.
func Pairs(order []string) []Pair {
	n := len(order)
	if n < 2 {
		return nil
	}
	pairs := make([]Pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, Pair{Winner: order[i], Loser: order[j]})
		}
	}
	return pairs
}

// Apply plays every pair of order against ledger sequentially, each pair
// seeing the ratings left by the previous one. Items missing from ledger
// start at model.DefaultRating. Each item's count grows by len(order)-1.
func Apply(order []string, ledger Ledger, r *elo.Rater) []Outcome {
	pairs := Pairs(order)
	if len(pairs) == 0 {
		return nil
	}
	for _, name := range order {
		if _, ok := ledger[name]; !ok {
			ledger[name] = &Standing{Rating: model.DefaultRating}
		}
	}

	outcomes := make([]Outcome, 0, len(pairs))
	for _, p := range pairs {
		w, l := ledger[p.Winner], ledger[p.Loser]
		o := Outcome{Pair: p, WinnerBefore: w.Rating, LoserBefore: l.Rating}
		w.Rating, l.Rating, o.Delta = r.Update(w.Rating, l.Rating)
		w.Count++
		l.Count++
		o.WinnerAfter, o.LoserAfter = w.Rating, l.Rating
		outcomes = append(outcomes, o)
	}
	return outcomes
}
