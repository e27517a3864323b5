// Package model contains domain models passed between layers.
package model

import "time"

// DefaultRating seeds every lazily created rating row.
const DefaultRating = 1000.0

// Item is the global rating state of one catalog entry, keyed by name.
type Item struct {
	Name   string
	Rating float64
	Count  int64 // decided pairwise comparisons the item took part in
}

// UserItemRating is one user's private rating of an item.
type UserItemRating struct {
	Username string
	Name     string
	Rating   float64
	Count    int64
}

// RankingEvent is one immutable entry of the append-only submission log.
type RankingEvent struct {
	ID       int64     `json:"id"`
	Username string    `json:"username"`
	Items    []string  `json:"items"` // best first
	RatedAt  time.Time `json:"rated_at"`
}

// Submission is a caller's best-to-worst ordering of a batch.
type Submission struct {
	Username string   `validate:"required"`
	Order    []string `validate:"unique,dive,required"`
}

// Round is one simulated ranking round played by a synthetic user.
type Round struct {
	ID       string
	Username string
	Seq      int
}
