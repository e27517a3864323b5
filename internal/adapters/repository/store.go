// Package repository defines the rating store contract and its backends.
package repository

import (
	"context"

	"github.com/okian/ranker/internal/domain/model"
)

// Reader exposes the read paths over rating state. Reads may run
// concurrently with each other and with updates; they never observe a
// partially applied update.
type Reader interface {
	// ListItems returns every item ordered by rating desc, then name asc.
	ListItems(ctx context.Context) ([]model.Item, error)

	// ListUserRatings returns the user's rows ordered by rating desc, then name asc.
	ListUserRatings(ctx context.Context, username string) ([]model.UserItemRating, error)

	// TopItems returns the first n items of ListItems.
	// Returns ErrInvalidLimit when n < 1.
	TopItems(ctx context.Context, n int) ([]model.Item, error)

	// EventCount returns the number of logged ranking events.
	EventCount(ctx context.Context) (int64, error)

	// EventCountsByUser returns the number of logged events per username.
	EventCountsByUser(ctx context.Context) (map[string]int64, error)

	// Events returns the event log in id order.
	Events(ctx context.Context) ([]model.RankingEvent, error)
}

// Tx is the write surface available inside one Update call.
type Tx interface {
	// GetOrCreateItem returns the item, creating it at the initial rating.
	GetOrCreateItem(ctx context.Context, name string) (model.Item, error)

	// GetOrCreateUserRating returns the user's row for an item, creating it
	// at the initial rating.
	GetOrCreateUserRating(ctx context.Context, username, name string) (model.UserItemRating, error)

	// SetItemRating overwrites an existing item. Returns ErrNotFound if absent.
	SetItemRating(ctx context.Context, name string, rating float64, count int64) error

	// SetUserRating overwrites an existing user row. Returns ErrNotFound if absent.
	SetUserRating(ctx context.Context, username, name string, rating float64, count int64) error

	// AppendEvent logs a ranking event and returns it with its assigned id.
	AppendEvent(ctx context.Context, ev model.RankingEvent) (model.RankingEvent, error)
}

// Store provides read/write access to rating state.
type Store interface {
	Reader

	// EnsureItems creates missing items at the initial rating and leaves
	// existing ones untouched.
	EnsureItems(ctx context.Context, names []string) error

	// Update runs fn as one atomic unit. Either every write made through
	// the Tx becomes visible or none does. Updates are serialised against
	// each other.
	Update(ctx context.Context, fn func(Tx) error) error

	// Count returns the number of items tracked.
	Count(ctx context.Context) int

	// Close releases resources. Calls after Close return ErrClosed.
	Close() error
}
