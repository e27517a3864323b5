// Package types contains the read shapes returned by engine queries.
package types

// Entry is a leaderboard row.
type Entry struct {
	Rank   int     `json:"rank,omitempty"`
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
	Count  int64   `json:"count"`
}

// UserEntry pairs a user's rating of an item with the item's global rating.
// GlobalRating is nil when the global row is unavailable.
type UserEntry struct {
	Name         string   `json:"name"`
	UserRating   float64  `json:"user_rating"`
	GlobalRating *float64 `json:"global_rating"`
	UserCount    int64    `json:"user_count"`
	GlobalCount  int64    `json:"global_count"`
}

// OverlayEntry is a global row annotated with the caller's own rating.
// UserRating is nil when the user never rated the item.
type OverlayEntry struct {
	Name         string   `json:"name"`
	GlobalRating float64  `json:"global_rating"`
	UserRating   *float64 `json:"user_rating"`
	GlobalCount  int64    `json:"global_count"`
	UserCount    int64    `json:"user_count"`
}

// HighLow holds the highest and lowest rows of a ranking.
type HighLow[T any] struct {
	Highest []T `json:"highest"`
	Lowest  []T `json:"lowest"`
}

// GroupStats summarises the items sharing one normalized name.
type GroupStats struct {
	Name             string  `json:"name"`
	ItemCount        int     `json:"item_count"`
	TotalComparisons int64   `json:"total_comparisons"`
	Min              float64 `json:"min"`
	Max              float64 `json:"max"`
	Mean             float64 `json:"mean"`
	StdDev           float64 `json:"stddev"`
}

// NameCount counts catalog entries per normalized name.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CatalogSummary describes the current catalog.
type CatalogSummary struct {
	Total  int         `json:"total"`
	Groups []NameCount `json:"groups"`
}

// Summary reports store-wide activity totals.
type Summary struct {
	Items        int              `json:"items"`
	Events       int64            `json:"events"`
	EventsByUser map[string]int64 `json:"events_by_user"`
}

// Overview is everything a statistics page shows for one user.
type Overview struct {
	Global      HighLow[OverlayEntry] `json:"global"`
	User        HighLow[UserEntry]    `json:"user"`
	Leaderboard []Entry               `json:"leaderboard"`
	Groups      []GroupStats          `json:"groups"`
	Catalog     CatalogSummary        `json:"catalog"`
	Summary     Summary               `json:"summary"`
}
