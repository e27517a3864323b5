// Package aggregate computes read-only views over rating snapshots:
// top and bottom lists, leaderboards and normalized-name group statistics.
// Every function is pure and deterministic for a given input.
package aggregate

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/okian/ranker/internal/domain/model"
	"github.com/okian/ranker/internal/domain/types"
)

// Default result sizes.
const (
	DefaultStatsLimit       = 5
	DefaultLeaderboardLimit = 20
)

// byRating orders rows by rating descending, then name ascending.
func byRating(ra, rb float64, na, nb string) int {
	if c := cmp.Compare(rb, ra); c != 0 {
		return c
	}
	return strings.Compare(na, nb)
}

// SortItems orders items by global rating descending, then name ascending.
func SortItems(items []model.Item) []model.Item {
	out := slices.Clone(items)
	slices.SortFunc(out, func(a, b model.Item) int { return byRating(a.Rating, b.Rating, a.Name, b.Name) })
	return out
}

func sortUserRows(rows []model.UserItemRating) []model.UserItemRating {
	out := slices.Clone(rows)
	slices.SortFunc(out, func(a, b model.UserItemRating) int { return byRating(a.Rating, b.Rating, a.Name, b.Name) })
	return out
}

// split returns the first limit rows and the last limit rows, the latter
// reversed so the lowest row comes first.
func split[T any](sorted []T, limit int) types.HighLow[T] {
	n := min(limit, len(sorted))
	high := slices.Clone(sorted[:n])
	low := slices.Clone(sorted[len(sorted)-n:])
	slices.Reverse(low)
	return types.HighLow[T]{Highest: high, Lowest: low}
}

func statsLimit(limit int) int {
	if limit < 1 {
		return DefaultStatsLimit
	}
	return limit
}

func toEntry(it model.Item) types.Entry {
	return types.Entry{Name: it.Name, Rating: it.Rating, Count: it.Count}
}

// TopAndBottom returns the highest and lowest rated items.
func TopAndBottom(items []model.Item, limit int) types.HighLow[types.Entry] {
	sorted := SortItems(items)
	entries := make([]types.Entry, len(sorted))
	for i, it := range sorted {
		entries[i] = toEntry(it)
	}
	return split(entries, statsLimit(limit))
}

// UserTopAndBottom ranks a user's own ratings and annotates each row with
// the global rating of the item when global holds it.
func UserTopAndBottom(rows []model.UserItemRating, global map[string]model.Item, limit int) types.HighLow[types.UserEntry] {
	sorted := sortUserRows(rows)
	entries := make([]types.UserEntry, len(sorted))
	for i, r := range sorted {
		e := types.UserEntry{Name: r.Name, UserRating: r.Rating, UserCount: r.Count}
		if g, ok := global[r.Name]; ok {
			rating := g.Rating
			e.GlobalRating = &rating
			e.GlobalCount = g.Count
		}
		entries[i] = e
	}
	return split(entries, statsLimit(limit))
}

// Overlay returns the global highest and lowest items annotated with the
// user's own rating, left nil for items the user never rated.
func Overlay(items []model.Item, rows []model.UserItemRating, limit int) types.HighLow[types.OverlayEntry] {
	mine := make(map[string]model.UserItemRating, len(rows))
	for _, r := range rows {
		mine[r.Name] = r
	}
	sorted := SortItems(items)
	entries := make([]types.OverlayEntry, len(sorted))
	for i, it := range sorted {
		e := types.OverlayEntry{Name: it.Name, GlobalRating: it.Rating, GlobalCount: it.Count}
		if r, ok := mine[it.Name]; ok {
			rating := r.Rating
			e.UserRating = &rating
			e.UserCount = r.Count
		}
		entries[i] = e
	}
	return split(entries, statsLimit(limit))
}

// Leaderboard returns up to limit items in rank order, numbered from 1.
func Leaderboard(items []model.Item, limit int) []types.Entry {
	if limit < 1 {
		limit = DefaultLeaderboardLimit
	}
	sorted := SortItems(items)
	n := min(limit, len(sorted))
	out := make([]types.Entry, n)
	for i := range n {
		out[i] = toEntry(sorted[i])
		out[i].Rank = i + 1
	}
	return out
}

// NormalizeName collapses numbered variants of one subject into a single
// key: the extension is dropped, letters are lowercased, underscores and
// digits are removed. "cat_1.jpg" and "Cat2.png" both become "cat".
func NormalizeName(name string) string {
	stem := name
	// A leading dot starts the stem, not an extension: ".hidden" stays whole.
	if i := strings.LastIndexByte(name, '.'); i > 0 && strings.TrimLeft(name[:i], ".") != "" {
		stem = name[:i]
	}
	var b strings.Builder
	b.Grow(len(stem))
	for _, r := range strings.ToLower(stem) {
		if r == '_' || unicode.IsDigit(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Grouped aggregates items by normalized name. Groups are ordered by mean
// rating descending, then name ascending. StdDev is the population form.
func Grouped(items []model.Item) []types.GroupStats {
	groups := make(map[string][]model.Item)
	for _, it := range items {
		key := NormalizeName(it.Name)
		groups[key] = append(groups[key], it)
	}

	out := make([]types.GroupStats, 0, len(groups))
	for key, members := range groups {
		g := types.GroupStats{
			Name:      key,
			ItemCount: len(members),
			Min:       math.Inf(1),
			Max:       math.Inf(-1),
		}
		sum := 0.0
		for _, it := range members {
			g.TotalComparisons += it.Count
			g.Min = math.Min(g.Min, it.Rating)
			g.Max = math.Max(g.Max, it.Rating)
			sum += it.Rating
		}
		n := float64(len(members))
		g.Mean = sum / n
		variance := 0.0
		for _, it := range members {
			d := it.Rating - g.Mean
			variance += d * d
		}
		g.StdDev = math.Sqrt(variance / n)
		out = append(out, g)
	}

	slices.SortFunc(out, func(a, b types.GroupStats) int { return byRating(a.Mean, b.Mean, a.Name, b.Name) })
	return out
}

// CatalogSummary counts catalog names per normalized key, largest groups
// first and ties by name.
func CatalogSummary(names []string) types.CatalogSummary {
	counts := make(map[string]int)
	for _, n := range names {
		counts[NormalizeName(n)]++
	}
	groups := make([]types.NameCount, 0, len(counts))
	for name, c := range counts {
		groups = append(groups, types.NameCount{Name: name, Count: c})
	}
	slices.SortFunc(groups, func(a, b types.NameCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return types.CatalogSummary{Total: len(names), Groups: groups}
}
