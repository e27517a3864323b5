package selection_test

import (
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/okian/ranker/internal/domain/model"
	"github.com/okian/ranker/internal/domain/selection"
	. "github.com/smartystreets/goconvey/convey"
)

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func rated(pairs map[string]float64) map[string]model.Item {
	m := make(map[string]model.Item, len(pairs))
	for name, r := range pairs {
		m[name] = model.Item{Name: name, Rating: r, Count: 1}
	}
	return m
}

func TestSelect(t *testing.T) {
	Convey("Given a seeded selector", t, func() {
		s := selection.New(selection.WithSeed(7))

		Convey("When the catalog is empty", func() {
			So(s.Select(nil, 4, nil), ShouldBeEmpty)
			So(s.Select([]string{}, 4, nil), ShouldBeEmpty)
		})

		Convey("When k is below one", func() {
			So(s.Select([]string{"a", "b"}, 0, nil), ShouldBeEmpty)
		})

		Convey("When the catalog has at most three items", func() {
			for _, catalog := range [][]string{{"a"}, {"a", "b"}, {"a", "b", "c"}} {
				got := s.Select(catalog, 4, nil)
				So(sorted(got), ShouldResemble, sorted(catalog))
			}
		})

		Convey("When k does not exceed the random base", func() {
			catalog := []string{"a", "b", "c", "d", "e", "f"}
			got := s.Select(catalog, 2, nil)
			So(len(got), ShouldEqual, 2)
			So(got[0], ShouldNotEqual, got[1])
		})

		Convey("When the catalog has exactly four items", func() {
			catalog := []string{"a", "b", "c", "d"}
			got := s.Select(catalog, 4, nil)

			Convey("Then every item is returned", func() {
				So(sorted(got), ShouldResemble, catalog)
			})
		})

		Convey("When nothing has been compared yet", func() {
			catalog := []string{"a", "b", "c", "d", "e", "f", "g"}
			got := s.Select(catalog, 4, map[string]model.Item{})

			Convey("Then a random fourth item fills the batch", func() {
				So(len(got), ShouldEqual, 4)
				So(len(map[string]bool{got[0]: true, got[1]: true, got[2]: true, got[3]: true}), ShouldEqual, 4)
			})
		})

		Convey("When the catalog repeats names", func() {
			got := s.Select([]string{"a", "a", "b", "b"}, 4, nil)
			So(sorted(got), ShouldResemble, []string{"a", "b"})
		})
	})

	Convey("Given many selections over a rated catalog", t, func() {
		ratings := rated(map[string]float64{
			"a": 1210, "b": 1105, "c": 1040, "d": 1001, "e": 950, "f": 880, "g": 700, "h": 1500,
		})
		catalog := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
		s := selection.New(selection.WithSeed(11))

		Convey("Then each batch has k distinct catalog items", func() {
			for i := 0; i < 200; i++ {
				got := s.Select(catalog, 4, ratings)
				So(len(got), ShouldEqual, 4)
				seen := map[string]bool{}
				for _, name := range got {
					_, ok := ratings[name]
					So(ok, ShouldBeTrue)
					So(seen[name], ShouldBeFalse)
					seen[name] = true
				}
			}
		})

		Convey("Then one item is the closest match to the other three", func() {
			for i := 0; i < 200; i++ {
				got := s.Select(catalog, 4, ratings)
				So(hasProximitySlot(got, catalog, ratings), ShouldBeTrue)
			}
		})
	})

	Convey("Given two candidates equally close to the base mean", t, func() {
		ratings := rated(map[string]float64{"x": 1010, "y": 990})
		catalog := []string{"a", "b", "c", "y", "x"}

		Convey("Then the lexicographically smaller name wins", func() {
			hits := 0
			for seed := int64(0); seed < 200; seed++ {
				got := sorted(selection.New(selection.WithSeed(seed)).Select(catalog, 4, ratings))
				So(fmt.Sprint(got), ShouldNotEqual, fmt.Sprint([]string{"a", "b", "c", "y"}))
				if fmt.Sprint(got) == fmt.Sprint([]string{"a", "b", "c", "x"}) {
					hits++
				}
			}
			So(hits, ShouldBeGreaterThan, 0)
		})
	})
}

func TestSelectConcurrent(t *testing.T) {
	Convey("Given a selector shared by goroutines", t, func() {
		s := selection.New(selection.WithSeed(3))
		catalog := []string{"a", "b", "c", "d", "e"}
		done := make(chan int, 16)

		for i := 0; i < 16; i++ {
			go func() {
				n := 0
				for j := 0; j < 50; j++ {
					n += len(s.Select(catalog, 4, nil))
				}
				done <- n
			}()
		}

		Convey("Then every batch is full", func() {
			for i := 0; i < 16; i++ {
				So(<-done, ShouldEqual, 200)
			}
		})
	})
}

// hasProximitySlot reports whether some member of batch is the rated item
// outside the rest of the batch with rating closest to the rest's mean.
func hasProximitySlot(batch, catalog []string, ratings map[string]model.Item) bool {
	for i, pick := range batch {
		avg := 0.0
		base := map[string]bool{}
		for j, name := range batch {
			if j != i {
				avg += ratings[name].Rating
				base[name] = true
			}
		}
		avg /= float64(len(batch) - 1)

		want, best := "", math.Inf(1)
		for _, name := range catalog {
			if base[name] {
				continue
			}
			d := math.Abs(ratings[name].Rating - avg)
			if d < best || (d == best && name < want) {
				want, best = name, d
			}
		}
		if want == pick {
			return true
		}
	}
	return false
}
