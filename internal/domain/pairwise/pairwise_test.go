package pairwise_test

import (
	"testing"

	"github.com/okian/ranker/internal/domain/elo"
	"github.com/okian/ranker/internal/domain/pairwise"
	. "github.com/smartystreets/goconvey/convey"
)

func freshLedger(names ...string) pairwise.Ledger {
	l := pairwise.Ledger{}
	for _, n := range names {
		l[n] = &pairwise.Standing{Rating: 1000}
	}
	return l
}

func TestPairs(t *testing.T) {
	Convey("Given an ordering", t, func() {
		Convey("When it has three items", func() {
			pairs := pairwise.Pairs([]string{"a", "b", "c"})

			Convey("Then pairs come in canonical order", func() {
				So(pairs, ShouldResemble, []pairwise.Pair{
					{Winner: "a", Loser: "b"},
					{Winner: "a", Loser: "c"},
					{Winner: "b", Loser: "c"},
				})
			})
		})

		Convey("When it has n items", func() {
			order := []string{"1", "2", "3", "4", "5", "6"}
			So(len(pairwise.Pairs(order)), ShouldEqual, 15)
		})

		Convey("When it has fewer than two items", func() {
			So(pairwise.Pairs(nil), ShouldBeEmpty)
			So(pairwise.Pairs([]string{"only"}), ShouldBeEmpty)
		})
	})
}

func TestApply(t *testing.T) {
	r := elo.Default()

	Convey("Given three fresh items", t, func() {
		Convey("When X > Y > Z is applied", func() {
			ledger := freshLedger("X", "Y", "Z")
			out := pairwise.Apply([]string{"X", "Y", "Z"}, ledger, r)

			Convey("Then ratings match the sequential update", func() {
				So(len(out), ShouldEqual, 3)
				So(ledger["X"].Rating, ShouldAlmostEqual, 1031.263693206478, 1e-9)
				So(ledger["Y"].Rating, ShouldAlmostEqual, 1000.0339081301692, 1e-9)
				So(ledger["Z"].Rating, ShouldAlmostEqual, 968.7023986633528, 1e-9)
			})

			Convey("Then each item took part in n-1 comparisons", func() {
				for _, n := range []string{"X", "Y", "Z"} {
					So(ledger[n].Count, ShouldEqual, 2)
				}
			})

			Convey("Then the sum of ratings is preserved", func() {
				sum := ledger["X"].Rating + ledger["Y"].Rating + ledger["Z"].Rating
				So(sum, ShouldAlmostEqual, 3000.0, 1e-9)
			})

			Convey("Then every outcome is zero-sum", func() {
				for _, o := range out {
					So(o.WinnerAfter-o.WinnerBefore, ShouldAlmostEqual, o.Delta, 1e-9)
					So(o.LoserBefore-o.LoserAfter, ShouldAlmostEqual, o.Delta, 1e-9)
				}
			})
		})

		Convey("When pairs are applied in reverse order", func() {
			ledger := freshLedger("X", "Y", "Z")
			for _, p := range []pairwise.Pair{{"Y", "Z"}, {"X", "Z"}, {"X", "Y"}} {
				w, l := ledger[p.Winner], ledger[p.Loser]
				w.Rating, l.Rating, _ = r.Update(w.Rating, l.Rating)
			}

			Convey("Then the result differs from canonical order", func() {
				So(ledger["X"].Rating, ShouldAlmostEqual, 1031.2976013366472, 1e-9)
				So(ledger["Y"].Rating, ShouldAlmostEqual, 999.9660918698308, 1e-9)
				So(ledger["Z"].Rating, ShouldAlmostEqual, 968.736306793522, 1e-9)
			})
		})

		Convey("When an item is missing from the ledger", func() {
			ledger := pairwise.Ledger{}
			pairwise.Apply([]string{"new", "other"}, ledger, r)

			Convey("Then it starts at the default rating", func() {
				So(ledger["new"].Rating, ShouldEqual, 1016.0)
				So(ledger["other"].Rating, ShouldEqual, 984.0)
			})
		})

		Convey("When a single item is applied", func() {
			ledger := freshLedger("X")
			out := pairwise.Apply([]string{"X"}, ledger, r)

			Convey("Then nothing changes", func() {
				So(out, ShouldBeEmpty)
				So(ledger["X"].Rating, ShouldEqual, 1000.0)
				So(ledger["X"].Count, ShouldEqual, 0)
			})
		})
	})
}
