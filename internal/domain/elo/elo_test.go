package elo_test

import (
	"errors"
	"testing"

	"github.com/okian/ranker/internal/domain/elo"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRater(t *testing.T) {
	Convey("Given a default rater", t, func() {
		r := elo.Default()

		Convey("Then K should be 32", func() {
			So(r.K(), ShouldEqual, 32.0)
		})

		Convey("When both players have the same rating", func() {
			So(r.Expected(1000, 1000), ShouldEqual, 0.5)

			w, l, d := r.Update(1000, 1000)

			Convey("Then the winner gains half of K", func() {
				So(d, ShouldEqual, 16.0)
				So(w, ShouldEqual, 1016.0)
				So(l, ShouldEqual, 984.0)
			})
		})

		Convey("When a 1200 player beats a 1000 player", func() {
			w, l, _ := r.Update(1200, 1000)

			Convey("Then the favourite gains less than half of K", func() {
				So(w, ShouldAlmostEqual, 1207.6880983472654, 1e-9)
				So(l, ShouldAlmostEqual, 992.3119016527346, 1e-9)
			})
		})

		Convey("When an upset happens", func() {
			w, l, d := r.Update(1000, 1200)

			Convey("Then the underdog gains more than half of K", func() {
				So(d, ShouldBeGreaterThan, 16.0)
				So(w, ShouldAlmostEqual, 1024.311901652735, 1e-9)
				So(l, ShouldAlmostEqual, 1175.688098347265, 1e-9)
			})
		})

		Convey("Then every update is zero-sum", func() {
			for _, p := range [][2]float64{{1000, 1000}, {1500, 900}, {812.5, 1433.25}, {0, 3000}} {
				w, l, _ := r.Update(p[0], p[1])
				So(w+l, ShouldAlmostEqual, p[0]+p[1], 1e-9)
			}
		})

		Convey("Then expectations of both sides sum to one", func() {
			So(r.Expected(1100, 950)+r.Expected(950, 1100), ShouldAlmostEqual, 1.0, 1e-12)
		})
	})

	Convey("Given custom options", t, func() {
		Convey("When K is positive", func() {
			r, err := elo.New(elo.WithKFactor(16))
			So(err, ShouldBeNil)
			_, _, d := r.Update(1000, 1000)
			So(d, ShouldEqual, 8.0)
		})

		Convey("When K is zero or negative", func() {
			_, err := elo.New(elo.WithKFactor(0))
			So(errors.Is(err, elo.ErrInvalidKFactor), ShouldBeTrue)

			_, err = elo.New(elo.WithKFactor(-4))
			So(errors.Is(err, elo.ErrInvalidKFactor), ShouldBeTrue)
		})
	})
}
