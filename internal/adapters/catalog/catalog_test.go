package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/ranker/internal/adapters/catalog"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDir(t *testing.T) {
	Convey("Given a media directory", t, func() {
		dir := t.TempDir()
		for _, name := range []string{"dog.jpg", "cat_1.jpg", "cat2.png"} {
			So(os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600), ShouldBeNil)
		}
		So(os.Mkdir(filepath.Join(dir, "thumbs"), 0o700), ShouldBeNil)
		So(os.Symlink(filepath.Join(dir, "dog.jpg"), filepath.Join(dir, "dog_link.jpg")), ShouldBeNil)
		So(os.Symlink(filepath.Join(dir, "thumbs"), filepath.Join(dir, "thumbs_link")), ShouldBeNil)

		Convey("When listing names", func() {
			names, err := catalog.NewDir(dir).Names(context.Background())

			Convey("Then regular files are returned sorted", func() {
				So(err, ShouldBeNil)
				So(names, ShouldResemble, []string{"cat2.png", "cat_1.jpg", "dog.jpg", "dog_link.jpg"})
			})
		})

		Convey("When the directory does not exist", func() {
			names, err := catalog.NewDir(filepath.Join(dir, "missing")).Names(context.Background())

			Convey("Then the catalog is empty", func() {
				So(err, ShouldBeNil)
				So(names, ShouldBeEmpty)
			})
		})

		Convey("When the path is a file", func() {
			_, err := catalog.NewDir(filepath.Join(dir, "dog.jpg")).Names(context.Background())
			So(err, ShouldNotBeNil)
		})
	})
}

func TestStatic(t *testing.T) {
	Convey("Given a static catalog", t, func() {
		c := catalog.NewStatic("a", "b")

		Convey("Then callers get a copy", func() {
			names, err := c.Names(context.Background())
			So(err, ShouldBeNil)
			names[0] = "mutated"
			again, _ := c.Names(context.Background())
			So(again, ShouldResemble, []string{"a", "b"})
		})

		Convey("When contents are replaced", func() {
			c.Set("z")
			names, _ := c.Names(context.Background())
			So(names, ShouldResemble, []string{"z"})
		})
	})
}
