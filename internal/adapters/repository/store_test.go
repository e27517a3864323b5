package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm/schema"

	"github.com/okian/ranker/internal/domain/model"
)

var errBoom = errors.New("boom")

// storeFactories lists every backend the contract tests run against.
func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewTreapStore(WithSeed(42))
		},
		"sqlite": func(t *testing.T) Store {
			dsn := filepath.Join(t.TempDir(), "ranker.db")
			s, err := OpenGorm(context.Background(), DriverSQLite, dsn)
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			return s
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer func() { _ = s.Close() }()
			fn(t, s)
		})
	}
}

func TestStore_EmptyReads(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		items, err := s.ListItems(ctx)
		if err != nil || len(items) != 0 {
			t.Fatalf("expected no items, got %v (err %v)", items, err)
		}
		rows, err := s.ListUserRatings(ctx, "alice")
		if err != nil || len(rows) != 0 {
			t.Fatalf("expected no user rows, got %v (err %v)", rows, err)
		}
		n, err := s.EventCount(ctx)
		if err != nil || n != 0 {
			t.Fatalf("expected zero events, got %d (err %v)", n, err)
		}
		byUser, err := s.EventCountsByUser(ctx)
		if err != nil || len(byUser) != 0 {
			t.Fatalf("expected no per-user counts, got %v (err %v)", byUser, err)
		}
		if c := s.Count(ctx); c != 0 {
			t.Errorf("expected count 0, got %d", c)
		}
	})
}

func TestStore_GetOrCreate(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		err := s.Update(ctx, func(tx Tx) error {
			it, err := tx.GetOrCreateItem(ctx, "cat.jpg")
			if err != nil {
				return err
			}
			if it.Rating != model.DefaultRating || it.Count != 0 {
				t.Errorf("unexpected new item %+v", it)
			}
			again, err := tx.GetOrCreateItem(ctx, "cat.jpg")
			if err != nil {
				return err
			}
			if again != it {
				t.Errorf("second get returned %+v, want %+v", again, it)
			}
			row, err := tx.GetOrCreateUserRating(ctx, "alice", "cat.jpg")
			if err != nil {
				return err
			}
			if row.Rating != model.DefaultRating || row.Username != "alice" || row.Name != "cat.jpg" {
				t.Errorf("unexpected new user row %+v", row)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if c := s.Count(ctx); c != 1 {
			t.Errorf("expected one item, got %d", c)
		}
		rows, _ := s.ListUserRatings(ctx, "alice")
		if len(rows) != 1 {
			t.Errorf("expected one user row, got %d", len(rows))
		}
	})
}

func TestStore_SetAndList(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		ratings := map[string]float64{"a": 1010, "b": 990, "c": 1010, "d": 1200}

		err := s.Update(ctx, func(tx Tx) error {
			for name, r := range ratings {
				if _, err := tx.GetOrCreateItem(ctx, name); err != nil {
					return err
				}
				if err := tx.SetItemRating(ctx, name, r, 3); err != nil {
					return err
				}
				if _, err := tx.GetOrCreateUserRating(ctx, "bob", name); err != nil {
					return err
				}
				if err := tx.SetUserRating(ctx, "bob", name, 2000-r, 1); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}

		items, err := s.ListItems(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		want := []string{"d", "a", "c", "b"}
		for i, it := range items {
			if it.Name != want[i] {
				t.Fatalf("position %d: got %s, want %s (all %v)", i, it.Name, want[i], items)
			}
			if it.Count != 3 {
				t.Errorf("item %s count %d, want 3", it.Name, it.Count)
			}
		}

		top, err := s.TopItems(ctx, 2)
		if err != nil || len(top) != 2 || top[0].Name != "d" || top[1].Name != "a" {
			t.Errorf("unexpected top items %v (err %v)", top, err)
		}

		rows, err := s.ListUserRatings(ctx, "bob")
		if err != nil {
			t.Fatalf("list user: %v", err)
		}
		wantRows := []string{"b", "a", "c", "d"}
		for i, r := range rows {
			if r.Name != wantRows[i] {
				t.Fatalf("user position %d: got %s, want %s", i, r.Name, wantRows[i])
			}
		}
		if other, _ := s.ListUserRatings(ctx, "carol"); len(other) != 0 {
			t.Errorf("rows leaked to another user: %v", other)
		}
	})
}

func TestStore_TopItemsInvalidLimit(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		if _, err := s.TopItems(context.Background(), 0); !errors.Is(err, ErrInvalidLimit) {
			t.Errorf("expected ErrInvalidLimit, got %v", err)
		}
	})
}

func TestStore_SetMissingRow(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		err := s.Update(ctx, func(tx Tx) error {
			return tx.SetItemRating(ctx, "ghost", 1, 1)
		})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for item, got %v", err)
		}
		err = s.Update(ctx, func(tx Tx) error {
			return tx.SetUserRating(ctx, "alice", "ghost", 1, 1)
		})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for user row, got %v", err)
		}
	})
}

func TestStore_FailedUpdateLeavesNoTrace(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.EnsureItems(ctx, []string{"x"}); err != nil {
			t.Fatalf("ensure: %v", err)
		}

		err := s.Update(ctx, func(tx Tx) error {
			if _, err := tx.AppendEvent(ctx, model.RankingEvent{Username: "alice", Items: []string{"x", "y"}}); err != nil {
				return err
			}
			if _, err := tx.GetOrCreateItem(ctx, "y"); err != nil {
				return err
			}
			if err := tx.SetItemRating(ctx, "x", 1500, 9); err != nil {
				return err
			}
			if _, err := tx.GetOrCreateUserRating(ctx, "alice", "x"); err != nil {
				return err
			}
			return errBoom
		})
		if !errors.Is(err, errBoom) {
			t.Fatalf("expected errBoom, got %v", err)
		}

		items, _ := s.ListItems(ctx)
		if len(items) != 1 || items[0].Rating != model.DefaultRating || items[0].Count != 0 {
			t.Errorf("items changed by failed update: %v", items)
		}
		if n, _ := s.EventCount(ctx); n != 0 {
			t.Errorf("event logged by failed update: %d", n)
		}
		if rows, _ := s.ListUserRatings(ctx, "alice"); len(rows) != 0 {
			t.Errorf("user rows created by failed update: %v", rows)
		}
	})
}

func TestStore_Events(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		orders := []struct {
			user  string
			items []string
		}{
			{"alice", []string{"b", "a", "c"}},
			{"bob", []string{"c"}},
			{"alice", nil},
		}
		var ids []int64
		for _, o := range orders {
			err := s.Update(ctx, func(tx Tx) error {
				ev, err := tx.AppendEvent(ctx, model.RankingEvent{Username: o.user, Items: o.items})
				if err != nil {
					return err
				}
				ids = append(ids, ev.ID)
				if ev.RatedAt.IsZero() {
					t.Error("event timestamp not set")
				}
				return nil
			})
			if err != nil {
				t.Fatalf("append: %v", err)
			}
		}

		for i := 1; i < len(ids); i++ {
			if ids[i] <= ids[i-1] {
				t.Errorf("event ids not increasing: %v", ids)
			}
		}

		events, err := s.Events(ctx)
		if err != nil || len(events) != 3 {
			t.Fatalf("expected 3 events, got %d (err %v)", len(events), err)
		}
		if fmt.Sprint(events[0].Items) != "[b a c]" {
			t.Errorf("item order not preserved: %v", events[0].Items)
		}
		if len(events[2].Items) != 0 {
			t.Errorf("expected empty item list, got %v", events[2].Items)
		}

		byUser, err := s.EventCountsByUser(ctx)
		if err != nil {
			t.Fatalf("counts: %v", err)
		}
		if byUser["alice"] != 2 || byUser["bob"] != 1 {
			t.Errorf("unexpected per-user counts %v", byUser)
		}
		if n, _ := s.EventCount(ctx); n != 3 {
			t.Errorf("expected 3 events, got %d", n)
		}
	})
}

func TestStore_EnsureItems(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.EnsureItems(ctx, []string{"a", "b", "a", ""}); err != nil {
			t.Fatalf("ensure: %v", err)
		}
		if err := s.Update(ctx, func(tx Tx) error {
			return tx.SetItemRating(ctx, "a", 1100, 4)
		}); err != nil {
			t.Fatalf("update: %v", err)
		}
		if err := s.EnsureItems(ctx, []string{"a", "c"}); err != nil {
			t.Fatalf("ensure again: %v", err)
		}
		if err := s.EnsureItems(ctx, nil); err != nil {
			t.Fatalf("ensure empty: %v", err)
		}

		items, _ := s.ListItems(ctx)
		if len(items) != 3 {
			t.Fatalf("expected 3 items, got %v", items)
		}
		if items[0].Name != "a" || items[0].Rating != 1100 || items[0].Count != 4 {
			t.Errorf("existing item was reset: %+v", items[0])
		}
	})
}

func TestStore_ConcurrentUpdatesSerialise(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		const writers = 12

		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.Update(ctx, func(tx Tx) error {
					it, err := tx.GetOrCreateItem(ctx, "shared")
					if err != nil {
						return err
					}
					return tx.SetItemRating(ctx, "shared", it.Rating+1, it.Count+1)
				})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("update: %v", err)
			}
		}

		items, _ := s.ListItems(ctx)
		if len(items) != 1 || items[0].Count != writers || items[0].Rating != model.DefaultRating+writers {
			t.Errorf("lost update: %+v", items)
		}
	})
}

func TestStore_Closed(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			if err := s.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			ctx := context.Background()
			if _, err := s.ListItems(ctx); !errors.Is(err, ErrClosed) {
				t.Errorf("ListItems after close: %v", err)
			}
			if err := s.Update(ctx, func(Tx) error { return nil }); !errors.Is(err, ErrClosed) {
				t.Errorf("Update after close: %v", err)
			}
			if err := s.EnsureItems(ctx, []string{"a"}); !errors.Is(err, ErrClosed) {
				t.Errorf("EnsureItems after close: %v", err)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, DriverMemory, "")
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := s.(*TreapStore); !ok {
		t.Errorf("expected *TreapStore, got %T", s)
	}

	if _, err := Open(ctx, "mongo", "x"); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("expected ErrUnknownDriver, got %v", err)
	}

	s, err = Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "open.db"), WithInitialRating(1500))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = s.Close() }()
	if err := s.EnsureItems(ctx, []string{"z"}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	items, _ := s.ListItems(ctx)
	if len(items) != 1 || items[0].Rating != 1500 {
		t.Errorf("initial rating not applied: %v", items)
	}
}

func TestSQLiteDSN(t *testing.T) {
	cases := []struct{ in, want string }{
		{"ranker.db", "ranker.db?_busy_timeout=5000&_txlock=immediate"},
		{"file:ranker.db?cache=shared", "file:ranker.db?cache=shared&_busy_timeout=5000&_txlock=immediate"},
		{"x.db?_txlock=deferred", "x.db?_txlock=deferred&_busy_timeout=5000"},
		{"y.db?_busy_timeout=1&_txlock=exclusive", "y.db?_busy_timeout=1&_txlock=exclusive"},
	}
	for _, c := range cases {
		if got := sqliteDSN(c.in); got != c.want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestGormRatingColumnsAreFloatingPoint(t *testing.T) {
	dialector := postgres.New(postgres.Config{})
	for _, row := range []any{&itemRow{}, &userRatingRow{}} {
		sch, err := schema.Parse(row, &sync.Map{}, schema.NamingStrategy{})
		if err != nil {
			t.Fatalf("parse %T: %v", row, err)
		}
		field := sch.LookUpField("rating")
		if field == nil {
			t.Fatalf("%T has no rating column", row)
		}
		if got := dialector.DataTypeOf(field); got != "double precision" {
			t.Errorf("%T rating column on postgres = %q, want double precision", row, got)
		}
	}
}
