package repository

import (
	"cmp"
	"context"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/ranker/internal/domain/model"
	"github.com/okian/ranker/pkg/logger"
	"github.com/okian/ranker/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: rating DESC, then name ASC. "less" means ranks earlier, so an
// in-order traversal yields the leaderboard from best to worst.

type node struct {
	name   string
	rating float64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (ar, an) ranks before (br, bn).
func less(ar float64, an string, br float64, bn string) bool {
	if ar != br {
		return ar > br
	}
	return an < bn
}

func compareRank(ar float64, an string, br float64, bn string) int {
	if c := cmp.Compare(br, ar); c != 0 {
		return c
	}
	return strings.Compare(an, bn)
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, name string, rating float64, prio uint64) *node {
	if n == nil {
		return &node{name: name, rating: rating, prio: prio, size: 1}
	}
	if less(rating, name, n.rating, n.name) {
		n.left = insert(n.left, name, rating, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, name, rating, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, name string, rating float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.name == name:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, name, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, name, rating)
		}
	case less(rating, name, n.rating, n.name):
		n.left = deleteNode(n.left, name, rating)
	default:
		n.right = deleteNode(n.right, name, rating)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit names in rank order.
func collectTopN(n *node, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.name)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

type userKey struct {
	username string
	name     string
}

// TreapStore keeps rating state in memory. Items are indexed by name and
// ordered in a treap for leaderboard reads.
type TreapStore struct {
	mu      sync.RWMutex
	root    *node
	items   map[string]model.Item
	users   map[string]map[string]model.UserItemRating
	events  []model.RankingEvent
	rng     *rand.Rand
	initial float64
	closed  bool
	log     logger.Logger
}

var _ Store = (*TreapStore)(nil)

// NewTreapStore constructs an empty in-memory store.
func NewTreapStore(opts ...Option) *TreapStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Discard()
	}
	return &TreapStore{
		items:   make(map[string]model.Item),
		users:   make(map[string]map[string]model.UserItemRating),
		rng:     rand.New(rand.NewSource(o.seed)), //nolint:gosec // treap priorities only
		initial: o.initialRating,
		log:     o.log.Named("treapstore"),
	}
}

// put writes an item into both indexes. Caller holds s.mu.
func (s *TreapStore) put(it model.Item) {
	if old, ok := s.items[it.Name]; ok {
		s.root = deleteNode(s.root, old.Name, old.Rating)
	}
	s.items[it.Name] = it
	s.root = insert(s.root, it.Name, it.Rating, s.rng.Uint64())
}

// ListItems implements Reader.
func (s *TreapStore) ListItems(_ context.Context) ([]model.Item, error) {
	defer observeQuery("list_items", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.top(len(s.items)), nil
}

// TopItems implements Reader.
func (s *TreapStore) TopItems(_ context.Context, n int) ([]model.Item, error) {
	defer observeQuery("top_items", time.Now())

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.top(n), nil
}

func (s *TreapStore) top(n int) []model.Item {
	names := make([]string, 0, min(n, len(s.items)))
	collectTopN(s.root, n, &names)
	out := make([]model.Item, len(names))
	for i, name := range names {
		out[i] = s.items[name]
	}
	return out
}

// ListUserRatings implements Reader.
func (s *TreapStore) ListUserRatings(_ context.Context, username string) ([]model.UserItemRating, error) {
	defer observeQuery("list_user_ratings", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	rows := make([]model.UserItemRating, 0, len(s.users[username]))
	for _, r := range s.users[username] {
		rows = append(rows, r)
	}
	slices.SortFunc(rows, func(a, b model.UserItemRating) int {
		return compareRank(a.Rating, a.Name, b.Rating, b.Name)
	})
	return rows, nil
}

// EventCount implements Reader.
func (s *TreapStore) EventCount(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return int64(len(s.events)), nil
}

// EventCountsByUser implements Reader.
func (s *TreapStore) EventCountsByUser(_ context.Context) (map[string]int64, error) {
	defer observeQuery("event_counts_by_user", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make(map[string]int64)
	for _, ev := range s.events {
		out[ev.Username]++
	}
	return out, nil
}

// Events implements Reader.
func (s *TreapStore) Events(_ context.Context) ([]model.RankingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.RankingEvent, len(s.events))
	for i, ev := range s.events {
		ev.Items = slices.Clone(ev.Items)
		out[i] = ev
	}
	return out, nil
}

// EnsureItems implements Store.
func (s *TreapStore) EnsureItems(_ context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	added := 0
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := s.items[name]; ok {
			continue
		}
		s.put(model.Item{Name: name, Rating: s.initial})
		added++
	}
	if added > 0 {
		metrics.UpdateItemsTotal(len(s.items))
	}
	return nil
}

// Update implements Store. Writers are serialised by the store mutex and
// stage their writes in a memTx that is merged only when fn succeeds.
func (s *TreapStore) Update(ctx context.Context, fn func(Tx) error) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("update: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx := &memTx{
		s:     s,
		items: make(map[string]model.Item),
		users: make(map[userKey]model.UserItemRating),
	}
	if err := fn(tx); err != nil {
		metrics.RecordStoreTransactionFailure()
		s.log.Debug(ctx, "update rolled back", logger.Error(err))
		return err
	}
	tx.commit()

	metrics.UpdateItemsTotal(len(s.items))
	metrics.UpdateEventsTotal(int64(len(s.events)))
	return nil
}

// Count implements Store.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Close implements Store.
func (s *TreapStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// memTx overlays staged writes on the store. It is used while the store's
// write lock is held, so base reads need no further locking.
type memTx struct {
	s      *TreapStore
	items  map[string]model.Item
	users  map[userKey]model.UserItemRating
	events []model.RankingEvent
}

func (t *memTx) item(name string) (model.Item, bool) {
	if it, ok := t.items[name]; ok {
		return it, true
	}
	it, ok := t.s.items[name]
	return it, ok
}

func (t *memTx) userRow(k userKey) (model.UserItemRating, bool) {
	if r, ok := t.users[k]; ok {
		return r, true
	}
	r, ok := t.s.users[k.username][k.name]
	return r, ok
}

func (t *memTx) GetOrCreateItem(_ context.Context, name string) (model.Item, error) {
	if it, ok := t.item(name); ok {
		return it, nil
	}
	it := model.Item{Name: name, Rating: t.s.initial}
	t.items[name] = it
	return it, nil
}

func (t *memTx) GetOrCreateUserRating(_ context.Context, username, name string) (model.UserItemRating, error) {
	k := userKey{username: username, name: name}
	if r, ok := t.userRow(k); ok {
		return r, nil
	}
	r := model.UserItemRating{Username: username, Name: name, Rating: t.s.initial}
	t.users[k] = r
	return r, nil
}

func (t *memTx) SetItemRating(_ context.Context, name string, rating float64, count int64) error {
	if _, ok := t.item(name); !ok {
		return fmt.Errorf("set item %q: %w", name, ErrNotFound)
	}
	t.items[name] = model.Item{Name: name, Rating: rating, Count: count}
	return nil
}

func (t *memTx) SetUserRating(_ context.Context, username, name string, rating float64, count int64) error {
	k := userKey{username: username, name: name}
	if _, ok := t.userRow(k); !ok {
		return fmt.Errorf("set user rating %q/%q: %w", username, name, ErrNotFound)
	}
	t.users[k] = model.UserItemRating{Username: username, Name: name, Rating: rating, Count: count}
	return nil
}

func (t *memTx) AppendEvent(_ context.Context, ev model.RankingEvent) (model.RankingEvent, error) {
	ev.ID = int64(len(t.s.events) + len(t.events) + 1)
	ev.Items = slices.Clone(ev.Items)
	if ev.RatedAt.IsZero() {
		ev.RatedAt = time.Now().UTC()
	}
	t.events = append(t.events, ev)
	return ev, nil
}

// commit merges staged writes into the store. Names are applied in sorted
// order so treap priorities are drawn deterministically.
func (t *memTx) commit() {
	names := make([]string, 0, len(t.items))
	for name := range t.items {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		t.s.put(t.items[name])
	}

	for k, r := range t.users {
		rows, ok := t.s.users[k.username]
		if !ok {
			rows = make(map[string]model.UserItemRating)
			t.s.users[k.username] = rows
		}
		rows[k.name] = r
	}

	t.s.events = append(t.s.events, t.events...)
}

func observeQuery(op string, start time.Time) {
	metrics.RecordStoreQueryLatency(op, float64(time.Since(start).Milliseconds()))
}
