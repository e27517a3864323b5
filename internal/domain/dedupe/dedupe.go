// Package dedupe guards submissions against replays of the same id.
package dedupe

import (
	"container/list"
	"sync"
)

const defaultCapacity = 10_000

// Deduper records submission ids so a retried request applies at most once.
type Deduper interface {
	// Claim records id and reports whether it was new. A false result means
	// the id was already claimed and the submission must not be applied.
	Claim(id string) bool

	// Release forgets id so a submission that failed can be retried.
	Release(id string)

	// Len returns the number of remembered ids.
	Len() int
}

// Guard is an in-memory Deduper with FIFO eviction.
type Guard struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // oldest at the front
	index    map[string]*list.Element
}

var _ Deduper = (*Guard)(nil)

// New creates a Guard remembering up to 10000 ids unless overridden.
func New(opts ...Option) *Guard {
	g := &Guard{
		capacity: defaultCapacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Claim implements Deduper.
func (g *Guard) Claim(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.index[id]; ok {
		return false
	}
	if g.capacity > 0 && g.order.Len() >= g.capacity {
		oldest := g.order.Front()
		g.order.Remove(oldest)
		delete(g.index, oldest.Value.(string))
	}
	g.index[id] = g.order.PushBack(id)
	return true
}

// Release implements Deduper.
func (g *Guard) Release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if el, ok := g.index[id]; ok {
		g.order.Remove(el)
		delete(g.index, id)
	}
}

// Len implements Deduper.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.order.Len()
}
