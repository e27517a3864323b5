package simulate

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/google/uuid"
)

var kinds = []string{"cat", "dog", "owl", "fox", "bee"} //nolint:gochecknoglobals // fixed name pool

// Catalog is a generated set of items with hidden quality.
type Catalog struct {
	Names   []string
	Quality map[string]float64
}

// TrueOrder returns the names sorted by hidden quality, best first.
func (c Catalog) TrueOrder() []string {
	out := append([]string(nil), c.Names...)
	sort.SliceStable(out, func(i, j int) bool {
		return c.Quality[out[i]] > c.Quality[out[j]]
	})
	return out
}

// GenerateCatalog creates n items named like "cat_007.jpg" with quality in
// [0, 1). Items sharing a kind get correlated quality so grouped stats are
// meaningful.
func GenerateCatalog(n int, rng *rand.Rand) Catalog {
	bias := make(map[string]float64, len(kinds))
	for _, k := range kinds {
		bias[k] = rng.Float64() * 0.5
	}

	c := Catalog{Names: make([]string, n), Quality: make(map[string]float64, n)}
	for i := range n {
		kind := kinds[i%len(kinds)]
		name := fmt.Sprintf("%s_%03d.jpg", kind, i)
		c.Names[i] = name
		c.Quality[name] = bias[kind] + rng.Float64()*0.5
	}
	sort.Strings(c.Names)
	return c
}

// GenerateUsers returns n distinct synthetic usernames.
func GenerateUsers(n int) []string {
	users := make([]string, n)
	for i := range users {
		users[i] = "sim-" + uuid.NewString()[:8]
	}
	return users
}

// Judge orders batches the way a synthetic user would: by hidden quality
// perturbed with gaussian noise. Safe for concurrent use.
type Judge struct {
	quality map[string]float64
	noise   float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewJudge creates a Judge over the catalog.
func NewJudge(c Catalog, noise float64, rng *rand.Rand) *Judge {
	return &Judge{quality: c.Quality, noise: noise, rng: rng}
}

// Order returns batch sorted best first.
func (j *Judge) Order(batch []string) []string {
	perceived := make(map[string]float64, len(batch))
	j.mu.Lock()
	for _, name := range batch {
		perceived[name] = j.quality[name] + j.rng.NormFloat64()*j.noise
	}
	j.mu.Unlock()

	out := append([]string(nil), batch...)
	sort.SliceStable(out, func(a, b int) bool {
		return perceived[out[a]] > perceived[out[b]]
	})
	return out
}
