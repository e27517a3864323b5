// Package catalog supplies the set of item names that can be offered for
// ranking.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Catalog lists the item names currently available.
type Catalog interface {
	Names(ctx context.Context) ([]string, error)
}

// Dir lists the regular files of a directory. Symlinks to regular files
// count; subdirectories do not. A missing directory is an empty catalog.
type Dir struct {
	path string
}

var _ Catalog = (*Dir)(nil)

// NewDir creates a directory-backed catalog.
func NewDir(path string) *Dir {
	return &Dir{path: path}
}

// Path returns the listed directory.
func (d *Dir) Path() string { return d.path }

// Names implements Catalog. Names are sorted.
func (d *Dir) Names(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.path, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.Type().IsRegular() {
			names = append(names, e.Name())
			continue
		}
		if e.Type()&fs.ModeSymlink != 0 {
			if fi, err := os.Stat(filepath.Join(d.path, e.Name())); err == nil && fi.Mode().IsRegular() {
				names = append(names, e.Name())
			}
		}
	}
	slices.Sort(names)
	return names, nil
}

// Static is an in-memory catalog, used by the simulator and tests.
type Static struct {
	mu    sync.RWMutex
	names []string
}

var _ Catalog = (*Static)(nil)

// NewStatic creates a catalog holding names.
func NewStatic(names ...string) *Static {
	return &Static{names: slices.Clone(names)}
}

// Names implements Catalog.
func (s *Static) Names(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.names), nil
}

// Set replaces the catalog contents.
func (s *Static) Set(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = slices.Clone(names)
}
