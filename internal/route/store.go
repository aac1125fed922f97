package route

import (
	"errors"
	"sync"
	"time"
)

// ErrStopNotFound is returned when a stop ID does not exist in the live list.
var ErrStopNotFound = errors.New("route: stop not found")

// ErrNoPackages is returned by undo operations on an empty package list.
var ErrNoPackages = errors.New("route: no packages to remove")

// undoWindow bounds how long a deleted package remains restorable.
const undoWindow = 30 * time.Second

// StopSource provides read access to the externally-owned, ordered stop list.
// The matching engine treats the list as immutable: any change produces a new
// slice, and consumers rebuild their indexes against it.
type StopSource interface {
	// Stops returns the current ordered stop list. Callers must not mutate
	// the returned slice.
	Stops() []Stop
}

// StopList is the in-memory StopSource implementation. Replacements swap the
// whole slice so readers always observe a consistent snapshot.
// All methods are safe for concurrent use.
type StopList struct {
	mu    sync.RWMutex
	stops []Stop
}

// Compile-time interface check.
var _ StopSource = (*StopList)(nil)

// NewStopList creates a StopList seeded with the given stops.
func NewStopList(stops []Stop) *StopList {
	l := &StopList{}
	l.Replace(stops)
	return l
}

// Stops implements [StopSource].
func (l *StopList) Stops() []Stop {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stops
}

// Replace swaps in a new stop list. The input is copied so later caller
// mutations cannot alias the published snapshot.
func (l *StopList) Replace(stops []Stop) {
	copied := make([]Stop, len(stops))
	copy(copied, stops)
	l.mu.Lock()
	l.stops = copied
	l.mu.Unlock()
}

// ByID returns the stop with the given ID and its 1-based position in the
// live list. Returns [ErrStopNotFound] when the ID is absent.
func (l *StopList) ByID(id string) (Stop, int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i, s := range l.stops {
		if s.ID == id {
			return s, i + 1, nil
		}
	}
	return Stop{}, 0, ErrStopNotFound
}

// Remove deletes the stop with the given ID from the list.
// Returns [ErrStopNotFound] when the ID is absent.
func (l *StopList) Remove(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, s := range l.stops {
		if s.ID == id {
			l.stops = append(l.stops[:i:i], l.stops[i+1:]...)
			return nil
		}
	}
	return ErrStopNotFound
}

// PackageStore holds the package records produced during loading. The voice
// session only ever appends or removes the most recent entry; arbitrary
// mutation belongs to the excluded CRUD surfaces.
// All methods are safe for concurrent use.
type PackageStore struct {
	mu       sync.Mutex
	packages []Package

	// lastRemoved supports a bounded soft-undo of the most recent delete.
	lastRemoved   *Package
	lastRemovedAt time.Time
}

// NewPackageStore creates an empty PackageStore.
func NewPackageStore() *PackageStore {
	return &PackageStore{}
}

// Append adds pkg to the end of the package list.
func (ps *PackageStore) Append(pkg Package) {
	ps.mu.Lock()
	ps.packages = append(ps.packages, pkg)
	ps.mu.Unlock()
}

// RemoveLast removes and returns the most recently appended package.
// The removed package remains restorable via [PackageStore.Restore] for a
// bounded window. Returns [ErrNoPackages] when the list is empty.
func (ps *PackageStore) RemoveLast() (Package, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if len(ps.packages) == 0 {
		return Package{}, ErrNoPackages
	}
	last := ps.packages[len(ps.packages)-1]
	ps.packages = ps.packages[:len(ps.packages)-1]
	ps.lastRemoved = &last
	ps.lastRemovedAt = time.Now()
	return last, nil
}

// Restore re-appends the most recently removed package, provided the undo
// window has not elapsed. Returns [ErrNoPackages] otherwise.
func (ps *PackageStore) Restore() (Package, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.lastRemoved == nil || time.Since(ps.lastRemovedAt) > undoWindow {
		return Package{}, ErrNoPackages
	}
	pkg := *ps.lastRemoved
	ps.lastRemoved = nil
	ps.packages = append(ps.packages, pkg)
	return pkg, nil
}

// Len returns the number of packages currently stored.
func (ps *PackageStore) Len() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.packages)
}

// All returns a snapshot copy of the package list in append order.
func (ps *PackageStore) All() []Package {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]Package, len(ps.packages))
	copy(out, ps.packages)
	return out
}

// MarkDelivered sets the Delivered flag on the package with the given ID.
// Returns false when no such package exists.
func (ps *PackageStore) MarkDelivered(id string) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for i := range ps.packages {
		if ps.packages[i].ID == id {
			ps.packages[i].Delivered = true
			return true
		}
	}
	return false
}
