// Package reorder keeps an ordered, optimistically updated view of persisted
// entries and coordinates moves that rewrite every entry's order field.
package reorder

import (
	"sort"
	"sync"
)

// Entry is a value that carries a stable key and an integer order. WithRank
// returns a copy carrying the new order; it must not modify the receiver.
type Entry[E any] interface {
	Key() string
	Rank() int
	WithRank(rank int) E
}

// Snapshot is an immutable copy of a view's sequence.
type Snapshot[E Entry[E]] struct {
	entries []E
}

// Len returns the number of entries captured.
func (s Snapshot[E]) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the captured sequence.
func (s Snapshot[E]) Entries() []E {
	return cloneEntries(s.entries)
}

// View is the sequence the operator currently sees, independent of what is
// confirmed persisted. Every mutation replaces the sequence wholesale.
type View[E Entry[E]] struct {
	mu      sync.RWMutex
	entries []E
}

func NewView[E Entry[E]]() *View[E] {
	return &View[E]{entries: []E{}}
}

// Load replaces the view with raw sorted by order ascending. Entries with
// equal orders keep their relative position from raw.
func (v *View[E]) Load(raw []E) {
	sorted := cloneEntries(raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rank() < sorted[j].Rank()
	})

	v.mu.Lock()
	v.entries = sorted
	v.mu.Unlock()
}

func (v *View[E]) Snapshot() Snapshot[E] {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Snapshot[E]{entries: cloneEntries(v.entries)}
}

// ApplyMove removes the entry at from and reinserts it at to, shifting the
// entries in between by one. Equal indices leave the view unchanged.
func (v *View[E]) ApplyMove(from, to int) ([]E, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	n := len(v.entries)
	if from < 0 || from >= n {
		return nil, &IndexError{Index: from, Len: n}
	}
	if to < 0 || to >= n {
		return nil, &IndexError{Index: to, Len: n}
	}
	if from == to {
		return cloneEntries(v.entries), nil
	}

	v.entries = moveEntry(v.entries, from, to)
	return cloneEntries(v.entries), nil
}

// Restore replaces the view with a previously captured snapshot.
func (v *View[E]) Restore(snapshot Snapshot[E]) {
	restored := cloneEntries(snapshot.entries)
	v.mu.Lock()
	v.entries = restored
	v.mu.Unlock()
}

// Densify rewrites every order field to index+1.
func (v *View[E]) Densify() {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := make([]E, len(v.entries))
	for i, entry := range v.entries {
		next[i] = entry.WithRank(i + 1)
	}
	v.entries = next
}

// Entries returns a copy of the current sequence for rendering.
func (v *View[E]) Entries() []E {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return cloneEntries(v.entries)
}

func (v *View[E]) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries)
}

func moveEntry[E any](entries []E, from, to int) []E {
	moved := entries[from]
	rest := make([]E, 0, len(entries)-1)
	rest = append(rest, entries[:from]...)
	rest = append(rest, entries[from+1:]...)

	next := make([]E, 0, len(entries))
	next = append(next, rest[:to]...)
	next = append(next, moved)
	next = append(next, rest[to:]...)
	return next
}

func cloneEntries[E any](entries []E) []E {
	out := make([]E, len(entries))
	copy(out, entries)
	return out
}
