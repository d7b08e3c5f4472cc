// Package registry tracks outstanding asynchronous queries. It maps opaque
// query handles to their completion callbacks while a query is in flight,
// with insert-once / remove-exactly-once semantics: double removal is a
// harmless no-op, never an error.
package registry

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/lc/adns/internal/answer"
)

// Handle is an opaque identifier for one outstanding asynchronous query.
// A handle is only valid until the query completes, is canceled, or the
// owning resolver context is purged.
type Handle string

// Callback delivers the terminal outcome of one query: either a
// normalized answer or an error, never both, and exactly once.
type Callback func(n *answer.Normalized, err error)

// Pending is a registry entry paired with its handle, as returned by Drain.
type Pending struct {
	Handle   Handle
	Callback Callback
}

// Registry is an in-memory map of pending queries.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[Handle]Callback
	count   atomic.Int64 // metrics: pending queries
}

// New creates an empty registry ready for use.
func New() *Registry {
	return &Registry{
		entries: make(map[Handle]Callback),
	}
}

// Add registers cb under h. A handle appears in the registry at most once;
// re-adding a live handle reports false and leaves the entry untouched.
func (r *Registry) Add(h Handle, cb Callback) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[h]; ok {
		return false
	}
	r.entries[h] = cb
	r.count.Inc()
	return true
}

// Remove deletes the entry for h and returns its callback.
// Removing an absent handle reports ok=false and is a no-op.
func (r *Registry) Remove(h Handle) (Callback, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.entries[h]
	if !ok {
		return nil, false
	}
	delete(r.entries, h)
	r.count.Dec()
	return cb, true
}

// Drain removes and returns every pending entry.
// Used by purge so each waiting caller can be notified exactly once.
func (r *Registry) Drain() []Pending {
	r.mu.Lock()
	defer r.mu.Unlock()

	drained := make([]Pending, 0, len(r.entries))
	for h, cb := range r.entries {
		drained = append(drained, Pending{Handle: h, Callback: cb})
	}
	r.entries = make(map[Handle]Callback)
	r.count.Store(0)
	return drained
}

// Len returns the number of pending queries.
func (r *Registry) Len() int {
	return int(r.count.Load())
}
