package blocklist

import (
	"sync"
	"sync/atomic"
)

// table is a capacity-bounded exact-match set. Reads load an immutable map
// through an atomic pointer and never block or allocate; writers serialize on
// mu and publish a fresh copy.
type table[K comparable] struct {
	mu       sync.Mutex
	entries  atomic.Pointer[map[K]struct{}]
	capacity int
}

func newTable[K comparable](capacity int) *table[K] {
	t := &table[K]{capacity: capacity}
	empty := make(map[K]struct{})
	t.entries.Store(&empty)
	return t
}

func (t *table[K]) contains(k K) bool {
	_, ok := (*t.entries.Load())[k]
	return ok
}

func (t *table[K]) len() int {
	return len(*t.entries.Load())
}

// insert adds k. Re-inserting an existing key succeeds without consuming capacity.
func (t *table[K]) insert(k K) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := *t.entries.Load()
	if _, ok := cur[k]; ok {
		return nil
	}
	if len(cur) >= t.capacity {
		return ErrTableFull
	}

	next := make(map[K]struct{}, len(cur)+1)
	for key := range cur {
		next[key] = struct{}{}
	}
	next[k] = struct{}{}
	t.entries.Store(&next)
	return nil
}

// remove deletes k. Removing an absent key is a no-op.
func (t *table[K]) remove(k K) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := *t.entries.Load()
	if _, ok := cur[k]; !ok {
		return
	}

	next := make(map[K]struct{}, len(cur))
	for key := range cur {
		if key != k {
			next[key] = struct{}{}
		}
	}
	t.entries.Store(&next)
}

func (t *table[K]) keys() []K {
	cur := *t.entries.Load()
	out := make([]K, 0, len(cur))
	for k := range cur {
		out = append(out, k)
	}
	return out
}
