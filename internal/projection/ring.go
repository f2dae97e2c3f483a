package projection

import "sync"

// Ring is a fixed-capacity FIFO buffer. Appending at capacity evicts
// the oldest entry. Eviction is O(1): entries live in a circular slice
// indexed by start offset, never shifted.
type Ring[T any] struct {
	mu    sync.Mutex
	buf   []T
	start int
	count int
}

// NewRing creates a ring holding at most capacity entries.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("projection: ring capacity must be positive")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Append inserts v, evicting the oldest entry if the ring is full.
func (r *Ring[T]) Append(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == len(r.buf) {
		r.buf[r.start] = v
		r.start = (r.start + 1) % len(r.buf)
		return
	}
	r.buf[(r.start+r.count)%len(r.buf)] = v
	r.count++
}

// List returns a copy of the contents in insertion order, oldest first.
func (r *Ring[T]) List() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Len returns the number of retained entries.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Newest returns the most recent entry matching fn, or false if none.
func (r *Ring[T]) Newest(fn func(T) bool) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := r.count - 1; i >= 0; i-- {
		v := r.buf[(r.start+i)%len(r.buf)]
		if fn(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}
