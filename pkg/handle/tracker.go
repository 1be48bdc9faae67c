package handle

import (
	"sync"
)

// Tracker creates Refs and records how many are still alive.
// Tests use it to prove a ring neither leaks nor double-releases values.
type Tracker[T any] struct {
	mu    sync.Mutex
	live  map[*Ref[T]]struct{}
	freed []T
}

// NewTracker returns an empty Tracker.
func NewTracker[T any]() *Tracker[T] {
	return &Tracker[T]{live: make(map[*Ref[T]]struct{})}
}

// New returns a tracked Ref holding v with a count of one.
func (t *Tracker[T]) New(v T) *Ref[T] {
	var r *Ref[T]
	r = New(v, func(val T) {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.live, r)
		t.freed = append(t.freed, val)
	})
	t.mu.Lock()
	t.live[r] = struct{}{}
	t.mu.Unlock()
	return r
}

// Live returns the number of tracked Refs that have not been freed.
func (t *Tracker[T]) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// Freed returns the values of freed Refs in the order they were freed.
func (t *Tracker[T]) Freed() []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]T, len(t.freed))
	copy(out, t.freed)
	return out
}
