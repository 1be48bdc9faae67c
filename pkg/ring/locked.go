package ring

import (
	"sync"

	"golang.org/x/sys/cpu"
)

// Locked serialises every call to an underlying ring behind one mutex.
// It is the only way to share a ring between goroutines.
type Locked[T any] struct {
	_  cpu.CacheLinePad
	mu sync.Mutex
	_  cpu.CacheLinePad
	r  Ring[T]
}

// NewLocked wraps r. The caller must not use r directly afterwards.
func NewLocked[T any](r Ring[T]) *Locked[T] {
	return &Locked[T]{r: r}
}

// Enqueue calls Enqueue on the wrapped ring under the lock.
func (l *Locked[T]) Enqueue(v T) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Enqueue(v)
}

// Dequeue calls Dequeue on the wrapped ring under the lock.
func (l *Locked[T]) Dequeue() (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Dequeue()
}

// Len returns the wrapped ring's length under the lock.
func (l *Locked[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Len()
}

// MaxLen is immutable and needs no lock.
func (l *Locked[T]) MaxLen() int {
	return l.r.MaxLen()
}

// Close closes the wrapped ring under the lock.
func (l *Locked[T]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Close()
}
