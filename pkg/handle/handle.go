// Package handle provides a reference-counted smart handle for values
// stored in rings, plus an ownership policy that lets a ring hold one
// strong reference per occupied slot.
package handle

import (
	"fmt"
	"sync/atomic"
)

// Ref is a reference-counted handle around a caller-owned value.
// A new Ref starts with one reference owned by its creator. When the last
// reference is released the optional free hook runs exactly once.
type Ref[T any] struct {
	value  T
	count  atomic.Int64
	onFree func(T)
}

// New returns a Ref holding v with a count of one.
func New[T any](v T, onFree func(T)) *Ref[T] {
	r := &Ref[T]{value: v, onFree: onFree}
	r.count.Store(1)
	return r
}

// Value returns the wrapped value.
func (r *Ref[T]) Value() T {
	return r.value
}

// Count returns the current number of strong references.
func (r *Ref[T]) Count() int64 {
	return r.count.Load()
}

// Retain adds one strong reference and returns r.
// Retaining a freed handle panics.
func (r *Ref[T]) Retain() *Ref[T] {
	if r.count.Add(1) <= 1 {
		panic(fmt.Sprintf("handle: retain of freed reference %v", r.value))
	}
	return r
}

// Release drops one strong reference and reports whether it was the last.
// Releasing a freed handle panics.
func (r *Ref[T]) Release() bool {
	n := r.count.Add(-1)
	switch {
	case n < 0:
		panic(fmt.Sprintf("handle: release of freed reference %v", r.value))
	case n == 0:
		if r.onFree != nil {
			r.onFree(r.value)
		}
		return true
	}
	return false
}

// Policy retains and releases *Ref[T] values. It satisfies ring.Ownership.
type Policy[T any] struct{}

func (Policy[T]) Retain(r *Ref[T]) {
	if r != nil {
		r.Retain()
	}
}

func (Policy[T]) Release(r *Ref[T]) {
	if r != nil {
		r.Release()
	}
}
