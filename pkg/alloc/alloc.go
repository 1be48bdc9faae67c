// Package alloc accounts for the storage a ring obtains: slots, nodes or
// channel buffers. Every ring reserves units before it creates storage and
// frees them when the storage is dropped, so a bounded Allocator turns
// "out of memory" into an ordinary error the caller can handle.
package alloc

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrExhausted is returned when an allocator cannot hand out more units.
var ErrExhausted = errors.New("allocator exhausted")

// Allocator hands out storage units. One unit is one slot or one node.
type Allocator interface {
	// Reserve claims n units or returns ErrExhausted without claiming any.
	Reserve(n int) error

	// Free returns n previously reserved units.
	Free(n int)
}

// Unlimited never refuses a reservation. It is the default allocator.
var Unlimited Allocator = unlimited{}

type unlimited struct{}

func (unlimited) Reserve(n int) error {
	if n < 0 {
		return fmt.Errorf("reserve %d units: %w", n, ErrExhausted)
	}
	return nil
}

func (unlimited) Free(int) {}

// Budget is an Allocator with a fixed ceiling on the number of live units.
// It is safe for concurrent use so several rings may share one budget.
type Budget struct {
	max   int64
	inUse atomic.Int64
	peak  atomic.Int64
}

// NewBudget returns a Budget allowing at most max live units.
func NewBudget(max int) *Budget {
	return &Budget{max: int64(max)}
}

// Reserve claims n units if the ceiling allows it.
func (b *Budget) Reserve(n int) error {
	if n < 0 {
		return fmt.Errorf("reserve %d units: %w", n, ErrExhausted)
	}
	for {
		cur := b.inUse.Load()
		next := cur + int64(n)
		if next > b.max || next < cur {
			return fmt.Errorf("reserve %d units with %d of %d in use: %w", n, cur, b.max, ErrExhausted)
		}
		if b.inUse.CompareAndSwap(cur, next) {
			b.observePeak(next)
			return nil
		}
	}
}

// Free returns n units. Freeing more than is in use panics, since it means
// the caller released the same storage twice.
func (b *Budget) Free(n int) {
	if b.inUse.Add(-int64(n)) < 0 {
		panic("alloc: free of unreserved units")
	}
}

// InUse reports the number of live units.
func (b *Budget) InUse() int {
	return int(b.inUse.Load())
}

// Peak reports the highest number of live units seen.
func (b *Budget) Peak() int {
	return int(b.peak.Load())
}

// Max reports the ceiling.
func (b *Budget) Max() int {
	return int(b.max)
}

func (b *Budget) observePeak(v int64) {
	for {
		p := b.peak.Load()
		if v <= p || b.peak.CompareAndSwap(p, v) {
			return
		}
	}
}

// MakeSlice reserves n units from a and allocates a slice of n elements.
// Either both succeed or neither does: a failed make returns the
// reservation before reporting ErrExhausted.
func MakeSlice[T any](a Allocator, n int) (s []T, err error) {
	if err := a.Reserve(n); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			a.Free(n)
			s, err = nil, fmt.Errorf("make %d elements: %v: %w", n, r, ErrExhausted)
		}
	}()
	return make([]T, n), nil
}

// MakeChan is MakeSlice for a buffered channel.
func MakeChan[T any](a Allocator, n int) (ch chan T, err error) {
	if err := a.Reserve(n); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			a.Free(n)
			ch, err = nil, fmt.Errorf("make chan of %d: %v: %w", n, r, ErrExhausted)
		}
	}()
	return make(chan T, n), nil
}
