// Package ringlistfixed implements a bounded FIFO over a circular
// singly-linked list whose nodes are all allocated once, at construction.
//
// The nodes live in one arena slice and are linked into a ring that never
// changes shape. Enqueue and Dequeue only move the head and tail pointers
// around it and overwrite node payloads, so steady-state operation performs
// no allocation at all.
//
// Whether a node holds a value is tracked explicitly on the node. Nodes
// outside the occupied arc [head, tail) are always empty, and Close
// releases only the occupied arc.
package ringlistfixed

import (
	"github.com/i5heu/GoRingBench/internal/node"
	"github.com/i5heu/GoRingBench/pkg/alloc"
	"github.com/i5heu/GoRingBench/pkg/ring"
)

const component = "RingListFixed"

// RingListFixed is a bounded FIFO over a fixed ring of nodes.
type RingListFixed[T any] struct {
	arena  []node.Node[T]
	head   *node.Node[T]
	tail   *node.Node[T]
	count  int
	closed bool
	env    *ring.Env[T]
}

var _ ring.Ring[int] = (*RingListFixed[int])(nil)

// New allocates and links capacity nodes. The arena is obtained in a single
// step: if it cannot be, nothing stays reserved and an allocation error is
// returned.
func New[T any](capacity int, opts ...ring.Option[T]) (*RingListFixed[T], error) {
	if err := ring.CheckCapacity(capacity, component); err != nil {
		return nil, err
	}
	env, err := ring.NewEnv(component, capacity, opts...)
	if err != nil {
		return nil, err
	}

	arena, err := alloc.MakeSlice[node.Node[T]](env.Allocator, capacity)
	if err != nil {
		env.Metrics.Unregister()
		env.Logger.Debug("node arena allocation failed", "capacity", capacity, "error", err)
		return nil, ring.WrapAllocation(err, component, "New", "allocate nodes")
	}

	first := node.Link(arena)
	env.Logger.Debug("ring created", "capacity", capacity)
	return &RingListFixed[T]{
		arena: arena,
		head:  first,
		tail:  first,
		env:   env,
	}, nil
}

// Enqueue writes v into the tail node. On a full ring head == tail, so the
// value at head is released and head steps forward before the write.
func (l *RingListFixed[T]) Enqueue(v T) error {
	if l.closed {
		return ring.Wrap(ring.ErrClosed, component, "Enqueue", "store value")
	}
	l.env.Ownership.Retain(v)

	if l.count < len(l.arena) {
		l.count++
	} else {
		l.env.Ownership.Release(l.head.Take())
		l.head = l.head.Next
		l.env.Metrics.Evicted()
	}
	l.tail.Put(v)
	l.tail = l.tail.Next

	l.env.Metrics.Enqueued(l.count)
	return nil
}

// Dequeue takes the value out of the head node and steps head forward.
func (l *RingListFixed[T]) Dequeue() (T, error) {
	var zero T
	if l.closed {
		return zero, ring.Wrap(ring.ErrClosed, component, "Dequeue", "load value")
	}
	if l.count == 0 {
		return zero, ring.ErrEmpty
	}

	v := l.head.Take()
	l.head = l.head.Next
	l.count--

	l.env.Metrics.Dequeued(l.count)
	return v, nil
}

// Len returns the size of the occupied arc.
func (l *RingListFixed[T]) Len() int {
	return l.count
}

// MaxLen returns the number of nodes in the arena.
func (l *RingListFixed[T]) MaxLen() int {
	return len(l.arena)
}

// Close releases the values on the occupied arc and returns the arena.
func (l *RingListFixed[T]) Close() error {
	if l.closed {
		return nil
	}
	for n := l.head; l.count > 0; l.count-- {
		if !n.Occupied() {
			panic("ringlistfixed: empty node inside the occupied arc")
		}
		l.env.Ownership.Release(n.Take())
		n = n.Next
	}
	l.env.Allocator.Free(len(l.arena))
	l.head = nil
	l.tail = nil
	l.env.Metrics.Unregister()
	l.closed = true
	l.env.Logger.Debug("ring closed", "capacity", len(l.arena))
	return nil
}
