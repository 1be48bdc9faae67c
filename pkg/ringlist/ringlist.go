package ringlist

import (
	"github.com/i5heu/GoRingBench/internal/node"
	"github.com/i5heu/GoRingBench/pkg/ring"
)

const component = "RingList"

// RingList is a bounded FIFO over a circular singly-linked list that grows
// by one node per Enqueue and shrinks by one node per eviction or Dequeue.
// The ring always holds exactly Len() nodes and tail.Next == head.
type RingList[T any] struct {
	maxlen int
	count  int
	head   *node.Node[T]
	tail   *node.Node[T]
	closed bool
	env    *ring.Env[T]
}

var _ ring.Ring[int] = (*RingList[int])(nil)

// New returns an empty RingList holding at most capacity elements.
// Nodes are only obtained on Enqueue.
func New[T any](capacity int, opts ...ring.Option[T]) (*RingList[T], error) {
	if err := ring.CheckCapacity(capacity, component); err != nil {
		return nil, err
	}
	env, err := ring.NewEnv(component, capacity, opts...)
	if err != nil {
		return nil, err
	}
	env.Logger.Debug("ring created", "capacity", capacity)
	return &RingList[T]{maxlen: capacity, env: env}, nil
}

// Enqueue links a new node holding v after tail. If the list was full the
// old head is unlinked and its value released, so the node count stays at
// capacity. If no node can be obtained v is not retained.
func (l *RingList[T]) Enqueue(v T) error {
	if l.closed {
		return ring.Wrap(ring.ErrClosed, component, "Enqueue", "store value")
	}
	if err := l.env.Allocator.Reserve(1); err != nil {
		l.env.Logger.Debug("node allocation failed", "len", l.count, "error", err)
		return ring.WrapAllocation(err, component, "Enqueue", "allocate node")
	}
	l.env.Ownership.Retain(v)

	n := &node.Node[T]{}
	n.Put(v)
	if l.count == 0 {
		l.head = n
		l.tail = n
	}
	n.Next = l.head
	l.tail.Next = n
	l.tail = n

	if l.count < l.maxlen {
		l.count++
	} else {
		l.evict()
	}

	l.env.Metrics.Enqueued(l.count)
	return nil
}

// Dequeue unlinks head and hands its value to the caller.
func (l *RingList[T]) Dequeue() (T, error) {
	var zero T
	if l.closed {
		return zero, ring.Wrap(ring.ErrClosed, component, "Dequeue", "load value")
	}
	if l.count == 0 {
		return zero, ring.ErrEmpty
	}

	old := l.head
	v := old.Take()
	if l.count == 1 {
		l.head = nil
		l.tail = nil
	} else {
		l.head = old.Next
		l.tail.Next = l.head
	}
	old.Next = nil
	l.env.Allocator.Free(1)
	l.count--

	l.env.Metrics.Dequeued(l.count)
	return v, nil
}

// Len returns the number of linked nodes.
func (l *RingList[T]) Len() int {
	return l.count
}

// MaxLen returns the capacity.
func (l *RingList[T]) MaxLen() int {
	return l.maxlen
}

// Close releases the value of every linked node and drops the nodes.
func (l *RingList[T]) Close() error {
	if l.closed {
		return nil
	}
	held := l.count
	for n := l.head; l.count > 0; l.count-- {
		next := n.Next
		l.env.Ownership.Release(n.Take())
		n.Next = nil
		n = next
	}
	l.env.Allocator.Free(held)
	l.head = nil
	l.tail = nil
	l.env.Metrics.Unregister()
	l.closed = true
	l.env.Logger.Debug("ring closed", "capacity", l.maxlen)
	return nil
}

// evict unlinks the head node once a new tail has been linked behind it.
func (l *RingList[T]) evict() {
	old := l.head
	l.head = old.Next
	l.tail.Next = l.head
	l.env.Ownership.Release(old.Take())
	old.Next = nil
	l.env.Allocator.Free(1)
	l.env.Metrics.Evicted()
}
