package ringdeque

import (
	"github.com/eapache/queue"
	"github.com/i5heu/GoRingBench/pkg/ring"
)

const component = "RingDeque"

// RingDeque bounds an eapache/queue to maxlen elements: adding to a full
// deque removes from the front first. The queue manages its own growable
// buffer; the allocator is charged one unit per held element, plus one
// for the incoming element while a full deque evicts.
type RingDeque[T any] struct {
	q      *queue.Queue
	maxlen int
	closed bool
	env    *ring.Env[T]
}

var _ ring.Ring[int] = (*RingDeque[int])(nil)

// New returns an empty RingDeque holding at most capacity elements.
func New[T any](capacity int, opts ...ring.Option[T]) (*RingDeque[T], error) {
	if err := ring.CheckCapacity(capacity, component); err != nil {
		return nil, err
	}
	env, err := ring.NewEnv(component, capacity, opts...)
	if err != nil {
		return nil, err
	}
	env.Logger.Debug("ring created", "capacity", capacity)
	return &RingDeque[T]{q: queue.New(), maxlen: capacity, env: env}, nil
}

// Enqueue adds v at the back. A full deque first removes and releases its
// front element. If no unit can be reserved the deque is left unchanged
// and v is not retained.
func (d *RingDeque[T]) Enqueue(v T) error {
	if d.closed {
		return ring.Wrap(ring.ErrClosed, component, "Enqueue", "store value")
	}
	if err := d.env.Allocator.Reserve(1); err != nil {
		d.env.Logger.Debug("element allocation failed", "len", d.q.Length(), "error", err)
		return ring.WrapAllocation(err, component, "Enqueue", "reserve element")
	}
	if d.q.Length() == d.maxlen {
		d.env.Ownership.Release(d.remove())
		d.env.Allocator.Free(1)
		d.env.Metrics.Evicted()
	}
	d.env.Ownership.Retain(v)
	d.q.Add(v)

	d.env.Metrics.Enqueued(d.q.Length())
	return nil
}

// Dequeue removes the front element and hands it to the caller.
func (d *RingDeque[T]) Dequeue() (T, error) {
	var zero T
	if d.closed {
		return zero, ring.Wrap(ring.ErrClosed, component, "Dequeue", "load value")
	}
	if d.q.Length() == 0 {
		return zero, ring.ErrEmpty
	}
	v := d.remove()
	d.env.Allocator.Free(1)

	d.env.Metrics.Dequeued(d.q.Length())
	return v, nil
}

// Len returns the number of held elements.
func (d *RingDeque[T]) Len() int {
	return d.q.Length()
}

// MaxLen returns the capacity.
func (d *RingDeque[T]) MaxLen() int {
	return d.maxlen
}

// Close releases every held element once. Calling Close again is a no-op.
func (d *RingDeque[T]) Close() error {
	if d.closed {
		return nil
	}
	for d.q.Length() > 0 {
		d.env.Ownership.Release(d.remove())
		d.env.Allocator.Free(1)
	}
	d.env.Metrics.Unregister()
	d.closed = true
	d.env.Logger.Debug("ring closed", "capacity", d.maxlen)
	return nil
}

// remove pops the front element. A nil interface value comes back as the
// zero T rather than failing the type assertion.
func (d *RingDeque[T]) remove() T {
	v, _ := d.q.Remove().(T)
	return v
}
