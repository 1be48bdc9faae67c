package ringbuffer

import (
	"github.com/i5heu/GoRingBench/pkg/alloc"
	"github.com/i5heu/GoRingBench/pkg/ring"
)

const component = "RingBuffer"

// RingBuffer is a bounded FIFO over one contiguous slot array.
// head is the index of the oldest element, tail the next write position.
// When the buffer is full head == tail and every write evicts.
type RingBuffer[T any] struct {
	buffer []T
	head   int
	tail   int
	count  int
	closed bool
	env    *ring.Env[T]
}

var _ ring.Ring[int] = (*RingBuffer[int])(nil)

// New allocates a RingBuffer holding at most capacity elements.
func New[T any](capacity int, opts ...ring.Option[T]) (*RingBuffer[T], error) {
	if err := ring.CheckCapacity(capacity, component); err != nil {
		return nil, err
	}
	env, err := ring.NewEnv(component, capacity, opts...)
	if err != nil {
		return nil, err
	}

	buffer, err := alloc.MakeSlice[T](env.Allocator, capacity)
	if err != nil {
		env.Metrics.Unregister()
		env.Logger.Debug("slot allocation failed", "capacity", capacity, "error", err)
		return nil, ring.WrapAllocation(err, component, "New", "allocate slots")
	}

	env.Logger.Debug("ring created", "capacity", capacity)
	return &RingBuffer[T]{buffer: buffer, env: env}, nil
}

// Enqueue stores v at tail. A full buffer first drops the element at head.
func (b *RingBuffer[T]) Enqueue(v T) error {
	if b.closed {
		return ring.Wrap(ring.ErrClosed, component, "Enqueue", "store value")
	}
	b.env.Ownership.Retain(v)

	if b.count < len(b.buffer) {
		b.count++
	} else {
		b.evict()
	}
	b.buffer[b.tail] = v
	b.tail = b.next(b.tail)

	b.env.Metrics.Enqueued(b.count)
	return nil
}

// Dequeue removes the element at head and hands it to the caller.
func (b *RingBuffer[T]) Dequeue() (T, error) {
	var zero T
	if b.closed {
		return zero, ring.Wrap(ring.ErrClosed, component, "Dequeue", "load value")
	}
	if b.count == 0 {
		return zero, ring.ErrEmpty
	}

	v := b.buffer[b.head]
	b.buffer[b.head] = zero
	b.head = b.next(b.head)
	b.count--

	b.env.Metrics.Dequeued(b.count)
	return v, nil
}

// Len returns the number of stored elements.
func (b *RingBuffer[T]) Len() int {
	return b.count
}

// MaxLen returns the capacity.
func (b *RingBuffer[T]) MaxLen() int {
	return len(b.buffer)
}

// Close releases every stored element once and returns the slot array to
// the allocator. Calling Close again is a no-op.
func (b *RingBuffer[T]) Close() error {
	if b.closed {
		return nil
	}
	var zero T
	for ; b.count > 0; b.count-- {
		b.env.Ownership.Release(b.buffer[b.head])
		b.buffer[b.head] = zero
		b.head = b.next(b.head)
	}
	b.env.Allocator.Free(len(b.buffer))
	b.env.Metrics.Unregister()
	b.closed = true
	b.env.Logger.Debug("ring closed", "capacity", len(b.buffer))
	return nil
}

// evict drops the element at head. Only valid when the buffer is full.
func (b *RingBuffer[T]) evict() {
	var zero T
	b.env.Ownership.Release(b.buffer[b.head])
	b.buffer[b.head] = zero
	b.head = b.next(b.head)
	b.env.Metrics.Evicted()
}

func (b *RingBuffer[T]) next(i int) int {
	return (i + 1) % len(b.buffer)
}
