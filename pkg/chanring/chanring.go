package chanring

import (
	"github.com/i5heu/GoRingBench/pkg/alloc"
	"github.com/i5heu/GoRingBench/pkg/ring"
)

const component = "ChanRing"

// ChanRing uses a buffered channel as its slot array. A send that would
// block on a full channel is replaced by a receive (the eviction) followed
// by the send. Both steps are non-blocking, which only holds while a single
// goroutine owns the ring.
type ChanRing[T any] struct {
	ch     chan T
	closed bool
	env    *ring.Env[T]
}

var _ ring.Ring[int] = (*ChanRing[int])(nil)

// New returns an empty ChanRing holding at most capacity elements.
func New[T any](capacity int, opts ...ring.Option[T]) (*ChanRing[T], error) {
	// A zero-capacity channel is a synchronisation point, not a buffer.
	if err := ring.CheckCapacity(capacity, component); err != nil {
		return nil, err
	}
	env, err := ring.NewEnv(component, capacity, opts...)
	if err != nil {
		return nil, err
	}
	ch, err := alloc.MakeChan[T](env.Allocator, capacity)
	if err != nil {
		env.Metrics.Unregister()
		env.Logger.Debug("channel allocation failed", "capacity", capacity, "error", err)
		return nil, ring.WrapAllocation(err, component, "New", "allocate channel")
	}
	env.Logger.Debug("ring created", "capacity", capacity)
	return &ChanRing[T]{ch: ch, env: env}, nil
}

func (r *ChanRing[T]) Enqueue(val T) error {
	if r.closed {
		return ring.Wrap(ring.ErrClosed, component, "Enqueue", "store value")
	}
	r.env.Ownership.Retain(val)
	select {
	case r.ch <- val:
	default:
		r.env.Ownership.Release(<-r.ch)
		r.env.Metrics.Evicted()
		r.ch <- val
	}
	r.env.Metrics.Enqueued(len(r.ch))
	return nil
}

func (r *ChanRing[T]) Dequeue() (val T, err error) {
	if r.closed {
		return val, ring.Wrap(ring.ErrClosed, component, "Dequeue", "load value")
	}
	select {
	case val = <-r.ch:
		r.env.Metrics.Dequeued(len(r.ch))
		return val, nil
	default:
		return val, ring.ErrEmpty
	}
}

func (r *ChanRing[T]) Len() int {
	return len(r.ch)
}

func (r *ChanRing[T]) MaxLen() int {
	return cap(r.ch)
}

func (r *ChanRing[T]) Close() error {
	if r.closed {
		return nil
	}
	for len(r.ch) > 0 {
		r.env.Ownership.Release(<-r.ch)
	}
	r.env.Allocator.Free(cap(r.ch))
	r.env.Metrics.Unregister()
	r.closed = true
	r.env.Logger.Debug("ring closed", "capacity", cap(r.ch))
	return nil
}
