// Package ring defines the contract shared by every bounded FIFO ring in
// this module, the options they are configured with and the helpers that
// work across all of them.
//
// A ring holds at most MaxLen elements. Enqueue on a full ring evicts the
// oldest element instead of failing, so a ring always keeps the most recent
// MaxLen values. Rings are single-owner values; wrap one in Locked to share
// it between goroutines.
package ring

// Ring is implemented by ringbuffer, ringlist, ringlistfixed, ringdeque and chanring.
type Ring[T any] interface {
	// Enqueue appends v, evicting the oldest element when the ring is full.
	Enqueue(v T) error

	// Dequeue removes and returns the oldest element.
	// It returns ErrEmpty if the ring holds nothing.
	Dequeue() (T, error)

	// Len returns how many elements are currently held.
	Len() int

	// MaxLen returns the fixed capacity.
	MaxLen() int

	// Close releases every held element and the ring's storage.
	Close() error
}

// Sizer reports an occupancy count.
type Sizer interface {
	Len() int
}

// Capper reports a fixed capacity.
type Capper interface {
	MaxLen() int
}

// Len returns the number of elements held by s.
func Len(s Sizer) int {
	return s.Len()
}

// MaxLen returns the capacity of c.
func MaxLen(c Capper) int {
	return c.MaxLen()
}

// Free returns how many more elements r accepts before it starts evicting.
func Free[R interface {
	Sizer
	Capper
}](r R) int {
	return r.MaxLen() - r.Len()
}
