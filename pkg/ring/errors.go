package ring

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCapacity is returned by constructors given a capacity <= 0.
	ErrInvalidCapacity = errors.New("capacity must be positive")

	// ErrAllocation is returned when storage for slots or nodes cannot be obtained.
	ErrAllocation = errors.New("storage allocation failed")

	// ErrEmpty is returned by Dequeue on a ring holding no elements.
	ErrEmpty = errors.New("dequeue from an empty ring")

	// ErrClosed is returned by operations on a closed ring.
	ErrClosed = errors.New("ring closed")
)

// Wrap adds context to err in the form "component.method: action failed: err".
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapAllocation marks cause as an allocation failure while keeping it in the chain.
func WrapAllocation(cause error, component, method, action string) error {
	if cause == nil {
		return nil
	}
	return Wrap(fmt.Errorf("%w: %w", ErrAllocation, cause), component, method, action)
}

// CheckCapacity validates a constructor argument.
func CheckCapacity(capacity int, component string) error {
	if capacity <= 0 {
		return Wrap(fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity), component, "New", "validate capacity")
	}
	return nil
}
