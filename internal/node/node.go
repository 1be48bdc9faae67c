// Package node holds the link type shared by the linked ring variants.
package node

// Node is one element of a circular singly-linked list.
// The occupied flag is the only source of truth for whether Value means
// anything; a zero Value may be a legitimate stored element.
type Node[T any] struct {
	Value    T
	Next     *Node[T]
	occupied bool
}

// Put stores v in n and marks it occupied.
func (n *Node[T]) Put(v T) {
	n.Value = v
	n.occupied = true
}

// Take returns the stored value and leaves n empty.
func (n *Node[T]) Take() T {
	v := n.Value
	var zero T
	n.Value = zero
	n.occupied = false
	return v
}

// Occupied reports whether n holds a value.
func (n *Node[T]) Occupied() bool {
	return n.occupied
}

// Link joins the elements of arena into one ring: each node points at the
// next and the last points back at the first. It returns the first node,
// or nil for an empty arena.
func Link[T any](arena []Node[T]) *Node[T] {
	if len(arena) == 0 {
		return nil
	}
	for i := range arena {
		arena[i].Next = &arena[(i+1)%len(arena)]
	}
	return &arena[0]
}
