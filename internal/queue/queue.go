// Package queue provides the FIFO used to hold advertisements between the
// moment a station hands them to the medium and the moment they are heard.
package queue

// Queue defines the interface for a FIFO of items of type T.
type Queue[T any] interface {
	// Enqueue adds an item to the tail of the queue.
	Enqueue(item T)
	// Dequeue removes and returns the item at the head of the queue.
	// ok is false when the queue is empty.
	Dequeue() (item T, ok bool)
	// Peek returns the item at the head of the queue without removing it.
	Peek() (item T, ok bool)
	// RemoveFunc removes every item for which match returns true, keeping
	// the order of the others, and returns the number of removed items.
	RemoveFunc(match func(T) bool) int
	// Reset to an empty queue
	Reset()
	// IsEmpty returns true if the queue is empty, false otherwise.
	IsEmpty() bool
	// Length returns the number of items in the queue.
	Length() int
}
