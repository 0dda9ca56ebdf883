package utils

// -----------------------------------------------------------------------------
// RingBuffer is a fixed-size FIFO circular buffer.
// True ring buffer - no resizing allowed! Pushing onto a full buffer evicts
// the oldest element. Not safe for concurrent use.
// -----------------------------------------------------------------------------

type RingBuffer[T any] struct {
	data     []T
	capacity int
	head     int // Oldest element
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer with fixed capacity
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 1
	}

	return &RingBuffer[T]{
		data:     make([]T, capacity),
		capacity: capacity,
	}
}

// -----------------------------------------------------------------------------

// Push appends v. When the buffer is full the oldest element is overwritten
// and returned with evicted set to true.
func (rb *RingBuffer[T]) Push(v T) (old T, evicted bool) {
	tail := (rb.head + rb.size) % rb.capacity

	if rb.size == rb.capacity {
		old = rb.data[rb.head]
		evicted = true
		rb.data[tail] = v
		rb.head = (rb.head + 1) % rb.capacity
		return old, evicted
	}

	rb.data[tail] = v
	rb.size++
	return old, false
}

// -----------------------------------------------------------------------------

// Pop removes and returns the oldest element.
func (rb *RingBuffer[T]) Pop() (T, bool) {
	var zero T
	if rb.size == 0 {
		return zero, false
	}

	v := rb.data[rb.head]
	rb.data[rb.head] = zero // release references
	rb.head = (rb.head + 1) % rb.capacity
	rb.size--
	return v, true
}

// -----------------------------------------------------------------------------

// GetAll returns all data in insertion order (oldest to newest)
func (rb *RingBuffer[T]) GetAll() []T {
	result := make([]T, rb.size)
	for i := 0; i < rb.size; i++ {
		result[i] = rb.data[(rb.head+i)%rb.capacity]
	}
	return result
}

// -----------------------------------------------------------------------------

// Size returns current number of elements
func (rb *RingBuffer[T]) Size() int {
	return rb.size
}

// Capacity returns buffer capacity (fixed)
func (rb *RingBuffer[T]) Capacity() int {
	return rb.capacity
}

// IsFull returns whether buffer is full
func (rb *RingBuffer[T]) IsFull() bool {
	return rb.size == rb.capacity
}

// -----------------------------------------------------------------------------

// Clear resets the buffer
func (rb *RingBuffer[T]) Clear() {
	var zero T
	for i := range rb.data {
		rb.data[i] = zero
	}
	rb.head = 0
	rb.size = 0
}
