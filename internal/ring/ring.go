package ring

// Circular fixed capacity FIFO used for frame queues and logs.
// One slot is always kept empty so that readPos == writePos means empty
// and writePos+1 == readPos means full.
// Not safe for concurrent use, owners must serialize access.
type Ring[T any] struct {
	buffer   []T
	writePos int
	readPos  int
}

// Create a new ring able to hold size-1 elements
func New[T any](size int) *Ring[T] {
	if size < 2 {
		size = 2
	}
	return &Ring[T]{buffer: make([]T, size)}
}

func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.buffer {
		r.buffer[i] = zero
	}
	r.readPos = 0
	r.writePos = 0
}

// Number of elements that can still be enqueued
func (r *Ring[T]) Space() int {
	sizeLeft := r.readPos - r.writePos - 1
	if sizeLeft < 0 {
		sizeLeft += len(r.buffer)
	}
	return sizeLeft
}

// Number of elements currently stored
func (r *Ring[T]) Len() int {
	sizeOccupied := r.writePos - r.readPos
	if sizeOccupied < 0 {
		sizeOccupied += len(r.buffer)
	}
	return sizeOccupied
}

// Maximum number of elements that can be stored
func (r *Ring[T]) Cap() int {
	return len(r.buffer) - 1
}

func (r *Ring[T]) Empty() bool {
	return r.readPos == r.writePos
}

func (r *Ring[T]) Full() bool {
	return r.next(r.writePos) == r.readPos
}

func (r *Ring[T]) next(pos int) int {
	pos++
	if pos == len(r.buffer) {
		return 0
	}
	return pos
}

// Push an element at the back of the ring
// Returns false without modifying the ring if it is full
func (r *Ring[T]) Push(element T) bool {
	writePosNext := r.next(r.writePos)
	if writePosNext == r.readPos {
		return false
	}
	r.buffer[r.writePos] = element
	r.writePos = writePosNext
	return true
}

// Pop the oldest element
// Returns false without modifying the ring if it is empty
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	if r.readPos == r.writePos {
		return zero, false
	}
	element := r.buffer[r.readPos]
	r.buffer[r.readPos] = zero
	r.readPos = r.next(r.readPos)
	return element, true
}

// Peek at the oldest element without removing it
func (r *Ring[T]) Peek() (T, bool) {
	var zero T
	if r.readPos == r.writePos {
		return zero, false
	}
	return r.buffer[r.readPos], true
}

// Copy out all stored elements, oldest first, without removing them
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, 0, r.Len())
	for pos := r.readPos; pos != r.writePos; pos = r.next(pos) {
		out = append(out, r.buffer[pos])
	}
	return out
}
