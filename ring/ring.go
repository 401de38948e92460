// Package ring provides a fixed-capacity FIFO ring buffer.
//
// The backing array is allocated once at construction. Push overwrites the
// oldest element when the ring is full, so Len never exceeds Cap.
//
// A Ring is not safe for concurrent use. Each ring has a single owner;
// readers receive copies via Items or Clone.
package ring

// Ring is a fixed-capacity circular buffer of T.
type Ring[T any] struct {
	data []T
	// head is the index of the oldest element.
	head int
	size int
	// pushed is the total number of elements ever pushed.
	pushed uint64
}

// New creates a ring with the given capacity. Panics if capacity <= 0.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ring: non-positive capacity")
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// Push appends v. If the ring is full the oldest element is evicted and
// returned with evicted=true.
func (r *Ring[T]) Push(v T) (old T, evicted bool) {
	r.pushed++
	if r.size < len(r.data) {
		r.data[(r.head+r.size)%len(r.data)] = v
		r.size++
		return old, false
	}
	old = r.data[r.head]
	r.data[r.head] = v
	r.head = (r.head + 1) % len(r.data)
	return old, true
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.data) }

// Pushed returns the total number of elements ever pushed, including
// evicted ones. Used as a monotonically increasing sequence.
func (r *Ring[T]) Pushed() uint64 { return r.pushed }

// At returns the i-th element in insertion order (0 is the oldest).
// Panics if i is out of range.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.size {
		panic("ring: index out of range")
	}
	return r.data[(r.head+i)%len(r.data)]
}

// Items returns a copy of the stored elements, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := range r.size {
		out[i] = r.data[(r.head+i)%len(r.data)]
	}
	return out
}

// Clear removes all elements. Capacity and Pushed are unchanged.
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.head = 0
	r.size = 0
}

// Clone returns an independent copy with the same capacity and contents.
func (r *Ring[T]) Clone() *Ring[T] {
	c := &Ring[T]{
		data:   make([]T, len(r.data)),
		head:   r.head,
		size:   r.size,
		pushed: r.pushed,
	}
	copy(c.data, r.data)
	return c
}
