// Package ring provides the fixed-capacity circular buffer used for
// windowing sample streams and for the aggregator's bounded result history.
// Buffers are single-producer/single-consumer primitives with no internal
// locking; callers running capture and consumption on different goroutines
// must serialize access externally.
package ring

// Error is a wrapper for the specific kinds of failures a buffer can
// produce; there is no additional information necessary beyond the kind.
type Error struct{ string }

func (err Error) Error() string {
	return err.string
}

var (
	ErrIndexOutOfRange = Error{"ring: index out of range"}
	ErrEmpty           = Error{"ring: buffer is empty"}
	ErrBadCapacity     = Error{"ring: capacity must be positive"}
	ErrShortDest       = Error{"ring: destination buffer too small"}
)

// Buffer is a fixed-capacity circular buffer that overwrites its oldest
// entry once full. Get(0) is always the oldest retained element.
type Buffer[T any] struct {
	data  []T
	start int
	size  int
}

// New returns a buffer with the given fixed capacity.
func New[T any](capacity int) (*Buffer[T], error) {
	if capacity <= 0 {
		return nil, ErrBadCapacity
	}
	return &Buffer[T]{data: make([]T, capacity)}, nil
}

// Push appends v, overwriting the oldest entry if the buffer is full. O(1).
func (b *Buffer[T]) Push(v T) {
	if b.size < len(b.data) {
		b.data[(b.start+b.size)%len(b.data)] = v
		b.size++
		return
	}
	b.data[b.start] = v
	b.start = (b.start + 1) % len(b.data)
}

// Get returns the i-th retained element, oldest first.
func (b *Buffer[T]) Get(i int) (T, error) {
	var zero T
	if i < 0 || i >= b.size {
		return zero, ErrIndexOutOfRange
	}
	return b.data[(b.start+i)%len(b.data)], nil
}

// Newest returns the most recently pushed element.
func (b *Buffer[T]) Newest() (T, error) {
	var zero T
	if b.size == 0 {
		return zero, ErrEmpty
	}
	return b.data[(b.start+b.size-1)%len(b.data)], nil
}

// Len returns the number of retained elements, Cap the fixed capacity.
func (b *Buffer[T]) Len() int { return b.size }
func (b *Buffer[T]) Cap() int { return len(b.data) }

// Full reports whether the next Push will overwrite the oldest entry.
func (b *Buffer[T]) Full() bool { return b.size == len(b.data) }

// Reset discards all retained elements without releasing storage.
func (b *Buffer[T]) Reset() {
	b.start, b.size = 0, 0
}

// Do calls f for every retained element, oldest first.
func (b *Buffer[T]) Do(f func(i int, v T)) {
	for i := 0; i < b.size; i++ {
		f(i, b.data[(b.start+i)%len(b.data)])
	}
}

// Slice copies the retained elements, oldest first, into a fresh slice.
func (b *Buffer[T]) Slice() []T {
	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.data[(b.start+i)%len(b.data)]
	}
	return out
}

// FlattenInto writes the numeric contents of every retained element,
// oldest first, directly into dst, avoiding per-tick allocation on the
// high-frequency inference path. values extracts each element's numbers.
// It returns the number of values written; dst must hold them all.
func FlattenInto[T any](dst []float64, b *Buffer[T], values func(T) []float64) (int, error) {
	n := 0
	for i := 0; i < b.size; i++ {
		vs := values(b.data[(b.start+i)%len(b.data)])
		if n+len(vs) > len(dst) {
			return n, ErrShortDest
		}
		n += copy(dst[n:], vs)
	}
	return n, nil
}
