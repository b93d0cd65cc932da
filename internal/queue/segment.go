package queue

import (
	"errors"
	"sync/atomic"
)

// errSegmentFull is returned by a segment that has been written or read to its capacity.
var errSegmentFull = errors.New("segment exhausted")

// segment is a fixed-capacity slice of the queue. Reads and writes are
// serialized by the owning Queue's mutex; the indexes are atomic so that
// Len can be computed without it.
type segment[T any] struct {
	items     []T
	writeNext atomic.Int64
	readNext  atomic.Int64
	next      *segment[T]
}

func newSegment[T any](capacity int) *segment[T] {
	return &segment[T]{
		items: make([]T, capacity),
	}
}

func (s *segment[T]) capacity() int {
	return len(s.items)
}

// push copies as many values as fit and returns how many were stored.
func (s *segment[T]) push(values []T) (int, error) {
	w := int(s.writeNext.Load())
	if w >= s.capacity() {
		return 0, errSegmentFull
	}

	n := min(len(values), s.capacity()-w)
	copy(s.items[w:w+n], values[:n])

	s.writeNext.Add(int64(n))
	return n, nil
}

// pop moves up to len(dst) unread values into dst. Slots are zeroed once
// read so the queue does not pin finished tasks in memory.
func (s *segment[T]) pop(dst []T) (int, error) {
	r := int(s.readNext.Load())
	if r >= s.capacity() {
		return 0, errSegmentFull
	}

	unread := int(s.writeNext.Load()) - r
	if unread <= 0 {
		return 0, nil
	}

	n := min(len(dst), unread)
	copy(dst[:n], s.items[r:r+n])

	var zero T
	for i := r; i < r+n; i++ {
		s.items[i] = zero
	}

	s.readNext.Add(int64(n))
	return n, nil
}
