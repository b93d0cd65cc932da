// Package queue provides the unbounded FIFO queue that sits between task
// submitters and the dispatcher goroutine.
package queue

import (
	"sync"
	"sync/atomic"
)

// Queue is an unbounded FIFO buffer safe for concurrent producers and a
// single consumer. It grows by chaining segments, each larger than the last
// up to maxSegment elements.
type Queue[T any] struct {
	head *segment[T] // being read
	tail *segment[T] // being written

	maxSegment int
	pushed     atomic.Uint64
	popped     atomic.Uint64
	mutex      sync.Mutex
}

// New creates a queue whose first segment holds initialSegment elements.
func New[T any](initialSegment, maxSegment int) *Queue[T] {
	if initialSegment <= 0 {
		initialSegment = 1
	}
	if maxSegment < initialSegment {
		maxSegment = initialSegment
	}

	first := newSegment[T](initialSegment)

	return &Queue[T]{
		head:       first,
		tail:       first,
		maxSegment: maxSegment,
	}
}

// Push appends values to the end of the queue.
func (q *Queue[T]) Push(values ...T) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	remaining := values
	for len(remaining) > 0 {
		n, err := q.tail.push(remaining)
		if err == errSegmentFull {
			q.grow()
			continue
		}
		remaining = remaining[n:]
	}

	q.pushed.Add(uint64(len(values)))
}

// grow links a new segment after the tail. Must be called with the mutex held.
func (q *Queue[T]) grow() {
	size := q.tail.capacity()
	if size < 1024 {
		size *= 2
	} else {
		size += size / 2
	}
	if size > q.maxSegment {
		size = q.maxSegment
	}

	q.tail.next = newSegment[T](size)
	q.tail = q.tail.next
}

// Pop moves up to len(dst) values from the front of the queue into dst and
// returns how many were moved. It returns 0 when the queue is empty.
func (q *Queue[T]) Pop(dst []T) int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for {
		n, err := q.head.pop(dst)
		if err == errSegmentFull {
			if q.head.next == nil {
				return 0
			}
			q.head = q.head.next
			continue
		}

		q.popped.Add(uint64(n))
		return n
	}
}

// Pushed returns the number of values ever pushed.
func (q *Queue[T]) Pushed() uint64 {
	return q.pushed.Load()
}

// Popped returns the number of values ever popped.
func (q *Queue[T]) Popped() uint64 {
	return q.popped.Load()
}

// Len returns the number of values waiting in the queue.
func (q *Queue[T]) Len() uint64 {
	pushed := q.pushed.Load()
	popped := q.popped.Load()

	if pushed < popped {
		return 0
	}

	return pushed - popped
}
