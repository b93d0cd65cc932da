// Package dispatcher moves values written by many goroutines into a single
// consumer goroutine without ever blocking the writers.
package dispatcher

import (
	"errors"
	"sync"

	"github.com/alitto/tandem/internal/queue"
)

var ErrDispatcherClosed = errors.New("dispatcher has been closed")

// Dispatcher buffers values in an unbounded queue and hands them, in batches
// and in write order, to dispatchFunc on a dedicated goroutine.
type Dispatcher[T any] struct {
	queue        *queue.Queue[T]
	notify       chan struct{}
	dispatchFunc func([]T)
	batchSize    int
	closed       bool
	closeMutex   sync.RWMutex
	done         sync.WaitGroup
}

// New creates a dispatcher and starts its consumer goroutine.
func New[T any](dispatchFunc func([]T), batchSize int) *Dispatcher[T] {
	if batchSize <= 0 {
		batchSize = 1
	}

	d := &Dispatcher[T]{
		queue:        queue.New[T](batchSize, 10*batchSize),
		notify:       make(chan struct{}, 1),
		dispatchFunc: dispatchFunc,
		batchSize:    batchSize,
	}

	d.done.Add(1)
	go d.run()

	return d
}

// Write enqueues values. It never blocks on the consumer.
func (d *Dispatcher[T]) Write(values ...T) error {
	d.closeMutex.RLock()
	defer d.closeMutex.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	d.queue.Push(values...)

	// Wake up the consumer if it is not already awake
	select {
	case d.notify <- struct{}{}:
	default:
	}

	return nil
}

// WriteCount returns the number of values written since creation.
func (d *Dispatcher[T]) WriteCount() uint64 {
	return d.queue.Pushed()
}

// ReadCount returns the number of values handed to dispatchFunc so far.
func (d *Dispatcher[T]) ReadCount() uint64 {
	return d.queue.Popped()
}

// Len returns the number of values still waiting to be dispatched.
func (d *Dispatcher[T]) Len() uint64 {
	return d.queue.Len()
}

// Close stops accepting writes. Values already written are still dispatched.
func (d *Dispatcher[T]) Close() {
	d.closeMutex.Lock()
	defer d.closeMutex.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	close(d.notify)
}

// CloseAndWait closes the dispatcher and waits until every pending value has been dispatched.
func (d *Dispatcher[T]) CloseAndWait() {
	d.Close()
	d.done.Wait()
}

func (d *Dispatcher[T]) run() {
	defer d.done.Done()

	batch := make([]T, d.batchSize)

	for range d.notify {
		d.drain(batch)
	}

	// Channel closed, flush whatever was written before Close
	d.drain(batch)
}

func (d *Dispatcher[T]) drain(batch []T) {
	for {
		n := d.queue.Pop(batch)
		if n == 0 {
			return
		}
		d.dispatchFunc(batch[:n])
	}
}
