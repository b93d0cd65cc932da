// Package executor provides the fixed-size worker pools that run submitted tasks.
//
// Three backends are available. The native "fixed" pool starts all of its
// workers up front and feeds them from an unbounded queue. The "ants" and
// "workerpool" backends delegate execution to github.com/panjf2000/ants/v2 and
// github.com/gammazero/workerpool respectively.
//
// Every backend accepts tasks without blocking the caller, runs each task on
// exactly one worker and recovers from task panics so that a failing task
// never takes a worker down with it.
package executor

import (
	"errors"
	"fmt"
	"runtime/debug"
)

const (
	Fixed      = "fixed"
	Ants       = "ants"
	Workerpool = "workerpool"
)

var (
	// ErrStopped is returned when submitting to an executor that has been stopped.
	ErrStopped = errors.New("executor has been stopped")

	// ErrUnknownBackend is returned by New for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown executor backend")
)

// Backends lists the supported backend names.
var Backends = []string{Fixed, Ants, Workerpool}

// Executor runs tasks on a fixed number of workers.
type Executor interface {
	// Go queues a task for execution. It does not wait for the task to start.
	Go(task func()) error

	// Size returns the number of workers. It never changes.
	Size() int

	// Running returns the number of workers currently executing a task.
	Running() int

	// Waiting returns the number of tasks queued but not yet started.
	Waiting() uint64

	// StopAndWait stops accepting tasks, runs the ones already queued and waits for workers to exit.
	StopAndWait()
}

// PanicHandler receives the value recovered from a panicking task along with its stack trace.
type PanicHandler func(recovered any, stack []byte)

type options struct {
	panicHandler PanicHandler
	batchSize    int
}

// Option customizes an executor.
type Option func(*options)

// WithPanicHandler sets the function invoked when a task panics.
func WithPanicHandler(handler PanicHandler) Option {
	return func(o *options) {
		o.panicHandler = handler
	}
}

// New creates an executor of the given backend with size workers.
func New(backend string, size int, opts ...Option) (Executor, error) {
	if size <= 0 {
		return nil, fmt.Errorf("executor size must be greater than 0, got %d", size)
	}

	o := &options{
		panicHandler: func(any, []byte) {},
		batchSize:    size,
	}
	for _, opt := range opts {
		opt(o)
	}

	switch backend {
	case Fixed, "":
		return newFixed(size, o), nil
	case Ants:
		return newAnts(size, o)
	case Workerpool:
		return newWorkerpool(size, o), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// guard runs task and reports a panic to handler instead of propagating it.
func guard(task func(), handler PanicHandler) {
	defer func() {
		if p := recover(); p != nil {
			handler(p, debug.Stack())
		}
	}()

	task()
}
