package tandem

import (
	"github.com/charmbracelet/log"
)

// Option represents an option that can be passed to New to customize a Runtime.
type Option func(*Runtime)

// WithSize sets the number of workers. Defaults to runtime.NumCPU().
func WithSize(size int) Option {
	return func(r *Runtime) {
		r.size = size
	}
}

// WithRaceReserve sets how many workers Race leaves unused when admitting
// candidates. Defaults to 1.
func WithRaceReserve(reserve int) Option {
	return func(r *Runtime) {
		r.raceReserve = reserve
	}
}

// WithBackend selects the executor backend ("fixed", "ants" or "workerpool").
func WithBackend(backend string) Option {
	return func(r *Runtime) {
		r.backend = backend
	}
}

// WithWarmUpTasks sets how many trivial tasks WarmUp races. Defaults to 1000.
func WithWarmUpTasks(count int) Option {
	return func(r *Runtime) {
		r.warmUpTasks = count
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithPanicHandler sets the function invoked with the error describing a
// panicking task. The default handler logs it at error level.
func WithPanicHandler(handler func(err error, stack []byte)) Option {
	return func(r *Runtime) {
		r.panicHandler = handler
	}
}
