package tandem

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/alitto/tandem/internal/executor"
)

const (
	// defaultRaceReserve is the number of workers Race keeps free by default
	defaultRaceReserve = 1

	// defaultWarmUpTasks is the number of trivial tasks raced by WarmUp by default
	defaultWarmUpTasks = 1000
)

var (
	// ErrPanic wraps the value recovered from a panicking task.
	ErrPanic = errors.New("task panicked")

	// ErrStopped is wrapped by the panic value of Parallelize and Race when
	// called on a runtime that has been stopped.
	ErrStopped = executor.ErrStopped
)

// Runtime is the process-scoped home of the worker pool and the work-time
// accounting. Create one at startup with New and pass it to every component
// that submits work; there is no package-level default.
type Runtime struct {
	// Configurable settings
	size         int
	raceReserve  int
	backend      string
	warmUpTasks  int
	logger       *log.Logger
	panicHandler func(err error, stack []byte)

	// Lazily created executor
	executorOnce sync.Once
	executor     executor.Executor
	executorErr  error
	started      atomic.Bool

	bins *Bins

	// Atomic counters
	submittedTaskCount     atomic.Uint64
	successfulTaskCount    atomic.Uint64
	failedTaskCount        atomic.Uint64
	droppedTaskCount       atomic.Uint64
	droppedCandidatesCount atomic.Uint64
}

// New creates a Runtime. The worker pool itself is only created on the first
// submission, and its size does not change afterwards.
// New panics if the options are inconsistent.
func New(options ...Option) *Runtime {

	r := &Runtime{
		size:        runtime.NumCPU(),
		raceReserve: defaultRaceReserve,
		backend:     executor.Fixed,
		warmUpTasks: defaultWarmUpTasks,
		bins:        NewBins(),
	}

	for _, opt := range options {
		opt(r)
	}

	if r.size <= 0 {
		panic(fmt.Sprintf("tandem: size must be greater than 0, got %d", r.size))
	}
	if r.raceReserve < 0 {
		panic(fmt.Sprintf("tandem: race reserve must not be negative, got %d", r.raceReserve))
	}
	if r.warmUpTasks < 0 {
		panic(fmt.Sprintf("tandem: warm-up task count must not be negative, got %d", r.warmUpTasks))
	}
	if r.backend == "" {
		r.backend = executor.Fixed
	}
	if !slices.Contains(executor.Backends, r.backend) {
		panic(fmt.Sprintf("tandem: unknown backend %q, expected one of %v", r.backend, executor.Backends))
	}
	if r.logger == nil {
		r.logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "tandem",
			Level:  log.WarnLevel,
		})
	}
	if r.panicHandler == nil {
		r.panicHandler = r.logPanic
	}

	return r
}

// Size returns the number of workers.
func (r *Runtime) Size() int {
	return r.size
}

// Backend returns the name of the executor backend.
func (r *Runtime) Backend() string {
	return r.backend
}

// RaceReserve returns the number of workers Race keeps free.
func (r *Runtime) RaceReserve() int {
	return r.raceReserve
}

// RaceBudget returns the maximum number of candidates a single Race submits.
// It is never less than one.
func (r *Runtime) RaceBudget() int {
	return max(1, r.size-r.raceReserve)
}

// Logger returns the logger used for diagnostics.
func (r *Runtime) Logger() *log.Logger {
	return r.logger
}

// Bins returns the duration bins fed by this runtime.
func (r *Runtime) Bins() *Bins {
	return r.bins
}

// WorkBin returns the summed execution time of every task run so far.
func (r *Runtime) WorkBin() time.Duration {
	return r.bins.Duration(WorkBin)
}

// Started returns true once the worker pool has been created.
func (r *Runtime) Started() bool {
	return r.started.Load()
}

// SubmittedTasks returns the total number of tasks submitted since the runtime was created.
func (r *Runtime) SubmittedTasks() uint64 {
	return r.submittedTaskCount.Load()
}

// SuccessfulTasks returns the number of tasks that ran to completion.
func (r *Runtime) SuccessfulTasks() uint64 {
	return r.successfulTaskCount.Load()
}

// FailedTasks returns the number of tasks that panicked.
func (r *Runtime) FailedTasks() uint64 {
	return r.failedTaskCount.Load()
}

// CompletedTasks returns the number of tasks that finished, successfully or with a panic.
func (r *Runtime) CompletedTasks() uint64 {
	return r.SuccessfulTasks() + r.FailedTasks()
}

// DroppedTasks returns the number of tasks rejected because the runtime was stopped.
func (r *Runtime) DroppedTasks() uint64 {
	return r.droppedTaskCount.Load()
}

// DroppedCandidates returns the number of race candidates never submitted because of admission control.
func (r *Runtime) DroppedCandidates() uint64 {
	return r.droppedCandidatesCount.Load()
}

// RunningWorkers returns the number of workers currently executing a task.
func (r *Runtime) RunningWorkers() int {
	if !r.Started() {
		return 0
	}
	return r.executor.Running()
}

// WaitingTasks returns the number of submitted tasks that have not started yet.
func (r *Runtime) WaitingTasks() uint64 {
	if !r.Started() {
		return 0
	}
	return r.executor.Waiting()
}

// Submit queues task for execution on a worker and returns immediately.
// The task's execution time is added to WorkBin. A panic inside the task is
// recovered and reported to the panic handler; the worker moves on to the
// next task. Tasks submitted after StopAndWait are logged and dropped.
func (r *Runtime) Submit(task func()) {
	if task == nil {
		return
	}

	if err := r.submit(task); err != nil {
		r.logger.Error("task dropped", "err", err)
	}
}

// submit queues task and reports why it was dropped, if it was.
func (r *Runtime) submit(task func()) error {
	exec, err := r.pool()
	if err != nil {
		r.droppedTaskCount.Add(1)
		return err
	}

	r.submittedTaskCount.Add(1)

	if err := exec.Go(r.timed(task)); err != nil {
		r.submittedTaskCount.Add(^uint64(0))
		r.droppedTaskCount.Add(1)
		return fmt.Errorf("submitting task: %w", err)
	}
	return nil
}

// StopAndWait waits for every queued task to finish and stops the workers.
// Tasks submitted afterwards are dropped, and Parallelize or Race called
// afterwards panic with an error wrapping ErrStopped instead of waiting for
// results that would never come.
func (r *Runtime) StopAndWait() {
	exec, err := r.pool()
	if err != nil {
		return
	}
	exec.StopAndWait()
}

// pool returns the executor, creating it on first use.
func (r *Runtime) pool() (executor.Executor, error) {
	r.executorOnce.Do(func() {
		r.executor, r.executorErr = executor.New(r.backend, r.size,
			executor.WithPanicHandler(func(recovered any, stack []byte) {
				r.panicHandler(fmt.Errorf("%w: %v", ErrPanic, recovered), stack)
			}),
		)
		if r.executorErr != nil {
			r.executorErr = fmt.Errorf("creating worker pool: %w", r.executorErr)
			return
		}
		r.started.Store(true)
		r.logger.Debug("worker pool started", "backend", r.backend, "size", r.size)
	})

	return r.executor, r.executorErr
}

// timed wraps task so that its duration lands in WorkBin and its outcome in the task counters.
func (r *Runtime) timed(task func()) func() {
	return func() {
		start := time.Now()

		defer func() {
			r.bins.Add(WorkBin, time.Since(start))

			if p := recover(); p != nil {
				r.failedTaskCount.Add(1)
				r.panicHandler(fmt.Errorf("%w: %v", ErrPanic, p), debug.Stack())
				return
			}

			r.successfulTaskCount.Add(1)
		}()

		task()
	}
}

func (r *Runtime) logPanic(err error, stack []byte) {
	r.logger.Error("worker recovered from a panic", "err", err, "stack", string(stack))
}
