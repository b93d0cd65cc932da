package tandem

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alitto/tandem/internal/executor"
)

func newTestRuntime(t *testing.T, options ...Option) *Runtime {
	t.Helper()

	options = append([]Option{WithLogger(log.New(io.Discard))}, options...)
	rt := New(options...)
	t.Cleanup(rt.StopAndWait)

	return rt
}

func TestNewDefaults(t *testing.T) {

	rt := New()

	assert.Greater(t, rt.Size(), 0)
	assert.Equal(t, 1, rt.RaceReserve())
	assert.Equal(t, executor.Fixed, rt.Backend())
	assert.False(t, rt.Started())
	assert.Equal(t, time.Duration(0), rt.WorkBin())
	assert.NotNil(t, rt.Logger())
}

func TestNewWithInvalidOptions(t *testing.T) {

	assert.PanicsWithValue(t, "tandem: size must be greater than 0, got 0", func() {
		New(WithSize(0))
	})
	assert.PanicsWithValue(t, "tandem: race reserve must not be negative, got -1", func() {
		New(WithRaceReserve(-1))
	})
	assert.PanicsWithValue(t, "tandem: warm-up task count must not be negative, got -5", func() {
		New(WithWarmUpTasks(-5))
	})
	assert.PanicsWithValue(t, `tandem: unknown backend "threads", expected one of [fixed ants workerpool]`, func() {
		New(WithBackend("threads"))
	})
}

func TestRaceBudget(t *testing.T) {

	assert.Equal(t, 7, New(WithSize(8)).RaceBudget())
	assert.Equal(t, 5, New(WithSize(8), WithRaceReserve(3)).RaceBudget())
	assert.Equal(t, 8, New(WithSize(8), WithRaceReserve(0)).RaceBudget())
	assert.Equal(t, 1, New(WithSize(1)).RaceBudget())
	assert.Equal(t, 1, New(WithSize(2), WithRaceReserve(5)).RaceBudget())
}

func TestSubmit(t *testing.T) {

	for _, backend := range executor.Backends {
		t.Run(backend, func(t *testing.T) {

			rt := newTestRuntime(t, WithSize(10), WithBackend(backend))

			assert.False(t, rt.Started())

			taskCount := 1000
			var executedCount atomic.Int64
			var wg sync.WaitGroup
			wg.Add(taskCount)

			for i := 0; i < taskCount; i++ {
				rt.Submit(func() {
					defer wg.Done()
					time.Sleep(1 * time.Millisecond)
					executedCount.Add(1)
				})
			}

			assert.True(t, rt.Started())

			wg.Wait()

			assert.Equal(t, int64(taskCount), executedCount.Load())
			assert.Equal(t, uint64(taskCount), rt.SubmittedTasks())
			assert.Eventually(t, func() bool {
				return rt.CompletedTasks() == uint64(taskCount)
			}, time.Second, time.Millisecond)
			assert.Equal(t, uint64(0), rt.FailedTasks())
		})
	}
}

func TestSubmitNilTask(t *testing.T) {

	rt := newTestRuntime(t)

	rt.Submit(nil)

	assert.False(t, rt.Started())
	assert.Equal(t, uint64(0), rt.SubmittedTasks())
}

func TestSubmitWithPanic(t *testing.T) {

	for _, backend := range executor.Backends {
		t.Run(backend, func(t *testing.T) {

			var mutex sync.Mutex
			var reported []error

			rt := newTestRuntime(t, WithSize(1), WithBackend(backend), WithPanicHandler(func(err error, stack []byte) {
				mutex.Lock()
				defer mutex.Unlock()
				reported = append(reported, err)
			}))

			rt.Submit(func() {
				panic("dummy panic")
			})

			// The single worker must keep serving tasks after the panic
			done := make(chan int, 1)
			rt.Submit(func() {
				done <- 10
			})

			assert.Equal(t, 10, <-done)
			assert.Eventually(t, func() bool {
				return rt.FailedTasks() == 1 && rt.SuccessfulTasks() == 1
			}, time.Second, time.Millisecond)

			mutex.Lock()
			defer mutex.Unlock()
			require.Len(t, reported, 1)
			assert.True(t, errors.Is(reported[0], ErrPanic))
			assert.Equal(t, "task panicked: dummy panic", reported[0].Error())
		})
	}
}

func TestSubmitPanicIsLogged(t *testing.T) {

	var buf bytes.Buffer
	var mutex sync.Mutex
	logger := log.New(&lockedWriter{w: &buf, mutex: &mutex})

	rt := New(WithSize(1), WithLogger(logger))

	rt.Submit(func() {
		panic("boom")
	})
	rt.StopAndWait()

	mutex.Lock()
	defer mutex.Unlock()
	assert.Contains(t, buf.String(), "worker recovered from a panic")
	assert.Contains(t, buf.String(), "task panicked: boom")
}

func TestSubmitAfterStop(t *testing.T) {

	rt := newTestRuntime(t, WithSize(2))

	rt.StopAndWait()

	var executed atomic.Bool
	rt.Submit(func() {
		executed.Store(true)
	})

	time.Sleep(10 * time.Millisecond)

	assert.False(t, executed.Load())
	assert.Equal(t, uint64(0), rt.SubmittedTasks())
	assert.Equal(t, uint64(1), rt.DroppedTasks())
}

func TestNewWithEmptyBackend(t *testing.T) {

	rt := newTestRuntime(t, WithBackend(""))

	assert.Equal(t, executor.Fixed, rt.Backend())
}

func TestWorkBinAccumulatesTaskTime(t *testing.T) {

	rt := newTestRuntime(t, WithSize(4))

	taskCount := 8
	taskDuration := 20 * time.Millisecond

	var wg sync.WaitGroup
	wg.Add(taskCount)
	for i := 0; i < taskCount; i++ {
		rt.Submit(func() {
			defer wg.Done()
			time.Sleep(taskDuration)
		})
	}
	wg.Wait()

	// wg.Done runs inside the task, before the wrapper records its duration
	assert.Eventually(t, func() bool {
		return rt.CompletedTasks() == uint64(taskCount)
	}, time.Second, time.Millisecond)

	first := rt.WorkBin()
	assert.GreaterOrEqual(t, first, time.Duration(taskCount)*taskDuration)

	second := rt.WorkBin()
	assert.GreaterOrEqual(t, second, first)

	Parallelize(rt, []Task[int]{func() int {
		time.Sleep(taskDuration)
		return 0
	}})

	assert.Eventually(t, func() bool {
		return rt.WorkBin() >= first+taskDuration
	}, time.Second, time.Millisecond)
}

func TestRunningAndWaitingTasks(t *testing.T) {

	rt := newTestRuntime(t, WithSize(2))

	assert.Equal(t, 0, rt.RunningWorkers())
	assert.Equal(t, uint64(0), rt.WaitingTasks())

	release := make(chan struct{})
	for i := 0; i < 5; i++ {
		rt.Submit(func() {
			<-release
		})
	}

	assert.Eventually(t, func() bool {
		return rt.RunningWorkers() == 2 && rt.WaitingTasks() == 3
	}, time.Second, time.Millisecond)

	close(release)

	assert.Eventually(t, func() bool {
		return rt.RunningWorkers() == 0 && rt.WaitingTasks() == 0
	}, time.Second, time.Millisecond)
}

// recoverError runs f and returns the error it panicked with, if any.
func recoverError(f func()) (err error) {
	defer func() {
		err, _ = recover().(error)
	}()

	f()
	return nil
}

type lockedWriter struct {
	w     io.Writer
	mutex *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.w.Write(p)
}
