package tandem

import (
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alitto/tandem/internal/executor"
)

func TestParallelizePreservesOrder(t *testing.T) {

	for _, backend := range executor.Backends {
		t.Run(backend, func(t *testing.T) {

			rt := newTestRuntime(t, WithSize(8), WithBackend(backend))

			taskCount := 50
			tasks := make([]Task[int], taskCount)
			expected := make([]int, taskCount)
			for i := range tasks {
				delay := time.Duration(50+rand.Intn(201)) * time.Millisecond
				tasks[i] = func() int {
					time.Sleep(delay)
					return i
				}
				expected[i] = i
			}

			results := Parallelize(rt, tasks)

			assert.Equal(t, expected, results)
		})
	}
}

func TestParallelizeReverseCompletion(t *testing.T) {

	rt := newTestRuntime(t, WithSize(10))

	// The last task finishes first
	tasks := make([]Task[string], 10)
	for i := range tasks {
		tasks[i] = func() string {
			time.Sleep(time.Duration(10-i) * 5 * time.Millisecond)
			return string(rune('a' + i))
		}
	}

	results := Parallelize(rt, tasks)

	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}, results)
}

func TestParallelizeMoreTasksThanWorkers(t *testing.T) {

	rt := newTestRuntime(t, WithSize(2))

	tasks := make([]Task[int], 200)
	for i := range tasks {
		tasks[i] = func() int {
			return i * i
		}
	}

	results := Parallelize(rt, tasks)

	assert.Len(t, results, 200)
	for i, v := range results {
		assert.Equal(t, i*i, v)
	}
	assert.Equal(t, uint64(200), rt.SubmittedTasks())
}

func TestParallelizeEmpty(t *testing.T) {

	rt := newTestRuntime(t)

	results := Parallelize(rt, []Task[int]{})

	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.False(t, rt.Started())
	assert.Equal(t, uint64(0), rt.SubmittedTasks())

	assert.Empty(t, Parallelize[int](rt, nil))
}

func TestParallelizeNilTask(t *testing.T) {

	rt := newTestRuntime(t)

	assert.PanicsWithValue(t, "tandem: nil task at index 1", func() {
		Parallelize(rt, []Task[int]{func() int { return 0 }, nil})
	})
	assert.Equal(t, uint64(0), rt.SubmittedTasks())
}

func TestParallelizeBlocksWhenTaskPanics(t *testing.T) {

	rt := newTestRuntime(t, WithSize(2), WithPanicHandler(func(error, []byte) {}))

	var returned atomic.Bool
	go func() {
		Parallelize(rt, []Task[int]{
			func() int { return 1 },
			func() int { panic("dummy panic") },
		})
		returned.Store(true)
	}()

	assert.Eventually(t, func() bool {
		return rt.FailedTasks() == 1
	}, time.Second, time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.False(t, returned.Load())

	// The pool is still usable
	results := Parallelize(rt, []Task[int]{func() int { return 42 }})
	assert.Equal(t, []int{42}, results)
}

func TestParallelizeAfterStop(t *testing.T) {

	for _, backend := range executor.Backends {
		t.Run(backend, func(t *testing.T) {

			rt := newTestRuntime(t, WithSize(2), WithBackend(backend))
			rt.StopAndWait()

			done := make(chan error, 1)
			go func() {
				done <- recoverError(func() {
					Parallelize(rt, []Task[int]{
						func() int { return 1 },
					})
				})
			}()

			select {
			case err := <-done:
				assert.ErrorIs(t, err, ErrStopped)
				assert.EqualError(t, err, "tandem: parallelize task 0: submitting task: executor has been stopped")
			case <-time.After(time.Second):
				t.Fatal("Parallelize did not return on a stopped runtime")
			}

			assert.Equal(t, uint64(1), rt.DroppedTasks())
		})
	}
}
