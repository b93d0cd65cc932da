package tandem

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestWarmUp(t *testing.T) {

	rt := newTestRuntime(t, WithSize(4))

	rt.WarmUp()

	assert.True(t, rt.Started())
	assert.Equal(t, uint64(rt.RaceBudget()), rt.SubmittedTasks())
	assert.Equal(t, uint64(1000-rt.RaceBudget()), rt.DroppedCandidates())
}

func TestWarmUpWithoutTasks(t *testing.T) {

	rt := newTestRuntime(t, WithSize(2), WithWarmUpTasks(0))

	rt.WarmUp()

	assert.True(t, rt.Started())
	assert.Equal(t, uint64(0), rt.SubmittedTasks())
}

func TestWarmUpRemovesFirstCallPenalty(t *testing.T) {

	rt := newTestRuntime(t, WithSize(10))

	rt.WarmUp()

	taskDuration := 20 * time.Millisecond
	tasks := make([]Task[int], 10)
	for i := range tasks {
		tasks[i] = func() int {
			time.Sleep(taskDuration)
			return i
		}
	}

	start := time.Now()
	results := Parallelize(rt, tasks)
	wall := time.Since(start)

	assert.Len(t, results, 10)
	assert.GreaterOrEqual(t, wall, taskDuration)
	assert.Less(t, wall, 5*taskDuration)
}

func TestWarmUpLogsPoolFailure(t *testing.T) {

	var buf bytes.Buffer
	var mutex sync.Mutex
	logger := log.New(&lockedWriter{w: &buf, mutex: &mutex})

	rt := New(WithSize(2), WithLogger(logger))
	// Only reachable through a backend failure, New rejects unknown names
	rt.backend = "threads"

	rt.WarmUp()

	assert.False(t, rt.Started())
	assert.Equal(t, uint64(0), rt.SubmittedTasks())

	mutex.Lock()
	defer mutex.Unlock()
	assert.Contains(t, buf.String(), "warm-up failed")
	assert.Contains(t, buf.String(), "unknown executor backend")
}
