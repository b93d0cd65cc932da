package executor

import (
	"sync"
	"sync/atomic"

	"github.com/gammazero/workerpool"
)

// gammazeroPool runs tasks on a gammazero/workerpool. Its Submit already
// queues without blocking; tasks are guarded because workerpool does not
// recover panics.
type gammazeroPool struct {
	pool         *workerpool.WorkerPool
	size         int
	runningCount atomic.Int64
	stopMutex    sync.RWMutex
	stopped      bool
	panicHandler PanicHandler
}

func newWorkerpool(size int, o *options) *gammazeroPool {
	return &gammazeroPool{
		pool:         workerpool.New(size),
		size:         size,
		panicHandler: o.panicHandler,
	}
}

func (p *gammazeroPool) Go(task func()) error {
	p.stopMutex.RLock()
	defer p.stopMutex.RUnlock()

	if p.stopped {
		return ErrStopped
	}

	p.pool.Submit(func() {
		p.runningCount.Add(1)
		defer p.runningCount.Add(-1)

		guard(task, p.panicHandler)
	})

	return nil
}

func (p *gammazeroPool) Size() int {
	return p.size
}

func (p *gammazeroPool) Running() int {
	return int(p.runningCount.Load())
}

func (p *gammazeroPool) Waiting() uint64 {
	return uint64(p.pool.WaitingQueueSize())
}

func (p *gammazeroPool) StopAndWait() {
	p.stopMutex.Lock()
	if p.stopped {
		p.stopMutex.Unlock()
		return
	}
	p.stopped = true
	p.stopMutex.Unlock()

	p.pool.StopWait()
}
