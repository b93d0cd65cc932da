package executor

import (
	"sync"
	"sync/atomic"

	"github.com/alitto/tandem/internal/dispatcher"
)

// fixedPool starts all of its workers at creation. Submitted tasks go into
// the dispatcher's unbounded queue, and the dispatcher goroutine forwards them
// to the workers through a channel as wide as the pool.
type fixedPool struct {
	size            int
	tasks           chan func()
	dispatcher      *dispatcher.Dispatcher[func()]
	runningCount    atomic.Int64
	waitingCount    atomic.Int64
	workerWaitGroup sync.WaitGroup
	stopOnce        sync.Once
	panicHandler    PanicHandler
}

func newFixed(size int, o *options) *fixedPool {
	p := &fixedPool{
		size:         size,
		tasks:        make(chan func(), size),
		panicHandler: o.panicHandler,
	}

	p.dispatcher = dispatcher.New(p.dispatch, o.batchSize)

	p.workerWaitGroup.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}

	return p
}

func (p *fixedPool) Go(task func()) error {
	p.waitingCount.Add(1)
	if err := p.dispatcher.Write(task); err != nil {
		p.waitingCount.Add(-1)
		return ErrStopped
	}
	return nil
}

func (p *fixedPool) Size() int {
	return p.size
}

func (p *fixedPool) Running() int {
	return int(p.runningCount.Load())
}

func (p *fixedPool) Waiting() uint64 {
	return uint64(max(0, p.waitingCount.Load()))
}

func (p *fixedPool) StopAndWait() {
	p.stopOnce.Do(func() {
		p.dispatcher.CloseAndWait()
		close(p.tasks)
		p.workerWaitGroup.Wait()
	})
}

// dispatch runs on the dispatcher goroutine and blocks until a worker accepts each task.
func (p *fixedPool) dispatch(batch []func()) {
	for _, task := range batch {
		p.tasks <- task
	}
}

func (p *fixedPool) worker() {
	defer p.workerWaitGroup.Done()

	for task := range p.tasks {
		p.waitingCount.Add(-1)
		p.runningCount.Add(1)
		guard(task, p.panicHandler)
		p.runningCount.Add(-1)
	}
}
