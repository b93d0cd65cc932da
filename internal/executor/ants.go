package executor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/alitto/tandem/internal/dispatcher"
)

// antsPool runs tasks on a preallocated ants pool. ants blocks the submitter
// while every worker is busy, so submissions go through a dispatcher and only
// its goroutine ever waits on ants. ants.Pool.Running counts live worker
// goroutines rather than busy ones, hence the separate runningCount.
type antsPool struct {
	pool         *ants.Pool
	dispatcher   *dispatcher.Dispatcher[func()]
	tasks        sync.WaitGroup
	runningCount atomic.Int64
	stopOnce     sync.Once
}

func newAnts(size int, o *options) (*antsPool, error) {
	pool, err := ants.NewPool(size,
		ants.WithPreAlloc(true),
		ants.WithDisablePurge(true),
		ants.WithPanicHandler(func(p any) {
			o.panicHandler(p, nil)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ants pool: %w", err)
	}

	p := &antsPool{
		pool: pool,
	}
	p.dispatcher = dispatcher.New(p.dispatch, o.batchSize)

	return p, nil
}

func (p *antsPool) Go(task func()) error {
	if err := p.dispatcher.Write(task); err != nil {
		return ErrStopped
	}
	return nil
}

func (p *antsPool) Size() int {
	return p.pool.Cap()
}

func (p *antsPool) Running() int {
	return int(p.runningCount.Load())
}

func (p *antsPool) Waiting() uint64 {
	return p.dispatcher.Len() + uint64(p.pool.Waiting())
}

func (p *antsPool) StopAndWait() {
	p.stopOnce.Do(func() {
		p.dispatcher.CloseAndWait()
		p.tasks.Wait()
		p.pool.Release()
	})
}

func (p *antsPool) dispatch(batch []func()) {
	for _, task := range batch {
		// Added on the dispatcher goroutine so every Add happens before the Wait in StopAndWait
		p.tasks.Add(1)
		err := p.pool.Submit(func() {
			p.runningCount.Add(1)
			defer func() {
				p.runningCount.Add(-1)
				p.tasks.Done()
			}()
			task()
		})
		if err != nil {
			// Only possible once the pool has been released
			p.tasks.Done()
		}
	}
}
