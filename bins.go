package tandem

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// WorkBin is the bin that accumulates the execution time of every task run by a Runtime.
const WorkBin = "ALL_WORK"

// Bins is a set of named duration accumulators. Totals only ever grow.
type Bins struct {
	mutex  sync.RWMutex
	totals map[string]*atomic.Int64
}

// NewBins creates an empty set of bins.
func NewBins() *Bins {
	return &Bins{
		totals: make(map[string]*atomic.Int64),
	}
}

// Add adds d to the named bin, creating it if needed. Negative durations are ignored.
func (b *Bins) Add(name string, d time.Duration) {
	if d < 0 {
		return
	}
	b.bin(name).Add(int64(d))
}

// Duration returns the current total of the named bin, or zero if it has never been used.
func (b *Bins) Duration(name string) time.Duration {
	b.mutex.RLock()
	total, ok := b.totals[name]
	b.mutex.RUnlock()

	if !ok {
		return 0
	}
	return time.Duration(total.Load())
}

// Names returns the names of all bins in lexical order.
func (b *Bins) Names() []string {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	names := make([]string, 0, len(b.totals))
	for name := range b.totals {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func (b *Bins) bin(name string) *atomic.Int64 {
	b.mutex.RLock()
	total, ok := b.totals[name]
	b.mutex.RUnlock()

	if ok {
		return total
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if total, ok = b.totals[name]; !ok {
		total = &atomic.Int64{}
		b.totals[name] = total
	}
	return total
}

// TimeSpan runs f and returns its result together with how long it took.
func TimeSpan[R any](f func() R) (R, time.Duration) {
	start := time.Now()
	result := f()

	return result, time.Since(start)
}

// TimeSpanToBin runs f, adds its duration to the named bin and returns its result.
func TimeSpanToBin[R any](bins *Bins, name string, f func() R) R {
	result, elapsed := TimeSpan(f)
	bins.Add(name, elapsed)

	return result
}
