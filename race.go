package tandem

import (
	"errors"
	"fmt"
)

// ErrNoCandidates is the panic value of Race when called without candidates.
var ErrNoCandidates = errors.New("tandem: race needs at least one candidate")

// Race runs alternative computations of the same result and returns the
// first result delivered.
//
// At most RaceBudget() candidates are submitted, taken in the given order;
// the rest are dropped without ever running, so that each admitted candidate
// can get a worker of its own.
//
// Losing candidates are not stopped. They run to completion in the
// background and their results are discarded. If no admitted candidate ever
// delivers, Race blocks forever. On a stopped runtime Race panics with an
// error wrapping ErrStopped.
func Race[R any](rt *Runtime, candidates []Task[R]) R {
	if len(candidates) == 0 {
		panic(ErrNoCandidates)
	}
	for i, candidate := range candidates {
		if candidate == nil {
			panic(fmt.Sprintf("tandem: nil candidate at index %d", i))
		}
	}

	admitted := candidates
	if budget := rt.RaceBudget(); len(candidates) > budget {
		admitted = candidates[:budget]

		rt.droppedCandidatesCount.Add(uint64(len(candidates) - budget))
		rt.logger.Debug("race admission limit reached",
			"candidates", len(candidates),
			"admitted", budget,
			"dropped", len(candidates)-budget)
	}

	winner := make(chan R, 1)

	for i, candidate := range admitted {
		err := rt.submit(func() {
			result := candidate()

			// Only the first delivery fits, later ones are discarded
			select {
			case winner <- result:
			default:
			}
		})
		if err != nil {
			panic(fmt.Errorf("tandem: race candidate %d: %w", i, err))
		}
	}

	return <-winner
}
