package tandem

import (
	"cmp"
	"fmt"
	"slices"
)

// Task is a unit of work that produces a single result.
type Task[R any] func() R

// tagged pairs a result with the submission index of the task that produced it.
type tagged[R any] struct {
	index int
	value R
}

// Parallelize runs every task on the runtime's workers and returns their
// results in the order the tasks were given, whatever order they finish in.
//
// Parallelize blocks until all tasks have delivered. A task that panics never
// delivers, so Parallelize then blocks forever: no placeholder result is made
// up on its behalf. An empty task list returns an empty slice right away.
// On a stopped runtime Parallelize panics with an error wrapping ErrStopped.
func Parallelize[R any](rt *Runtime, tasks []Task[R]) []R {
	if len(tasks) == 0 {
		return []R{}
	}
	for i, task := range tasks {
		if task == nil {
			panic(fmt.Sprintf("tandem: nil task at index %d", i))
		}
	}

	results := make(chan tagged[R], len(tasks))

	for i, task := range tasks {
		err := rt.submit(func() {
			results <- tagged[R]{index: i, value: task()}
		})
		if err != nil {
			panic(fmt.Errorf("tandem: parallelize task %d: %w", i, err))
		}
	}

	collected := make([]tagged[R], 0, len(tasks))
	for len(collected) < len(tasks) {
		collected = append(collected, <-results)
	}

	slices.SortFunc(collected, func(a, b tagged[R]) int {
		return cmp.Compare(a.index, b.index)
	})

	output := make([]R, len(collected))
	for i, result := range collected {
		output[i] = result.value
	}

	return output
}
