/*
Package tandem runs independent computations on a fixed pool of workers and
combines their results in one of two ways:

  - Parallelize runs every task and returns the results in submission order.
  - Race runs a bounded number of alternatives and returns the first result.

A Runtime owns the pool and the accounting of task execution time:

	rt := tandem.New(tandem.WithSize(8))
	rt.WarmUp()

	squares := tandem.Parallelize(rt, []tandem.Task[int]{
		func() int { return 1 * 1 },
		func() int { return 2 * 2 },
	})

	fmt.Println(squares, rt.WorkBin())

Tasks cannot be cancelled and nothing in this package times out. Callers are
responsible for making sure every task given to Parallelize, and at least one
candidate given to Race, eventually returns.
*/
package tandem
