// Package parallel runs independent index-addressed jobs on a bounded set of
// goroutines.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers resolves a requested worker count: n <= 0 means GOMAXPROCS.
func Workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// For calls fn(i) for every i in [0,n) using at most workers goroutines and
// returns once all calls have finished. fn must only write to state owned by
// index i.
func For(n, workers int, fn func(i int)) {
	_ = ForErr(n, workers, func(i int) error {
		fn(i)
		return nil
	})
}

// ForErr is For for jobs that can fail. It returns the first error reported by
// any job; once a job has failed, indices not yet started are skipped.
func ForErr(n, workers int, fn func(i int) error) error {
	if n <= 0 {
		return nil
	}
	workers = Workers(workers)
	if workers > n {
		workers = n
	}
	if workers == 1 {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(workers)
	for i := 0; i < n && ctx.Err() == nil; i++ {
		i := i
		g.Go(func() error { return fn(i) })
	}
	return g.Wait()
}
