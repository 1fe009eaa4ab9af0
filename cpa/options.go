package cpa

import "cema-attack/internal/parallel"

type config struct {
	workers int
}

// Option configures the parallel stages of the attack.
type Option func(*config)

// WithWorkers bounds the number of goroutines used by a stage.
// n <= 0 selects runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	c.workers = parallel.Workers(c.workers)
	return c
}
