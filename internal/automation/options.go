package automation

import "github.com/rs/zerolog"

type runner struct {
	log   zerolog.Logger
	limit int
}

type Option func(*runner)

func WithLogger(log zerolog.Logger) Option {
	return func(r *runner) { r.log = log }
}

// WithLimit bounds the number of experiments in flight; <= 0 means no bound.
func WithLimit(n int) Option {
	return func(r *runner) { r.limit = n }
}

func newRunner(opts []Option) *runner {
	r := &runner{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
