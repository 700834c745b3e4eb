package sim

import (
	"context"
	"fmt"
	"runtime"

	"github.com/san-kum/gantrysim/internal/dynamo"
	"golang.org/x/sync/errgroup"
)

// Factory builds the i-th independent run. Every call must return a
// simulator with its own plant and algorithm.
type Factory func(i int) (*Simulator, Config, error)

// Ensemble runs independent simulations concurrently.
type Ensemble struct {
	factory Factory
	numRuns int
	limit   int
}

func NewEnsemble(numRuns int, factory Factory) *Ensemble {
	return &Ensemble{factory: factory, numRuns: numRuns, limit: runtime.GOMAXPROCS(0)}
}

// SetLimit bounds the number of runs in flight; n <= 0 means unbounded.
func (e *Ensemble) SetLimit(n int) { e.limit = n }

// Run returns one result per run in index order. The first failure cancels
// the remaining runs and no results are returned.
func (e *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	if e.numRuns <= 0 || e.factory == nil {
		return nil, fmt.Errorf("%w: ensemble needs a factory and at least one run", dynamo.ErrConfiguration)
	}

	results := make([]*Result, e.numRuns)
	g, ctx := errgroup.WithContext(ctx)
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}

	for i := 0; i < e.numRuns; i++ {
		g.Go(func() error {
			s, cfg, err := e.factory(i)
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			res, err := s.Run(ctx, cfg)
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
