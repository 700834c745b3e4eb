// Package optim tunes experiment knobs by exhaustive search.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/san-kum/gantrysim/internal/config"
	"github.com/san-kum/gantrysim/internal/dynamo"
	"github.com/san-kum/gantrysim/internal/experiment"
	"golang.org/x/sync/errgroup"
)

// Point is one evaluated grid point. Err is set when the experiment could
// not be built or aborted; such points never win.
type Point struct {
	Knobs   map[string]float64
	Metrics map[string]float64
	Value   float64
	Err     error
}

type GridSearch struct {
	knobs  []string
	values [][]float64
	limit  int
	log    zerolog.Logger
}

// NewGridSearch sweeps every combination of values[i] for knobs[i]. Knob
// names are those of config.Config.SetKnob.
func NewGridSearch(knobs []string, values [][]float64) (*GridSearch, error) {
	if len(knobs) == 0 || len(knobs) != len(values) {
		return nil, fmt.Errorf("%w: %d knobs with %d value lists", dynamo.ErrConfiguration, len(knobs), len(values))
	}
	for i, vs := range values {
		if len(vs) == 0 {
			return nil, fmt.Errorf("%w: no values for knob %s", dynamo.ErrConfiguration, knobs[i])
		}
	}
	return &GridSearch{knobs: knobs, values: values, log: zerolog.Nop()}, nil
}

// SetLimit bounds the number of experiments run at once; <= 0 means no bound.
func (g *GridSearch) SetLimit(n int) { g.limit = n }

func (g *GridSearch) SetLogger(log zerolog.Logger) { g.log = log }

// Points enumerates the grid, last knob varying slowest.
func (g *GridSearch) Points() []map[string]float64 {
	points := []map[string]float64{{}}
	for i, name := range g.knobs {
		next := make([]map[string]float64, 0, len(points)*len(g.values[i]))
		for _, v := range g.values[i] {
			for _, p := range points {
				q := make(map[string]float64, len(p)+1)
				for k, pv := range p {
					q[k] = pv
				}
				q[name] = v
				next = append(next, q)
			}
		}
		points = next
	}
	return points
}

// Search runs base with every grid point applied and returns the point with
// the smallest value of metric, plus all points in Points order.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, metric string) (Point, []Point, error) {
	grid := g.Points()
	results := make([]Point, len(grid))

	eg, ctx := errgroup.WithContext(ctx)
	if g.limit > 0 {
		eg.SetLimit(g.limit)
	}
	for i, knobs := range grid {
		eg.Go(func() error {
			results[i] = g.evaluate(ctx, base, knobs, metric)
			return ctx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return Point{}, results, err
	}

	best := -1
	var errs []error
	for i, p := range results {
		if p.Err != nil {
			errs = append(errs, p.Err)
			continue
		}
		if best < 0 || p.Value < results[best].Value {
			best = i
		}
	}
	if best < 0 {
		return Point{}, results, fmt.Errorf("no grid point succeeded: %w", errors.Join(errs...))
	}
	g.log.Info().
		Interface("knobs", results[best].Knobs).
		Str("metric", metric).
		Float64("value", results[best].Value).
		Msg("grid search finished")
	return results[best], results, nil
}

func (g *GridSearch) evaluate(ctx context.Context, base *config.Config, knobs map[string]float64, metric string) Point {
	p := Point{Knobs: knobs, Value: math.Inf(1)}

	e, err := experiment.New(base, experiment.WithKnobs(knobs))
	if err != nil {
		p.Err = err
		return p
	}
	res, err := e.Run(ctx)
	if err != nil {
		p.Err = err
		return p
	}
	p.Metrics = res.Metrics

	v, ok := res.Metrics[metric]
	if !ok {
		p.Err = fmt.Errorf("%w: unknown metric %q", dynamo.ErrConfiguration, metric)
		return p
	}
	p.Value = v
	g.log.Debug().Interface("knobs", knobs).Float64(metric, v).Msg("grid point")
	return p
}
