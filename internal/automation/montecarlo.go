package automation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/san-kum/gantrysim/internal/config"
	"github.com/san-kum/gantrysim/internal/dynamo"
	"github.com/san-kum/gantrysim/internal/experiment"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// boundedLimit is the magnitude past which a final state counts as diverged.
const boundedLimit = 1e6

var validate = validator.New()

// MonteCarlo draws every knob of Spread uniformly from
// [base-spread, base+spread] for each trial. Knob names are those of
// config.Config.SetKnob. A zero Seed still gives a fixed sequence.
type MonteCarlo struct {
	Trials int                `yaml:"trials" validate:"gt=0"`
	Spread map[string]float64 `yaml:"spread" validate:"required,min=1,dive,gte=0"`
	Seed   int64              `yaml:"seed"`
}

// Trial is one randomised run. Err is set when the experiment could not
// be built or aborted.
type Trial struct {
	ID      int
	Knobs   map[string]float64
	Final   dynamo.State
	Metrics map[string]float64
	Stable  bool
	Err     error
}

// RunMonteCarlo runs mc.Trials perturbed copies of base concurrently. It
// fails only when mc itself is unusable; per-trial failures land in
// Trial.Err.
func RunMonteCarlo(ctx context.Context, base *config.Config, mc MonteCarlo, opts ...Option) ([]Trial, error) {
	r := newRunner(opts)
	if err := validate.Struct(mc); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrConfiguration, err)
	}
	draws, err := drawKnobs(base, mc)
	if err != nil {
		return nil, err
	}

	trials := make([]Trial, len(draws))
	g, ctx := errgroup.WithContext(ctx)
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}
	for i, knobs := range draws {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			trials[i] = runTrial(ctx, base, i, knobs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stable, unstable := Tally(trials)
	r.log.Info().Int("trials", len(trials)).Int("stable", stable).Int("unstable", unstable).Msg("monte carlo finished")
	return trials, nil
}

// drawKnobs samples every trial up front so results do not depend on
// scheduling.
func drawKnobs(base *config.Config, mc MonteCarlo) ([]map[string]float64, error) {
	probe, err := experiment.New(base)
	if err != nil {
		return nil, err
	}
	n, m := len(probe.Plant().OutputSignals()), len(probe.Plant().InputSignals())

	names := make([]string, 0, len(mc.Spread))
	centres := make(map[string]float64, len(mc.Spread))
	for name := range mc.Spread {
		v, err := base.Knob(name, n, m)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		centres[name] = v
	}
	sort.Strings(names)

	rng := rand.New(rand.NewSource(mc.Seed))
	draws := make([]map[string]float64, mc.Trials)
	for i := range draws {
		knobs := make(map[string]float64, len(names))
		for _, name := range names {
			knobs[name] = centres[name] + (2*rng.Float64()-1)*mc.Spread[name]
		}
		draws[i] = knobs
	}
	return draws, nil
}

func runTrial(ctx context.Context, base *config.Config, id int, knobs map[string]float64) Trial {
	t := Trial{ID: id, Knobs: knobs}
	e, err := experiment.New(base, experiment.WithKnobs(knobs))
	if err != nil {
		t.Err = err
		return t
	}
	res, err := e.Run(ctx)
	t.Final = e.Plant().State()
	if res != nil {
		t.Metrics = res.Metrics
	}
	if err != nil {
		t.Err = err
		return t
	}
	t.Stable = bounded(t.Final)
	return t
}

func bounded(x dynamo.State) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.Abs(v) > boundedLimit {
			return false
		}
	}
	return true
}

// Tally counts stable and unstable trials.
func Tally(trials []Trial) (stable, unstable int) {
	for _, t := range trials {
		if t.Stable {
			stable++
		} else {
			unstable++
		}
	}
	return stable, unstable
}

// Summary is the spread of one metric over the stable trials.
type Summary struct {
	Metric string
	Count  int
	Mean   float64
	StdDev float64
	Worst  float64
}

// Summarize reports metric over the stable trials. Worst is the maximum.
func Summarize(trials []Trial, metric string) (Summary, error) {
	var vs []float64
	for _, t := range trials {
		if !t.Stable {
			continue
		}
		v, ok := t.Metrics[metric]
		if !ok {
			return Summary{}, fmt.Errorf("%w: unknown metric %q", dynamo.ErrConfiguration, metric)
		}
		vs = append(vs, v)
	}
	if len(vs) == 0 {
		return Summary{}, fmt.Errorf("%w: no stable trials", dynamo.ErrPrecondition)
	}
	mean, std := stat.MeanStdDev(vs, nil)
	if len(vs) == 1 {
		std = 0
	}
	return Summary{Metric: metric, Count: len(vs), Mean: mean, StdDev: std, Worst: floats.Max(vs)}, nil
}
