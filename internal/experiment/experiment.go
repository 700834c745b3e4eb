package experiment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/san-kum/gantrysim/internal/config"
	"github.com/san-kum/gantrysim/internal/control"
	"github.com/san-kum/gantrysim/internal/dynamo"
	"github.com/san-kum/gantrysim/internal/sim"
	"github.com/san-kum/gantrysim/internal/storage"
)

// Stream names used when a result is saved.
const (
	StreamInput  = "input"
	StreamOutput = "output"
	StreamGains  = "gains"
)

type Option func(*Experiment)

func WithLogger(log zerolog.Logger) Option {
	return func(e *Experiment) { e.log = log }
}

func WithRegistry(r *Registry) Option {
	return func(e *Experiment) { e.registry = r }
}

// WithKnobs applies config knobs (see config.Config.SetKnob) on top of the
// config before anything is built.
func WithKnobs(knobs map[string]float64) Option {
	return func(e *Experiment) { e.knobs = knobs }
}

// Experiment is one configured closed loop: plant, algorithm and simulator
// built from a config.
type Experiment struct {
	cfg       *config.Config
	registry  *Registry
	knobs     map[string]float64
	log       zerolog.Logger
	plant     Plant
	algo      control.Algorithm
	simulator *sim.Simulator
}

// New validates cfg and builds everything. cfg is copied.
func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no config", dynamo.ErrConfiguration)
	}
	e := &Experiment{
		cfg:      cfg.Clone(),
		registry: NewRegistry(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := e.registry.GetPlant(e.cfg)
	if err != nil {
		return nil, err
	}
	n, m := len(p.OutputSignals()), len(p.InputSignals())
	if len(e.knobs) > 0 {
		for name, v := range e.knobs {
			if err := e.cfg.SetKnob(name, v, n, m); err != nil {
				return nil, err
			}
		}
		if err := e.cfg.Validate(); err != nil {
			return nil, err
		}
		if p, err = e.registry.GetPlant(e.cfg); err != nil {
			return nil, err
		}
	}
	if err := e.cfg.CheckDims(n, m); err != nil {
		return nil, err
	}

	algo, err := e.registry.GetAlgorithm(e.cfg, p)
	if err != nil {
		return nil, err
	}

	e.plant = p
	e.algo = algo
	e.simulator = sim.New(p, algo, sim.WithLogger(e.log))
	for _, metric := range e.registry.DefaultMetrics(e.cfg, p) {
		e.simulator.AddMetric(metric)
	}
	return e, nil
}

func (e *Experiment) Config() *config.Config       { return e.cfg.Clone() }
func (e *Experiment) Plant() Plant                 { return e.plant }
func (e *Experiment) Algorithm() control.Algorithm { return e.algo }
func (e *Experiment) Simulator() *sim.Simulator    { return e.simulator }

// SimConfig is the loop configuration derived from the experiment config.
func (e *Experiment) SimConfig() sim.Config {
	var ref dynamo.Control
	if e.cfg.Reference != nil {
		ref = dynamo.Control(e.cfg.Reference).Clone()
	}
	return sim.Config{
		Dt:            e.cfg.Dt,
		Cycles:        e.cfg.Cycles,
		Reference:     ref,
		FilterGains:   e.cfg.FilterGains,
		GainTolerance: e.cfg.GainTolerance,
	}
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	return e.simulator.Run(ctx, e.SimConfig())
}

// Streams lists the tables of res in save order. The gains stream is
// omitted when the algorithm reports none.
func (e *Experiment) Streams(res *sim.Result) []storage.Stream {
	if res == nil {
		return nil
	}
	streams := []storage.Stream{
		{Name: StreamInput, Table: res.Input, Signals: e.plant.InputSignals()},
		{Name: StreamOutput, Table: res.Output, Signals: e.plant.OutputSignals()},
	}
	if res.Gains != nil {
		streams = append(streams, storage.Stream{Name: StreamGains, Table: res.Gains, Signals: res.GainSignals})
	}
	return streams
}

// Metadata summarises the experiment and res for the store. runErr, if set,
// is recorded so aborted runs stay recognisable.
func (e *Experiment) Metadata(res *sim.Result, runErr error) storage.RunMetadata {
	meta := storage.RunMetadata{
		Plant:      e.cfg.Plant,
		Algorithm:  e.cfg.Algorithm,
		Integrator: e.cfg.Integrator,
		Dt:         e.cfg.Dt,
		Reference:  e.cfg.Reference,
		Params:     e.plant.GetParams(),
		Metrics:    map[string]float64{},
	}
	if res != nil {
		meta.Cycles = res.Cycles
		for k, v := range res.Metrics {
			meta.Metrics[k] = v
		}
	}
	if runErr != nil {
		meta.Error = runErr.Error()
	}
	return meta
}

// Save stores res and returns the run ID.
func (e *Experiment) Save(st *storage.Store, res *sim.Result, runErr error) (string, error) {
	if res == nil {
		return "", fmt.Errorf("%w: nothing to save", dynamo.ErrPrecondition)
	}
	return st.Save(e.Metadata(res, runErr), e.Streams(res))
}
