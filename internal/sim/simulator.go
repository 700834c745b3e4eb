package sim

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/san-kum/gantrysim/internal/control"
	"github.com/san-kum/gantrysim/internal/dynamo"
)

type Option func(*Simulator)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Simulator) { s.log = log }
}

func WithMetric(m dynamo.Metric) Option {
	return func(s *Simulator) { s.metrics = append(s.metrics, m) }
}

func WithObserver(o dynamo.Observer) Option {
	return func(s *Simulator) { s.observers = append(s.observers, o) }
}

// Simulator runs the closed loop: feedback, step, re-linearise, re-solve.
type Simulator struct {
	plant     Plant
	algo      control.Algorithm
	metrics   []dynamo.Metric
	observers []dynamo.Observer
	log       zerolog.Logger

	cfg    Config
	result *Result
}

func New(p Plant, algo control.Algorithm, opts ...Option) *Simulator {
	s := &Simulator{
		plant: p,
		algo:  algo,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) Plant() Plant                 { return s.plant }
func (s *Simulator) Algorithm() control.Algorithm { return s.algo }

// Run executes cfg.Cycles cycles. On error the partial result is returned
// along with it.
func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := s.Start(cfg); err != nil {
		return nil, err
	}

	for i := 0; i < cfg.Cycles; i++ {
		select {
		case <-ctx.Done():
			return s.Result(), ctx.Err()
		default:
		}

		if err := s.Cycle(); err != nil {
			s.log.Error().Err(err).Int("cycle", i).Msg("simulation aborted")
			return s.Result(), err
		}
	}

	res := s.Result()
	s.log.Info().
		Int("cycles", res.Cycles).
		Float64("t", s.plant.Time()).
		Interface("metrics", res.Metrics).
		Msg("simulation finished")
	return res, nil
}

// Start validates cfg and clears the accumulated tables and metrics. Run
// calls it; interactive front-ends call it once and then drive Cycle.
func (s *Simulator) Start(cfg Config) error {
	if err := s.validateConfig(cfg); err != nil {
		return err
	}
	if cfg.Reference == nil {
		cfg.Reference = make(dynamo.Control, len(s.plant.InputSignals()))
	}
	s.cfg = cfg

	res := &Result{
		Input:   dynamo.NewTable(s.plant.InputSignals()),
		Output:  dynamo.NewTable(s.plant.OutputSignals()),
		Metrics: make(map[string]float64),
	}
	if gr, ok := s.algo.(control.GainReporter); ok {
		res.GainSignals = gr.GainSignals()
		res.Gains = dynamo.NewTable(res.GainSignals)
	}
	s.result = res

	for _, m := range s.metrics {
		m.Reset()
	}
	return nil
}

// Cycle advances the loop by one control period. Errors are wrapped in a
// *dynamo.SimulationError.
func (s *Simulator) Cycle() error {
	if s.result == nil {
		return fmt.Errorf("%w: Start must be called before Cycle", dynamo.ErrPrecondition)
	}
	if err := s.cycle(); err != nil {
		return &dynamo.SimulationError{
			Step:    s.result.Cycles,
			Time:    s.plant.Time(),
			State:   s.plant.State(),
			Wrapped: err,
		}
	}
	s.result.Cycles++
	return nil
}

func (s *Simulator) cycle() error {
	feedback, err := s.algo.ControlInput(s.plant.State())
	if err != nil {
		return err
	}
	u, err := s.cfg.Reference.Sub(feedback)
	if err != nil {
		return err
	}

	in, out, err := s.plant.Step(u, s.cfg.Dt)
	if err != nil {
		return err
	}
	if err := s.plant.UpdateMatrices(); err != nil {
		return err
	}
	if rl, ok := s.algo.(control.Relinearizer); ok {
		sys, err := s.plant.LinearizedSystem()
		if err != nil {
			return err
		}
		if err := rl.UpdateStateMatrices(sys.A, sys.B); err != nil {
			return err
		}
	}

	if err := s.result.Input.Extend(in); err != nil {
		return err
	}
	if err := s.result.Output.Extend(out); err != nil {
		return err
	}
	t := s.plant.Time()
	if err := s.recordGains(t); err != nil {
		return err
	}

	x := s.plant.State()
	for _, m := range s.metrics {
		m.Observe(x, u, t)
	}
	for _, obs := range s.observers {
		obs.OnStep(x, u, t)
	}
	return nil
}

func (s *Simulator) recordGains(t float64) error {
	gr, ok := s.algo.(control.GainReporter)
	if !ok {
		return nil
	}
	active, err := gr.FilterGains(s.cfg.GainTolerance)
	if err != nil {
		return err
	}

	row := gr.FlatGains()
	if s.cfg.FilterGains {
		row = make([]float64, len(s.result.GainSignals))
		for i, sig := range s.result.GainSignals {
			row[i] = active[sig.Name]
		}
	}
	if s.log.GetLevel() <= zerolog.DebugLevel {
		s.log.Debug().
			Int("cycle", s.result.Cycles).
			Float64("t", t).
			Interface("gains", active).
			Msg("cycle")
	}
	return s.result.Gains.Append(t, row)
}

// Result returns the tables accumulated since Start with current metric
// values.
func (s *Simulator) Result() *Result {
	if s.result == nil {
		return nil
	}
	for _, m := range s.metrics {
		s.result.Metrics[m.Name()] = m.Value()
	}
	return s.result
}

func (s *Simulator) validateConfig(cfg Config) error {
	if s.plant == nil || s.algo == nil {
		return fmt.Errorf("%w: simulator needs a plant and an algorithm", dynamo.ErrConfiguration)
	}
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %g", dynamo.ErrConfiguration, cfg.Dt)
	}
	if cfg.Cycles < 0 {
		return fmt.Errorf("%w: cycles must not be negative, got %d", dynamo.ErrConfiguration, cfg.Cycles)
	}
	if cfg.GainTolerance < 0 {
		return fmt.Errorf("%w: gain tolerance must not be negative", dynamo.ErrConfiguration)
	}
	if m := len(s.plant.InputSignals()); cfg.Reference != nil && len(cfg.Reference) != m {
		return fmt.Errorf("%w: reference has %d components, plant has %d inputs", dynamo.ErrDimensionMismatch, len(cfg.Reference), m)
	}
	return nil
}
