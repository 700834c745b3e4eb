// Package plant implements a fully observed linear plant whose (A, B)
// matrices are re-derived from physical parameters and an operating point.
//
// Concrete plants embed [*Model] and supply a [Linearizer]. Simulation and
// re-linearisation are separate calls: after [Model.Step] or
// [Model.SimulateGrid] the plant is stale until [Model.UpdateMatrices] runs,
// and [Model.LinearizedSystem] refuses to hand out stale matrices.
package plant

import (
	"fmt"

	"github.com/san-kum/gantrysim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Linearizer derives A and B at an operating point.
type Linearizer interface {
	Linearize(params dynamo.Parameters, x dynamo.State) (a, b *mat.Dense, err error)
}

// Descriptors declares the signals and parameters of a plant.
type Descriptors struct {
	Inputs     dynamo.Signals
	Outputs    dynamo.Signals
	Parameters dynamo.Parameters
}

type Option func(*Model)

// WithIntegrator replaces the default integrator.
func WithIntegrator(integ dynamo.Integrator) Option {
	return func(m *Model) { m.integrator = integ }
}

// Model is a linear plant with bounds-checked state.
type Model struct {
	inputs     dynamo.Signals
	outputs    dynamo.Signals
	params     dynamo.Parameters
	state      dynamo.State
	sys        *dynamo.StateSpace
	lin        Linearizer
	integrator dynamo.Integrator
	t          float64
	stale      bool
}

// New validates x0 against the output descriptors and builds the first
// linearisation. integ is used unless overridden by WithIntegrator.
func New(desc Descriptors, x0 dynamo.State, lin Linearizer, integ dynamo.Integrator, opts ...Option) (*Model, error) {
	if len(x0) == 0 {
		return nil, fmt.Errorf("%w: no initial state provided", dynamo.ErrConfiguration)
	}
	if len(desc.Inputs) == 0 || len(desc.Outputs) == 0 {
		return nil, fmt.Errorf("%w: plant needs input and output descriptors", dynamo.ErrConfiguration)
	}
	if lin == nil {
		return nil, fmt.Errorf("%w: plant needs a linearizer", dynamo.ErrConfiguration)
	}

	m := &Model{
		inputs:     desc.Inputs.Clone(),
		outputs:    desc.Outputs.Clone(),
		params:     desc.Parameters.Clone(),
		lin:        lin,
		integrator: integ,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.integrator == nil {
		return nil, fmt.Errorf("%w: plant needs an integrator", dynamo.ErrConfiguration)
	}

	if err := m.SetState(x0); err != nil {
		return nil, err
	}
	if err := m.UpdateMatrices(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) InputSignals() dynamo.Signals  { return m.inputs.Clone() }
func (m *Model) OutputSignals() dynamo.Signals { return m.outputs.Clone() }
func (m *Model) Parameters() dynamo.Parameters { return m.params.Clone() }

// State returns a copy of the current state.
func (m *Model) State() dynamo.State { return m.state.Clone() }

// Time is the physical time advanced by simulation so far.
func (m *Model) Time() float64 { return m.t }

// Stale reports whether the state moved since the last UpdateMatrices.
func (m *Model) Stale() bool { return m.stale }

// System returns a copy of the current matrices, stale or not.
func (m *Model) System() *dynamo.StateSpace { return m.sys.Clone() }

// LinearizedSystem returns the matrices only if they were rebuilt after the
// last simulation step.
func (m *Model) LinearizedSystem() (*dynamo.StateSpace, error) {
	if m.stale {
		return nil, fmt.Errorf("%w: plant simulated since last UpdateMatrices", dynamo.ErrPrecondition)
	}
	return m.sys.Clone(), nil
}

// CheckState validates candidate against the output bounds. A nil candidate
// checks the current state.
func (m *Model) CheckState(candidate dynamo.State) error {
	if candidate == nil {
		candidate = m.state
	}
	return m.outputs.CheckBounds(candidate)
}

// SetState replaces the state after a bounds check. On failure the previous
// state is kept.
func (m *Model) SetState(x dynamo.State) error {
	if err := m.CheckState(x); err != nil {
		return err
	}
	m.state = x.Clone()
	m.stale = true
	return nil
}

// Param returns a parameter value; unknown names report false.
func (m *Model) Param(name string) (float64, bool) {
	return m.params.Get(name)
}

// SetParam changes a parameter. Matrices are not rebuilt until UpdateMatrices.
func (m *Model) SetParam(name string, value float64) error {
	if !m.params.Set(name, value) {
		return fmt.Errorf("%w: unknown parameter %q", dynamo.ErrConfiguration, name)
	}
	m.stale = true
	return nil
}

// GetParams exposes the parameters for live tuning.
func (m *Model) GetParams() map[string]float64 {
	return m.params.Values()
}

// UpdateMatrices rebuilds A, B, C and D at the current operating point.
// Overrides name either a parameter, whose new value is persisted, or an
// output signal, whose state component becomes the new linearisation point.
// Nothing is committed unless the rebuild succeeds.
func (m *Model) UpdateMatrices(overrides ...dynamo.Override) error {
	params := m.params.Clone()
	state := m.state.Clone()
	moved := false

	for _, o := range overrides {
		if params.Set(o.Name, o.Value) {
			continue
		}
		if i := m.outputs.Index(o.Name); i >= 0 {
			state[i] = o.Value
			moved = true
			continue
		}
		return fmt.Errorf("%w: unknown override %q", dynamo.ErrConfiguration, o.Name)
	}
	if moved {
		if err := m.outputs.CheckBounds(state); err != nil {
			return err
		}
	}

	a, b, err := m.lin.Linearize(params, state)
	if err != nil {
		return err
	}

	n := len(state)
	nu := len(m.inputs)
	p := len(m.outputs)
	if ar, ac := a.Dims(); ar != n || ac != n {
		return fmt.Errorf("%w: linearizer returned A %dx%d for %d states", dynamo.ErrDimensionMismatch, ar, ac, n)
	}
	if br, bc := b.Dims(); br != n || bc != nu {
		return fmt.Errorf("%w: linearizer returned B %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, br, bc, n, nu)
	}

	c := mat.NewDense(p, n, nil)
	for i := 0; i < p && i < n; i++ {
		c.Set(i, i, 1)
	}
	d := mat.NewDense(p, nu, nil)

	sys, err := dynamo.NewStateSpace(a, b, c, d)
	if err != nil {
		return err
	}

	m.params = params
	m.state = state
	m.sys = sys
	m.stale = false
	return nil
}

// Step holds u constant for dt and advances the state. The returned tables
// hold the single sample at the end of the interval.
func (m *Model) Step(u dynamo.Control, dt float64) (in, out *dynamo.Table, err error) {
	_, nu, _ := m.sys.Dims()
	if len(u) != nu {
		return nil, nil, fmt.Errorf("%w: input has %d columns, B has %d", dynamo.ErrDimensionMismatch, len(u), nu)
	}
	if dt <= 0 {
		return nil, nil, fmt.Errorf("%w: dt must be positive, got %g", dynamo.ErrConfiguration, dt)
	}

	next, err := m.integrator.Propagate(m.sys, m.state, u, u, dt)
	if err != nil {
		return nil, nil, err
	}
	y, err := m.sys.Output(next, u)
	if err != nil {
		return nil, nil, err
	}

	in = dynamo.NewTable(m.inputs)
	out = dynamo.NewTable(m.outputs)
	ts := m.t + dt
	if err := in.Append(ts, u); err != nil {
		return nil, nil, err
	}
	if err := out.Append(ts, y); err != nil {
		return nil, nil, err
	}

	m.state = next
	m.t = ts
	m.stale = true
	return in, out, nil
}

// SimulateGrid applies the input trajectory us sampled on times, linearly
// interpolated between samples. times must be strictly increasing; the
// first sample is the current state. One row per grid sample is returned.
func (m *Model) SimulateGrid(us [][]float64, times []float64) (in, out *dynamo.Table, err error) {
	_, nu, _ := m.sys.Dims()
	if len(times) < 2 {
		return nil, nil, fmt.Errorf("%w: time grid needs at least two samples", dynamo.ErrConfiguration)
	}
	if len(us) != len(times) {
		return nil, nil, fmt.Errorf("%w: %d input rows for %d time samples", dynamo.ErrDimensionMismatch, len(us), len(times))
	}
	for i, row := range us {
		if len(row) != nu {
			return nil, nil, fmt.Errorf("%w: input row %d has %d columns, B has %d", dynamo.ErrDimensionMismatch, i, len(row), nu)
		}
		if i > 0 && times[i] <= times[i-1] {
			return nil, nil, fmt.Errorf("%w: time grid not increasing at sample %d", dynamo.ErrConfiguration, i)
		}
	}

	in = dynamo.NewTable(m.inputs)
	out = dynamo.NewTable(m.outputs)

	x := m.state.Clone()
	for i := range times {
		u := dynamo.Control(us[i])
		if i > 0 {
			x, err = m.integrator.Propagate(m.sys, x, dynamo.Control(us[i-1]), u, times[i]-times[i-1])
			if err != nil {
				return nil, nil, err
			}
		}
		var y dynamo.State
		y, err = m.sys.Output(x, u)
		if err != nil {
			return nil, nil, err
		}
		ts := m.t + times[i] - times[0]
		if err = in.Append(ts, u); err != nil {
			return nil, nil, err
		}
		if err = out.Append(ts, y); err != nil {
			return nil, nil, err
		}
	}

	m.state = x
	m.t += times[len(times)-1] - times[0]
	m.stale = true
	return in, out, nil
}
