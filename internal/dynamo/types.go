package dynamo

import (
	"math"
)

type State []float64

func (s State) Clone() State {
	if s == nil {
		return nil
	}
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

type Control []float64

func (u Control) Clone() Control {
	if u == nil {
		return nil
	}
	c := make(Control, len(u))
	copy(c, u)
	return c
}

// Sub returns u - other. Both vectors must have the same length.
func (u Control) Sub(other Control) (Control, error) {
	if len(u) != len(other) {
		return nil, fmtDims("control", len(u), len(other))
	}
	out := make(Control, len(u))
	for i := range u {
		out[i] = u[i] - other[i]
	}
	return out, nil
}

// Override replaces a parameter value or a linearisation-point state
// component when a plant rebuilds its matrices.
type Override struct {
	Name  string
	Value float64
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, u Control, t float64)
}

// Configurable is implemented by components with live-tunable scalars.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// Integrator advances a linear model over one interval of length dt. The
// input moves linearly from u0 at the start to u1 at the end; u0 == u1 is a
// zero-order hold.
type Integrator interface {
	Propagate(sys *StateSpace, x State, u0, u1 Control, dt float64) (State, error)
}
