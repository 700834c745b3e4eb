package sim

import (
	"github.com/san-kum/gantrysim/internal/dynamo"
)

// Plant is the part of a plant the loop drives. *plant.Model and every
// plant embedding it satisfy it.
type Plant interface {
	State() dynamo.State
	Time() float64
	InputSignals() dynamo.Signals
	OutputSignals() dynamo.Signals
	Step(u dynamo.Control, dt float64) (in, out *dynamo.Table, err error)
	UpdateMatrices(overrides ...dynamo.Override) error
	LinearizedSystem() (*dynamo.StateSpace, error)
}

type Config struct {
	Dt     float64
	Cycles int
	// Reference is subtracted from by the feedback; nil means zero.
	Reference dynamo.Control
	// FilterGains records only gains above GainTolerance; the rest are 0.
	FilterGains   bool
	GainTolerance float64
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.1,
		Cycles:        100,
		GainTolerance: 1e-10,
	}
}

// Result holds the tables accumulated so far. Gains is nil when the
// algorithm does not report gains.
type Result struct {
	Input       *dynamo.Table
	Output      *dynamo.Table
	Gains       *dynamo.Table
	GainSignals dynamo.Signals
	Metrics     map[string]float64
	Cycles      int
}
