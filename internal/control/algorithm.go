package control

import (
	"github.com/san-kum/gantrysim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Algorithm maps a state to a feedback signal.
type Algorithm interface {
	ComputeGains() error
	ControlInput(x dynamo.State) (dynamo.Control, error)
}

// Relinearizer accepts new plant matrices and recomputes its gains.
type Relinearizer interface {
	UpdateStateMatrices(a, b mat.Matrix) error
}

// GainReporter exposes the current gain matrix as labelled signals.
type GainReporter interface {
	GainSignals() dynamo.Signals
	FlatGains() []float64
	FilterGains(tol float64) (map[string]float64, error)
}
