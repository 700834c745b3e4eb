package metrics

import (
	"math"

	"github.com/san-kum/gantrysim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

// ControlEffort is the RMS of ‖u‖₂ over the observed cycles.
type ControlEffort struct {
	sumSq   float64
	samples int
}

func NewControlEffort() *ControlEffort { return &ControlEffort{} }

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(x dynamo.State, u dynamo.Control, t float64) {
	c.samples++
	if len(u) == 0 {
		return
	}
	n := floats.Norm(u, 2)
	c.sumSq += n * n
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return math.Sqrt(c.sumSq / float64(c.samples))
}

func (c *ControlEffort) Reset() { c.sumSq, c.samples = 0, 0 }

// Saturation is the fraction of cycles that asked for an input outside the
// actuator bounds. The plant applies such inputs unclipped.
type Saturation struct {
	inputs    dynamo.Signals
	saturated int
	samples   int
}

func NewSaturation(inputs dynamo.Signals) *Saturation {
	return &Saturation{inputs: inputs.Clone()}
}

func (s *Saturation) Name() string { return "input_saturation" }

func (s *Saturation) Observe(x dynamo.State, u dynamo.Control, t float64) {
	s.samples++
	if len(u) == len(s.inputs) && s.inputs.CheckBounds(u) != nil {
		s.saturated++
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.saturated) / float64(s.samples)
}

func (s *Saturation) Reset() { s.saturated, s.samples = 0, 0 }
