package metrics

import (
	"math"

	"github.com/san-kum/gantrysim/internal/dynamo"
)

// PeakAbs tracks max |x_i| for one state component, e.g. peak sway.
type PeakAbs struct {
	name  string
	index int
	peak  float64
}

func NewPeakAbs(index int, name string) *PeakAbs {
	return &PeakAbs{name: name, index: index}
}

func (p *PeakAbs) Name() string { return p.name }

func (p *PeakAbs) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if p.index < 0 || p.index >= len(x) {
		return
	}
	p.peak = math.Max(p.peak, math.Abs(x[p.index]))
}

func (p *PeakAbs) Value() float64 { return p.peak }

func (p *PeakAbs) Reset() { p.peak = 0 }
