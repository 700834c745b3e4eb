package metrics

import (
	"github.com/san-kum/gantrysim/internal/analysis"
	"github.com/san-kum/gantrysim/internal/dynamo"
)

// DominantFrequency reports the strongest oscillation in Hz of one state
// component over the observed run. It reads 0 until four samples are in.
type DominantFrequency struct {
	name    string
	index   int
	samples []float64
	first   float64
	last    float64
}

func NewDominantFrequency(index int, name string) *DominantFrequency {
	return &DominantFrequency{name: name, index: index}
}

func (d *DominantFrequency) Name() string { return d.name }

func (d *DominantFrequency) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if d.index < 0 || d.index >= len(x) {
		return
	}
	if len(d.samples) == 0 {
		d.first = t
	}
	d.last = t
	d.samples = append(d.samples, x[d.index])
}

func (d *DominantFrequency) Value() float64 {
	n := len(d.samples)
	if n < 4 {
		return 0
	}
	f, err := analysis.DominantFrequency(d.samples, (d.last-d.first)/float64(n-1))
	if err != nil {
		return 0
	}
	return f
}

func (d *DominantFrequency) Reset() {
	d.samples = d.samples[:0]
	d.first, d.last = 0, 0
}
