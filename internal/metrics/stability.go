package metrics

import "github.com/san-kum/gantrysim/internal/dynamo"

// Stability is the fraction of cycles whose state lies inside every signal
// bound. The loop itself does not stop on excursions; this measures them.
type Stability struct {
	outputs    dynamo.Signals
	violations int
	samples    int
	// FirstExcursion is the time of the first out-of-bounds state, or -1.
	FirstExcursion float64
}

func NewStability(outputs dynamo.Signals) *Stability {
	return &Stability{outputs: outputs.Clone(), FirstExcursion: -1}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(x dynamo.State, u dynamo.Control, t float64) {
	s.samples++
	if s.outputs.CheckBounds(x) == nil {
		return
	}
	if s.violations == 0 {
		s.FirstExcursion = t
	}
	s.violations++
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1
	}
	return 1 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations, s.samples = 0, 0
	s.FirstExcursion = -1
}
