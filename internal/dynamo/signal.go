package dynamo

import (
	"fmt"
	"math"
)

// Signal describes one scalar physical quantity.
type Signal struct {
	Name   string
	Unit   string
	Min    float64
	Max    float64
	Symbol string
}

// NewSignal validates the bounds of a descriptor.
func NewSignal(name, unit string, min, max float64, symbol string) (Signal, error) {
	if name == "" {
		return Signal{}, fmt.Errorf("%w: signal without a name", ErrConfiguration)
	}
	if math.IsNaN(min) || math.IsNaN(max) || min > max {
		return Signal{}, fmt.Errorf("%w: signal %q has bounds [%g, %g]", ErrConfiguration, name, min, max)
	}
	return Signal{Name: name, Unit: unit, Min: min, Max: max, Symbol: symbol}, nil
}

// MustSignal is NewSignal for package-level descriptor tables.
func MustSignal(name, unit string, min, max float64, symbol string) Signal {
	s, err := NewSignal(name, unit, min, max, symbol)
	if err != nil {
		panic(err)
	}
	return s
}

// Contains reports whether v lies inside [Min, Max].
func (s Signal) Contains(v float64) bool {
	return v >= s.Min && v <= s.Max
}

// Label is the axis label used by plots, e.g. "Sway angle [rad]".
func (s Signal) Label() string {
	if s.Unit == "" {
		return s.Name
	}
	return s.Name + " [" + s.Unit + "]"
}

// Signals is an ordered descriptor list. Order defines table column order.
type Signals []Signal

func (ss Signals) Clone() Signals {
	if ss == nil {
		return nil
	}
	c := make(Signals, len(ss))
	copy(c, ss)
	return c
}

func (ss Signals) Names() []string {
	names := make([]string, len(ss))
	for i, s := range ss {
		names[i] = s.Name
	}
	return names
}

func (ss Signals) Symbols() []string {
	symbols := make([]string, len(ss))
	for i, s := range ss {
		symbols[i] = s.Symbol
	}
	return symbols
}

// Index returns the position of the named signal or -1.
func (ss Signals) Index(name string) int {
	for i, s := range ss {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// Lookup resolves a column name to its descriptor.
func (ss Signals) Lookup(name string) (Signal, bool) {
	if i := ss.Index(name); i >= 0 {
		return ss[i], true
	}
	return Signal{}, false
}

// CheckBounds fails with ErrStateBounds naming the first component outside
// its descriptor's range.
func (ss Signals) CheckBounds(x []float64) error {
	if len(x) != len(ss) {
		return fmtDims("state", len(ss), len(x))
	}
	for i, s := range ss {
		if !s.Contains(x[i]) {
			return fmt.Errorf("%w: %s = %g outside [%g, %g]", ErrStateBounds, s.Name, x[i], s.Min, s.Max)
		}
	}
	return nil
}

// Parameter is a tunable physical constant.
type Parameter struct {
	Name   string
	Unit   string
	Value  float64
	Symbol string
}

type Parameters []Parameter

func (ps Parameters) Clone() Parameters {
	if ps == nil {
		return nil
	}
	c := make(Parameters, len(ps))
	copy(c, ps)
	return c
}

// Get returns the value of the named parameter. Unknown names report false.
func (ps Parameters) Get(name string) (float64, bool) {
	for _, p := range ps {
		if p.Name == name {
			return p.Value, true
		}
	}
	return 0, false
}

// Set updates the named parameter in place and reports whether it exists.
func (ps Parameters) Set(name string, value float64) bool {
	for i := range ps {
		if ps[i].Name == name {
			ps[i].Value = value
			return true
		}
	}
	return false
}

func (ps Parameters) Values() map[string]float64 {
	m := make(map[string]float64, len(ps))
	for _, p := range ps {
		m[p.Name] = p.Value
	}
	return m
}
