package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/gantrysim/internal/dynamo"
)

func TestSwingEnergy(t *testing.T) {
	m := NewSwingEnergy(2.0, 9.81, 0, 1, 2)

	theta := math.Pi / 4
	omega := 0.5
	l := 0.8

	x := dynamo.State{theta, omega, l}
	u := dynamo.Control{}

	m.Observe(x, u, 0)
	e1 := m.Value()

	m.Reset()

	ke := 0.5 * 2.0 * l * l * omega * omega
	pe := 2.0 * 9.81 * l * (1 - math.Cos(theta))
	expected := ke + pe

	m.Observe(x, u, 0)
	e2 := m.Value()

	if math.Abs(e1-expected) > 1e-9 {
		t.Errorf("expected energy %f, got %f", expected, e1)
	}

	if math.Abs(e2-expected) > 1e-9 {
		t.Errorf("expected energy %f after reset, got %f", expected, e2)
	}
}

func TestSwingEnergyShortState(t *testing.T) {
	m := NewSwingEnergy(1.0, 9.81, 2, 3, 4)

	m.Observe(dynamo.State{1, 1}, nil, 0)
	if m.Value() != 0 {
		t.Error("expected short states to be ignored")
	}
}
