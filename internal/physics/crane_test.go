package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/gantrysim/internal/dynamo"
	"github.com/san-kum/gantrysim/internal/integrators"
	"github.com/san-kum/gantrysim/internal/plant"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func newCrane(t *testing.T) *Crane1D {
	t.Helper()
	c, err := NewCrane1D(nil)
	if err != nil {
		t.Fatalf("NewCrane1D: %v", err)
	}
	return c
}

func TestCraneStep(t *testing.T) {
	c := newCrane(t)

	_, out, err := c.Step(dynamo.Control{1, 1}, 0.1)
	if err != nil {
		t.Fatal(err)
	}

	// 4-decimal figures; the sling length is 0.10125, which rounds half up
	want := []float64{0.0043, 0.0718, -0.0389, -0.5769, 0.1013, 0.0250}
	got := out.Last()
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-4 {
			t.Errorf("output[%d]: got %.4f, want %.4f", i, got[i], want[i])
		}
	}
	if math.Abs(c.Time()-0.1) > 1e-15 {
		t.Errorf("time: got %v, want 0.1", c.Time())
	}
}

func TestCraneStepRK4(t *testing.T) {
	c, err := NewCrane1D(nil, plant.WithIntegrator(integrators.NewRK4(100)))
	if err != nil {
		t.Fatal(err)
	}
	_, out, err := c.Step(dynamo.Control{1, 1}, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Last()[SwayAngle]; math.Abs(got+0.0389) > 5e-5 {
		t.Errorf("sway angle: got %.4f, want -0.0389", got)
	}
}

func TestCraneMatrices(t *testing.T) {
	c := newCrane(t)

	if err := c.UpdateMatrices(WithPayloadMass(3), WithSlingLength(0.8)); err != nil {
		t.Fatal(err)
	}
	sys, err := c.LinearizedSystem()
	if err != nil {
		t.Fatal(err)
	}

	wantA := mat.NewDense(6, 6, []float64{
		0, 1, 0, 0, 0, 0,
		0, 0, 3 * Gravity, 0, 0, 0,
		0, 0, 0, 1, 0, 0,
		0, 0, -Gravity * 4 / 0.8, 0, 0, 0,
		0, 0, 0, 0, 0, 1,
		0, 0, 0, 0, 0, 0,
	})
	wantB := mat.NewDense(6, 2, []float64{
		0, 0,
		1, 0,
		0, 0,
		-1.25, 0,
		0, 0,
		0, 1.0 / 6,
	})
	if !mat.EqualApprox(sys.A, wantA, 1e-12) {
		t.Errorf("A:\n%v\nwant\n%v", mat.Formatted(sys.A), mat.Formatted(wantA))
	}
	if !mat.EqualApprox(sys.B, wantB, 1e-12) {
		t.Errorf("B:\n%v\nwant\n%v", mat.Formatted(sys.B), mat.Formatted(wantB))
	}
	if !mat.Equal(sys.C, eye(6)) {
		t.Errorf("C is not the identity")
	}
	if r, cc := sys.D.Dims(); r != 6 || cc != 2 || mat.Norm(sys.D, 1) != 0 {
		t.Errorf("D is not a 6x2 zero matrix")
	}

	if v, _ := c.Param(PayloadMass); v != 3 {
		t.Errorf("payload mass override not persisted: got %v", v)
	}
	if v := c.State()[SlingLength]; v != 0.8 {
		t.Errorf("sling length override not persisted: got %v", v)
	}
}

func TestCraneUpdateMatricesIdempotent(t *testing.T) {
	c := newCrane(t)

	if err := c.UpdateMatrices(); err != nil {
		t.Fatal(err)
	}
	first := c.System()
	if err := c.UpdateMatrices(); err != nil {
		t.Fatal(err)
	}
	if !first.Equal(c.System()) {
		t.Error("repeated UpdateMatrices changed the system")
	}
}

func TestCraneSetState(t *testing.T) {
	c := newCrane(t)

	inside := dynamo.State{1, 0.5, 0, 0, 0.5, 0}
	if err := c.SetState(inside); err != nil {
		t.Fatalf("in-bounds state rejected: %v", err)
	}
	got := c.State()
	for i := range inside {
		if got[i] != inside[i] {
			t.Fatalf("state: got %v, want %v", got, inside)
		}
	}

	err := c.SetState(dynamo.State{3, 0, 0, 0, 0.5, 0})
	if !errors.Is(err, dynamo.ErrStateBounds) {
		t.Fatalf("got %v, want ErrStateBounds", err)
	}
	got = c.State()
	for i := range inside {
		if got[i] != inside[i] {
			t.Errorf("state changed after rejected SetState: got %v", got)
			break
		}
	}
}

func TestCraneRejects(t *testing.T) {
	tests := []struct {
		name      string
		overrides []dynamo.Override
		want      error
	}{
		{"zero payload", []dynamo.Override{WithPayloadMass(0)}, dynamo.ErrConfiguration},
		{"negative cart", []dynamo.Override{{Name: CartMass, Value: -1}}, dynamo.ErrConfiguration},
		{"sling too short", []dynamo.Override{WithSlingLength(0.05)}, dynamo.ErrStateBounds},
		{"unknown", []dynamo.Override{{Name: "Rope stiffness", Value: 1}}, dynamo.ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCrane(t)
			before := c.System()
			err := c.UpdateMatrices(tt.overrides...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if !before.Equal(c.System()) {
				t.Error("failed UpdateMatrices modified the system")
			}
			if v, _ := c.Param(PayloadMass); v != 2 {
				t.Errorf("failed UpdateMatrices modified payload mass: %v", v)
			}
		})
	}
}

func TestCraneInitialState(t *testing.T) {
	if _, err := NewCrane1D(dynamo.State{0, 0, 0, 0, 0, 0}); !errors.Is(err, dynamo.ErrStateBounds) {
		t.Errorf("zero sling length: got %v, want ErrStateBounds", err)
	}
	if _, err := NewCrane1D(dynamo.State{0, 0, 0}); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("short state: got %v, want ErrDimensionMismatch", err)
	}
}

func TestCraneSetParam(t *testing.T) {
	c := newCrane(t)

	if err := c.SetParam(PayloadMass, 4); err != nil {
		t.Fatal(err)
	}
	sys, err := c.LinearizedSystem()
	if err != nil {
		t.Fatalf("SetParam should re-linearise: %v", err)
	}
	if got, want := sys.B.At(5, 1), 1.0/8; math.Abs(got-want) > 1e-15 {
		t.Errorf("B[5,1]: got %v, want %v", got, want)
	}
	if got := c.GetParams()[PayloadMass]; got != 4 {
		t.Errorf("GetParams: got %v, want 4", got)
	}
}

func TestCraneSetParamRejectsState(t *testing.T) {
	c := newCrane(t)
	before := c.State()

	for _, name := range []string{craneOutputs[SlingLength].Name, craneOutputs[CartPosition].Name, "Hook mass"} {
		if err := c.SetParam(name, 0.5); !errors.Is(err, dynamo.ErrConfiguration) {
			t.Errorf("SetParam(%q): got %v, want ErrConfiguration", name, err)
		}
	}
	if got := c.State(); !floats.Equal(got, before) {
		t.Errorf("state moved from %v to %v", before, got)
	}
	if _, ok := c.Param(craneOutputs[SlingLength].Name); ok {
		t.Error("sling length reported as a parameter")
	}
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
