package dynamo

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func testSignals() Signals {
	return Signals{
		MustSignal("position", "m", 0, 2, "x"),
		MustSignal("angle", "rad", -math.Pi, math.Pi, `\theta`),
		MustSignal("rate", "rad/s", math.Inf(-1), math.Inf(1), `\dot{\theta}`),
	}
}

func TestNewSignal(t *testing.T) {
	tests := []struct {
		name     string
		sig      string
		min, max float64
		wantErr  bool
	}{
		{"ordered", "a", -1, 1, false},
		{"point", "a", 1, 1, false},
		{"unbounded", "a", math.Inf(-1), math.Inf(1), false},
		{"inverted", "a", 1, -1, true},
		{"nan", "a", math.NaN(), 1, true},
		{"no name", "", 0, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSignal(tt.sig, "m", tt.min, tt.max, "s")
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSignal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrConfiguration) {
				t.Errorf("got %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestCheckBounds(t *testing.T) {
	signals := testSignals()

	tests := []struct {
		name string
		x    []float64
		want error
	}{
		{"inside", []float64{1, 0, 1e9}, nil},
		{"on bounds", []float64{2, -math.Pi, 0}, nil},
		{"above", []float64{2.1, 0, 0}, ErrStateBounds},
		{"below", []float64{1, -4, 0}, ErrStateBounds},
		{"short", []float64{1, 0}, ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := signals.CheckBounds(tt.x)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSignalsLookup(t *testing.T) {
	signals := testSignals()

	s, ok := signals.Lookup("angle")
	if !ok || s.Unit != "rad" || s.Min != -math.Pi {
		t.Errorf("Lookup(angle) = %+v, %v", s, ok)
	}
	if _, ok := signals.Lookup("missing"); ok {
		t.Error("Lookup found a missing signal")
	}
	if got := s.Label(); got != "angle [rad]" {
		t.Errorf("Label() = %q", got)
	}
	if got := signals.Index("rate"); got != 2 {
		t.Errorf("Index(rate) = %d, want 2", got)
	}
}

func TestParameters(t *testing.T) {
	ps := Parameters{{Name: "mass", Unit: "kg", Value: 1}}
	c := ps.Clone()

	if !c.Set("mass", 3) {
		t.Fatal("Set(mass) reported a missing parameter")
	}
	if v, _ := ps.Get("mass"); v != 1 {
		t.Errorf("Set on a clone changed the original: %v", v)
	}
	if c.Set("length", 1) {
		t.Error("Set(length) reported success")
	}
	if _, ok := c.Get("length"); ok {
		t.Error("Get(length) reported success")
	}
}

func TestTable(t *testing.T) {
	tab := NewTable(testSignals())

	row := []float64{1, 2, 3}
	if err := tab.Append(0.1, row); err != nil {
		t.Fatal(err)
	}
	row[0] = 99
	if tab.Rows[0][0] != 1 {
		t.Error("Append kept a reference to the caller's row")
	}
	if err := tab.Append(0.2, []float64{1}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("short row: got %v", err)
	}

	other := NewTable(testSignals())
	_ = other.Append(0.2, []float64{4, 5, 6})
	if err := tab.Extend(other); err != nil {
		t.Fatal(err)
	}
	col, ok := tab.Column("angle")
	if !ok || len(col) != 2 || col[1] != 5 {
		t.Errorf("Column(angle) = %v, %v", col, ok)
	}

	mismatched := &Table{Columns: []string{"a", "b", "c"}}
	if err := tab.Extend(mismatched); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Extend with other columns: got %v", err)
	}
}

func TestStateSpace(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{0, 1, -1, 0})
	b := mat.NewDense(2, 1, []float64{0, 1})
	c := mat.NewDense(1, 2, []float64{1, 0})
	d := mat.NewDense(1, 1, []float64{0.5})

	sys, err := NewStateSpace(a, b, c, d)
	if err != nil {
		t.Fatal(err)
	}
	a.Set(0, 0, 7)
	if sys.A.At(0, 0) != 0 {
		t.Error("NewStateSpace did not copy A")
	}

	y, err := sys.Output(State{2, 3}, Control{4})
	if err != nil {
		t.Fatal(err)
	}
	if len(y) != 1 || y[0] != 4 {
		t.Errorf("Output = %v, want [4]", y)
	}

	if !sys.Equal(sys.Clone()) {
		t.Error("clone is not equal")
	}
	if _, err := NewStateSpace(a, mat.NewDense(3, 1, nil), c, d); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("bad B: got %v", err)
	}
	if _, err := sys.Output(State{1}, Control{0}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("short state: got %v", err)
	}
}
