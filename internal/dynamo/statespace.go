package dynamo

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StateSpace is a continuous-time linear model
//
//	dx/dt = A*x + B*u
//	y     = C*x + D*u
type StateSpace struct {
	A *mat.Dense
	B *mat.Dense
	C *mat.Dense
	D *mat.Dense
}

// NewStateSpace copies the matrices and checks that their shapes agree.
func NewStateSpace(a, b, c, d mat.Matrix) (*StateSpace, error) {
	if a == nil || b == nil || c == nil || d == nil {
		return nil, fmt.Errorf("%w: state-space matrices must all be set", ErrConfiguration)
	}
	ar, ac := a.Dims()
	if ar != ac {
		return nil, fmt.Errorf("%w: A is %dx%d, want square", ErrDimensionMismatch, ar, ac)
	}
	br, bc := b.Dims()
	if br != ar {
		return nil, fmt.Errorf("%w: B has %d rows, want %d", ErrDimensionMismatch, br, ar)
	}
	cr, cc := c.Dims()
	if cc != ar {
		return nil, fmt.Errorf("%w: C has %d columns, want %d", ErrDimensionMismatch, cc, ar)
	}
	dr, dc := d.Dims()
	if dr != cr || dc != bc {
		return nil, fmt.Errorf("%w: D is %dx%d, want %dx%d", ErrDimensionMismatch, dr, dc, cr, bc)
	}
	return &StateSpace{
		A: mat.DenseCopyOf(a),
		B: mat.DenseCopyOf(b),
		C: mat.DenseCopyOf(c),
		D: mat.DenseCopyOf(d),
	}, nil
}

// Dims returns the number of states (n), inputs (m) and outputs (p).
func (s *StateSpace) Dims() (n, m, p int) {
	n, m = s.B.Dims()
	p, _ = s.C.Dims()
	return n, m, p
}

func (s *StateSpace) Clone() *StateSpace {
	return &StateSpace{
		A: mat.DenseCopyOf(s.A),
		B: mat.DenseCopyOf(s.B),
		C: mat.DenseCopyOf(s.C),
		D: mat.DenseCopyOf(s.D),
	}
}

// Equal reports bit-identical matrices.
func (s *StateSpace) Equal(o *StateSpace) bool {
	if s == nil || o == nil {
		return s == o
	}
	return mat.Equal(s.A, o.A) && mat.Equal(s.B, o.B) && mat.Equal(s.C, o.C) && mat.Equal(s.D, o.D)
}

// Output evaluates y = C*x + D*u.
func (s *StateSpace) Output(x State, u Control) (State, error) {
	n, m, p := s.Dims()
	if len(x) != n {
		return nil, fmtDims("state", n, len(x))
	}
	if len(u) != m {
		return nil, fmtDims("input", m, len(u))
	}
	y := mat.NewVecDense(p, nil)
	y.MulVec(s.C, mat.NewVecDense(n, x.Clone()))
	if m > 0 {
		du := mat.NewVecDense(p, nil)
		du.MulVec(s.D, mat.NewVecDense(m, u.Clone()))
		y.AddVec(y, du)
	}
	return State(y.RawVector().Data), nil
}
