package integrators

import (
	"fmt"

	"github.com/san-kum/gantrysim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Exact propagates a linear model with its matrix exponential. The input is
// interpolated linearly inside the interval (first-order hold), which reduces
// to a zero-order hold for a constant input.
//
// The discretisation of the last (A, B, dt) is cached.
type Exact struct {
	a, b  *mat.Dense
	dt    float64
	ad    *mat.Dense
	bd0   *mat.Dense
	bd1   *mat.Dense
	ready bool
}

func NewExact() *Exact {
	return &Exact{}
}

func (e *Exact) Propagate(sys *dynamo.StateSpace, x dynamo.State, u0, u1 dynamo.Control, dt float64) (dynamo.State, error) {
	n, m, _ := sys.Dims()
	if err := checkStep(n, m, x, u0, u1, dt); err != nil {
		return nil, err
	}

	if !e.ready || e.dt != dt || !mat.Equal(e.a, sys.A) || !mat.Equal(e.b, sys.B) {
		e.discretize(sys, dt)
	}

	next := mat.NewVecDense(n, nil)
	next.MulVec(e.ad, mat.NewVecDense(n, x.Clone()))
	if m > 0 {
		tmp := mat.NewVecDense(n, nil)
		tmp.MulVec(e.bd0, mat.NewVecDense(m, u0.Clone()))
		next.AddVec(next, tmp)
		tmp.MulVec(e.bd1, mat.NewVecDense(m, u1.Clone()))
		next.AddVec(next, tmp)
	}

	out := dynamo.State(next.RawVector().Data)
	if !out.IsValid() {
		return nil, fmt.Errorf("%w: exact propagation produced NaN/Inf", dynamo.ErrNumerical)
	}
	return out, nil
}

// discretize builds
//
//	M = [[A*dt, B*dt, 0], [0, 0, I], [0, 0, 0]]
//
// whose exponential holds Ad = e^(A dt) and the hold matrices
// Bd1 = E[0:n, n+m:] and Bd0 = E[0:n, n:n+m] - Bd1.
func (e *Exact) discretize(sys *dynamo.StateSpace, dt float64) {
	n, m, _ := sys.Dims()
	size := n + 2*m

	aug := mat.NewDense(size, size, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			aug.Set(i, j, sys.A.At(i, j)*dt)
		}
		for j := 0; j < m; j++ {
			aug.Set(i, n+j, sys.B.At(i, j)*dt)
		}
	}
	for j := 0; j < m; j++ {
		aug.Set(n+j, n+m+j, 1)
	}

	var exp mat.Dense
	exp.Exp(aug)

	e.ad = mat.DenseCopyOf(exp.Slice(0, n, 0, n))
	if m > 0 {
		e.bd1 = mat.DenseCopyOf(exp.Slice(0, n, n+m, size))
		e.bd0 = mat.DenseCopyOf(exp.Slice(0, n, n, n+m))
		e.bd0.Sub(e.bd0, e.bd1)
	}
	e.a = mat.DenseCopyOf(sys.A)
	e.b = mat.DenseCopyOf(sys.B)
	e.dt = dt
	e.ready = true
}

func checkStep(n, m int, x dynamo.State, u0, u1 dynamo.Control, dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %g", dynamo.ErrConfiguration, dt)
	}
	if len(x) != n {
		return fmt.Errorf("%w: state has length %d, want %d", dynamo.ErrDimensionMismatch, len(x), n)
	}
	if len(u0) != m || len(u1) != m {
		return fmt.Errorf("%w: input has length %d, want %d", dynamo.ErrDimensionMismatch, len(u0), m)
	}
	return nil
}
