package integrators

import (
	"fmt"

	"github.com/san-kum/gantrysim/internal/dynamo"
)

// RK4 integrates dx/dt = A*x + B*u with classical Runge-Kutta, splitting every
// interval into Substeps equal pieces.
type RK4 struct {
	Substeps int

	k1, k2, k3, k4 dynamo.State
	scratch        dynamo.State
}

func NewRK4(substeps int) *RK4 {
	if substeps < 1 {
		substeps = 1
	}
	return &RK4{Substeps: substeps}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(dynamo.State, n)
		r.k2 = make(dynamo.State, n)
		r.k3 = make(dynamo.State, n)
		r.k4 = make(dynamo.State, n)
		r.scratch = make(dynamo.State, n)
	}
}

func (r *RK4) Propagate(sys *dynamo.StateSpace, x dynamo.State, u0, u1 dynamo.Control, dt float64) (dynamo.State, error) {
	n, m, _ := sys.Dims()
	if err := checkStep(n, m, x, u0, u1, dt); err != nil {
		return nil, err
	}
	r.ensureScratch(n)

	h := dt / float64(r.Substeps)
	cur := x.Clone()
	u := make(dynamo.Control, m)

	for s := 0; s < r.Substeps; s++ {
		tau := float64(s) * h

		interp(u, u0, u1, tau/dt)
		derive(sys, cur, u, r.k1)

		interp(u, u0, u1, (tau+h/2)/dt)
		for i := 0; i < n; i++ {
			r.scratch[i] = cur[i] + h*0.5*r.k1[i]
		}
		derive(sys, r.scratch, u, r.k2)

		for i := 0; i < n; i++ {
			r.scratch[i] = cur[i] + h*0.5*r.k2[i]
		}
		derive(sys, r.scratch, u, r.k3)

		interp(u, u0, u1, (tau+h)/dt)
		for i := 0; i < n; i++ {
			r.scratch[i] = cur[i] + h*r.k3[i]
		}
		derive(sys, r.scratch, u, r.k4)

		h6 := h / 6.0
		for i := 0; i < n; i++ {
			cur[i] += h6 * (r.k1[i] + 2*r.k2[i] + 2*r.k3[i] + r.k4[i])
		}
	}

	if !cur.IsValid() {
		return nil, fmt.Errorf("%w: rk4 propagation produced NaN/Inf", dynamo.ErrNumerical)
	}
	return cur, nil
}

func interp(dst, u0, u1 dynamo.Control, frac float64) {
	for i := range dst {
		dst[i] = u0[i] + frac*(u1[i]-u0[i])
	}
}

// derive writes A*x + B*u into dst.
func derive(sys *dynamo.StateSpace, x dynamo.State, u dynamo.Control, dst dynamo.State) {
	n, m, _ := sys.Dims()
	for i := 0; i < n; i++ {
		v := 0.0
		for j := 0; j < n; j++ {
			v += sys.A.At(i, j) * x[j]
		}
		for j := 0; j < m; j++ {
			v += sys.B.At(i, j) * u[j]
		}
		dst[i] = v
	}
}
