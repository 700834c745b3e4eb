package control

import (
	"fmt"
	"math"

	"github.com/san-kum/gantrysim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

const (
	signMaxIter   = 100
	signTol       = 1e-12
	refineMaxIter = 4

	// ResidualTol bounds the relative CARE residual of an accepted solution.
	ResidualTol = 1e-6
)

// SolveCARE returns the stabilising solution P of
//
//	AᵀP + PA − PBR⁻¹BᵀP + Q = 0
//
// P is found from the matrix sign function of the Hamiltonian
// [[A, −BR⁻¹Bᵀ], [−Q, −Aᵀ]] and polished with Newton–Kleinman steps. Any
// failure, including a solution that does not stabilise A − BR⁻¹BᵀP, is
// reported as ErrNumerical.
func SolveCARE(a, b, q, r mat.Matrix) (*mat.Dense, error) {
	n, err := careDims(a, b, q, r)
	if err != nil {
		return nil, err
	}

	rinv, err := inverse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: R is singular", dynamo.ErrNumerical)
	}
	var g mat.Dense
	g.Product(b, rinv, b.T())

	h := mat.NewDense(2*n, 2*n, nil)
	h.Slice(0, n, 0, n).(*mat.Dense).Copy(a)
	h.Slice(0, n, n, 2*n).(*mat.Dense).Scale(-1, &g)
	h.Slice(n, 2*n, 0, n).(*mat.Dense).Scale(-1, q)
	h.Slice(n, 2*n, n, 2*n).(*mat.Dense).Scale(-1, a.T())

	w, err := matrixSign(h)
	if err != nil {
		return nil, err
	}

	// [W12; W22 + I] P = −[W11 + I; W21]
	lhs := mat.NewDense(2*n, n, nil)
	rhs := mat.NewDense(2*n, n, nil)
	lhs.Slice(0, n, 0, n).(*mat.Dense).Copy(w.Slice(0, n, n, 2*n))
	lhs.Slice(n, 2*n, 0, n).(*mat.Dense).Copy(w.Slice(n, 2*n, n, 2*n))
	rhs.Slice(0, n, 0, n).(*mat.Dense).Copy(w.Slice(0, n, 0, n))
	rhs.Slice(n, 2*n, 0, n).(*mat.Dense).Copy(w.Slice(n, 2*n, 0, n))
	for i := 0; i < n; i++ {
		lhs.Set(n+i, i, lhs.At(n+i, i)+1)
		rhs.Set(i, i, rhs.At(i, i)+1)
	}
	rhs.Scale(-1, rhs)

	var p mat.Dense
	if err := p.Solve(lhs, rhs); err != nil && !finiteCondition(err) {
		return nil, fmt.Errorf("%w: no stabilising Riccati solution: %v", dynamo.ErrNumerical, err)
	}
	symmetrize(&p)

	res := careResidual(a, &g, q, &p)
	for i := 0; i < refineMaxIter && res > signTol; i++ {
		next, ok := kleinmanStep(a, &g, q, &p)
		if !ok {
			break
		}
		nres := careResidual(a, &g, q, next)
		if !(nres < res) {
			break
		}
		p.Copy(next)
		res = nres
	}

	if !finite(&p) {
		return nil, fmt.Errorf("%w: Riccati solution is not finite", dynamo.ErrNumerical)
	}
	if err := checkStable(a, &g, &p); err != nil {
		return nil, err
	}
	if res > ResidualTol {
		return nil, fmt.Errorf("%w: Riccati residual %.3g above %g", dynamo.ErrNumerical, res, ResidualTol)
	}
	return &p, nil
}

func careDims(a, b, q, r mat.Matrix) (int, error) {
	if a == nil || b == nil || q == nil || r == nil {
		return 0, fmt.Errorf("%w: A, B, Q and R must all be set", dynamo.ErrConfiguration)
	}
	n, nc := a.Dims()
	if n != nc || n == 0 {
		return 0, fmt.Errorf("%w: A is %dx%d, want square", dynamo.ErrDimensionMismatch, n, nc)
	}
	br, m := b.Dims()
	if br != n || m == 0 {
		return 0, fmt.Errorf("%w: B is %dx%d, want %d rows", dynamo.ErrDimensionMismatch, br, m, n)
	}
	if qr, qc := q.Dims(); qr != n || qc != n {
		return 0, fmt.Errorf("%w: Q is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, qr, qc, n, n)
	}
	if rr, rc := r.Dims(); rr != m || rc != m {
		return 0, fmt.Errorf("%w: R is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, rr, rc, m, m)
	}
	return n, nil
}

// matrixSign runs the determinant-scaled Newton iteration
// Z ← (Z/c + c·Z⁻¹)/2 with c = |det Z|^(1/k).
func matrixSign(h *mat.Dense) (*mat.Dense, error) {
	k, _ := h.Dims()
	z := mat.DenseCopyOf(h)
	var (
		lu   mat.LU
		zinv mat.Dense
		next mat.Dense
		diff mat.Dense
	)
	prev := math.Inf(1)
	for iter := 0; iter < signMaxIter; iter++ {
		lu.Factorize(z)
		logdet, _ := lu.LogDet()
		if math.IsInf(logdet, -1) || math.IsNaN(logdet) {
			return nil, fmt.Errorf("%w: Hamiltonian has eigenvalues on the imaginary axis", dynamo.ErrNumerical)
		}
		if err := zinv.Inverse(z); err != nil && !finiteCondition(err) {
			return nil, fmt.Errorf("%w: Hamiltonian has eigenvalues on the imaginary axis", dynamo.ErrNumerical)
		}
		c := math.Exp(logdet / float64(k))
		next.Scale(1/c, z)
		zinv.Scale(c, &zinv)
		next.Add(&next, &zinv)
		next.Scale(0.5, &next)

		diff.Sub(&next, z)
		rel := mat.Norm(&diff, 1) / math.Max(mat.Norm(&next, 1), math.SmallestNonzeroFloat64)
		z.Copy(&next)
		if math.IsNaN(rel) {
			break
		}
		if rel <= signTol {
			return z, nil
		}
		// Rounding floor reached; the residual check decides.
		if rel < 1e-6 && rel >= prev {
			return z, nil
		}
		prev = rel
	}
	return nil, fmt.Errorf("%w: matrix sign iteration did not converge", dynamo.ErrNumerical)
}

// kleinmanStep solves the Lyapunov equation AkᵀX + XAk = −(Q + PGP) with
// Ak = A − GP through its Kronecker form.
func kleinmanStep(a, g, q mat.Matrix, p *mat.Dense) (*mat.Dense, bool) {
	n, _ := a.Dims()

	var gp, ak mat.Dense
	gp.Mul(g, p)
	ak.Sub(a, &gp)

	var pgp, rhs mat.Dense
	pgp.Mul(p, &gp)
	rhs.Add(q, &pgp)
	rhs.Scale(-1, &rhs)

	eye := identity(n)
	var l, l2 mat.Dense
	l.Kronecker(eye, ak.T())
	l2.Kronecker(ak.T(), eye)
	l.Add(&l, &l2)

	var x mat.VecDense
	if err := x.SolveVec(&l, vec(&rhs)); err != nil && !finiteCondition(err) {
		return nil, false
	}
	next := unvec(&x, n)
	symmetrize(next)
	return next, finite(next)
}

// careResidual is ‖AᵀP + PA − PGP + Q‖ relative to the size of its terms.
func careResidual(a, g, q mat.Matrix, p *mat.Dense) float64 {
	var atp, pa, pgp, res mat.Dense
	atp.Mul(a.T(), p)
	pa.Mul(p, a)
	pgp.Product(p, g, p)
	res.Add(&atp, &pa)
	res.Sub(&res, &pgp)
	res.Add(&res, q)

	scale := mat.Norm(&atp, 2) + mat.Norm(&pa, 2) + mat.Norm(&pgp, 2) + mat.Norm(q, 2)
	return mat.Norm(&res, 2) / math.Max(scale, 1)
}

func checkStable(a, g mat.Matrix, p *mat.Dense) error {
	var gp, cl mat.Dense
	gp.Mul(g, p)
	cl.Sub(a, &gp)

	var eig mat.Eigen
	if ok := eig.Factorize(&cl, mat.EigenNone); !ok {
		return fmt.Errorf("%w: closed-loop eigenvalues did not converge", dynamo.ErrNumerical)
	}
	for _, v := range eig.Values(nil) {
		if real(v) >= 0 || math.IsNaN(real(v)) {
			return fmt.Errorf("%w: closed loop not stabilised, eigenvalue %.4g", dynamo.ErrNumerical, v)
		}
	}
	return nil
}

// inverse tolerates ill-conditioning but not singularity.
func inverse(m mat.Matrix) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil && !finiteCondition(err) {
		return nil, err
	}
	if !finite(&inv) {
		return nil, mat.Condition(math.Inf(1))
	}
	return &inv, nil
}

func finiteCondition(err error) bool {
	c, ok := err.(mat.Condition)
	return ok && !math.IsInf(float64(c), 1)
}

func finite(m *mat.Dense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func symmetrize(m *mat.Dense) {
	var t mat.Dense
	t.CloneFrom(m.T())
	m.Add(m, &t)
	m.Scale(0.5, m)
}

func identity(n int) *mat.Dense {
	eye := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		eye.Set(i, i, 1)
	}
	return eye
}

// vec stacks the columns of m.
func vec(m *mat.Dense) *mat.VecDense {
	r, c := m.Dims()
	v := mat.NewVecDense(r*c, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			v.SetVec(j*r+i, m.At(i, j))
		}
	}
	return v
}

func unvec(v *mat.VecDense, n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			m.Set(i, j, v.AtVec(j*n+i))
		}
	}
	return m
}
