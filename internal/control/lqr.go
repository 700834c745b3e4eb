package control

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/gantrysim/internal/dynamo"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// DefaultGainTolerance is the magnitude below which a rounded gain is
// treated as inactive.
const DefaultGainTolerance = 1e-10

const gainDecimals = 4

// LQR is a continuous-time infinite-horizon linear-quadratic regulator. It
// keeps its own copies of A and B; the owner pushes new matrices through
// UpdateStateMatrices whenever the plant is re-linearised.
type LQR struct {
	a, b, q, r *mat.Dense
	signals    dynamo.Signals

	k *mat.Dense
	p *mat.Dense
}

// NewLQR validates the shapes and solves for the first gains. outputs
// labels the state columns of K; it may be nil.
func NewLQR(a, b, q, r mat.Matrix, outputs dynamo.Signals) (*LQR, error) {
	n, err := careDims(a, b, q, r)
	if err != nil {
		return nil, err
	}
	if outputs != nil && len(outputs) != n {
		return nil, fmt.Errorf("%w: %d output signals for %d states", dynamo.ErrDimensionMismatch, len(outputs), n)
	}
	_, m := b.Dims()

	l := &LQR{
		a:       mat.DenseCopyOf(a),
		b:       mat.DenseCopyOf(b),
		q:       mat.DenseCopyOf(q),
		r:       mat.DenseCopyOf(r),
		signals: gainSignals(outputs, m, n),
	}
	if err := l.ComputeGains(); err != nil {
		return nil, err
	}
	return l, nil
}

// ComputeGains solves the Riccati equation for the stored matrices and sets
// K = R⁻¹BᵀP. On failure the previous gains are discarded.
func (l *LQR) ComputeGains() error {
	l.k, l.p = nil, nil

	p, err := SolveCARE(l.a, l.b, l.q, l.r)
	if err != nil {
		return err
	}
	var btp, k mat.Dense
	btp.Mul(l.b.T(), p)
	if err := k.Solve(l.r, &btp); err != nil && !finiteCondition(err) {
		return fmt.Errorf("%w: R is singular", dynamo.ErrNumerical)
	}
	l.k, l.p = &k, p
	return nil
}

// UpdateStateMatrices replaces A and B and re-solves.
func (l *LQR) UpdateStateMatrices(a, b mat.Matrix) error {
	if a == nil || b == nil {
		return fmt.Errorf("%w: A and B must be set", dynamo.ErrConfiguration)
	}
	if _, err := careDims(a, b, l.q, l.r); err != nil {
		return err
	}
	l.a = mat.DenseCopyOf(a)
	l.b = mat.DenseCopyOf(b)
	return l.ComputeGains()
}

// ControlInput returns K·x. The caller applies the sign.
func (l *LQR) ControlInput(x dynamo.State) (dynamo.Control, error) {
	if l.k == nil {
		return nil, fmt.Errorf("%w: gains not computed", dynamo.ErrPrecondition)
	}
	return multiply(l.k, x)
}

// Reset discards the gains; ControlInput fails until ComputeGains runs.
func (l *LQR) Reset() {
	l.k, l.p = nil, nil
}

// Gains returns a copy of K, or nil before the first solve.
func (l *LQR) Gains() *mat.Dense {
	if l.k == nil {
		return nil
	}
	return mat.DenseCopyOf(l.k)
}

// Riccati returns a copy of P, or nil before the first solve.
func (l *LQR) Riccati() *mat.Dense {
	if l.p == nil {
		return nil
	}
	return mat.DenseCopyOf(l.p)
}

// GainSignals describes the entries of K in row-major order.
func (l *LQR) GainSignals() dynamo.Signals { return l.signals.Clone() }

// FlatGains returns K in row-major order, or nil before the first solve.
func (l *LQR) FlatGains() []float64 {
	if l.k == nil {
		return nil
	}
	m, n := l.k.Dims()
	flat := make([]float64, 0, m*n)
	for i := 0; i < m; i++ {
		flat = append(flat, l.k.RawRowView(i)...)
	}
	return flat
}

// FilterGains rounds every gain to four decimals and keeps those whose
// magnitude exceeds tol, keyed by gain label.
func (l *LQR) FilterGains(tol float64) (map[string]float64, error) {
	flat := l.FlatGains()
	if flat == nil {
		return nil, fmt.Errorf("%w: gains not computed", dynamo.ErrPrecondition)
	}
	active := make(map[string]float64)
	for i, v := range flat {
		v = scalar.Round(v, gainDecimals)
		if math.Abs(v) > tol {
			active[l.signals[i].Name] = v
		}
	}
	return active, nil
}

// GetParams exposes the diagonal weights as q1..qn and r1..rm.
func (l *LQR) GetParams() map[string]float64 {
	n, _ := l.q.Dims()
	m, _ := l.r.Dims()
	params := make(map[string]float64, n+m)
	for i := 0; i < n; i++ {
		params["q"+strconv.Itoa(i+1)] = l.q.At(i, i)
	}
	for i := 0; i < m; i++ {
		params["r"+strconv.Itoa(i+1)] = l.r.At(i, i)
	}
	return params
}

// SetParam changes one diagonal weight and re-solves. If the new weight has
// no solution the old one is restored and the error returned.
func (l *LQR) SetParam(name string, value float64) error {
	w, i, err := l.weight(name)
	if err != nil {
		return err
	}
	old := w.At(i, i)
	w.Set(i, i, value)
	if err := l.ComputeGains(); err != nil {
		w.Set(i, i, old)
		if rerr := l.ComputeGains(); rerr != nil {
			return fmt.Errorf("%v (restoring %s: %v)", err, name, rerr)
		}
		return err
	}
	return nil
}

func (l *LQR) weight(name string) (*mat.Dense, int, error) {
	var w *mat.Dense
	switch {
	case strings.HasPrefix(name, "q"):
		w = l.q
	case strings.HasPrefix(name, "r"):
		w = l.r
	default:
		return nil, 0, fmt.Errorf("%w: unknown weight %q", dynamo.ErrConfiguration, name)
	}
	i, err := strconv.Atoi(name[1:])
	size, _ := w.Dims()
	if err != nil || i < 1 || i > size {
		return nil, 0, fmt.Errorf("%w: unknown weight %q", dynamo.ErrConfiguration, name)
	}
	return w, i - 1, nil
}

// gainSignals labels K[i][j] with the symbol of state j, and with the input
// row as well when there is more than one input.
func gainSignals(outputs dynamo.Signals, m, n int) dynamo.Signals {
	signals := make(dynamo.Signals, 0, m*n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var label string
			sym := ""
			if outputs != nil {
				sym = outputs[j].Symbol
			}
			switch {
			case sym == "":
				label = fmt.Sprintf("$K_{%d,%d}$", i+1, j+1)
			case m == 1:
				label = fmt.Sprintf("$K_{%s}$", sym)
			default:
				label = fmt.Sprintf("$K_{%d,%s}$", i+1, sym)
			}
			signals = append(signals, dynamo.Signal{
				Name:   label,
				Unit:   "-",
				Min:    math.Inf(-1),
				Max:    math.Inf(1),
				Symbol: "-",
			})
		}
	}
	return signals
}
