package control

import (
	"fmt"

	"github.com/san-kum/gantrysim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Static applies a fixed gain matrix, e.g. gains tuned offline and loaded
// from a config file. The gains never follow the plant.
type Static struct {
	k *mat.Dense
}

// NewStatic takes K as rows, one per input.
func NewStatic(k [][]float64) (*Static, error) {
	if len(k) == 0 || len(k[0]) == 0 {
		return nil, fmt.Errorf("%w: empty gain matrix", dynamo.ErrConfiguration)
	}
	n := len(k[0])
	data := make([]float64, 0, len(k)*n)
	for i, row := range k {
		if len(row) != n {
			return nil, fmt.Errorf("%w: gain row %d has %d columns, want %d", dynamo.ErrDimensionMismatch, i, len(row), n)
		}
		data = append(data, row...)
	}
	return &Static{k: mat.NewDense(len(k), n, data)}, nil
}

func (s *Static) ComputeGains() error { return nil }

func (s *Static) ControlInput(x dynamo.State) (dynamo.Control, error) {
	return multiply(s.k, x)
}

func (s *Static) Gains() *mat.Dense { return mat.DenseCopyOf(s.k) }

// multiply returns K·x.
func multiply(k *mat.Dense, x dynamo.State) (dynamo.Control, error) {
	m, n := k.Dims()
	if len(x) != n {
		return nil, fmt.Errorf("%w: state has %d components, K has %d columns", dynamo.ErrDimensionMismatch, len(x), n)
	}
	u := mat.NewVecDense(m, nil)
	u.MulVec(k, mat.NewVecDense(n, x.Clone()))
	return dynamo.Control(u.RawVector().Data), nil
}
