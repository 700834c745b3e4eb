package control

import (
	"fmt"

	"github.com/san-kum/gantrysim/internal/dynamo"
)

// Open applies no feedback; the plant only sees the reference.
type Open struct {
	inputs int
}

func NewOpen(inputs int) (*Open, error) {
	if inputs <= 0 {
		return nil, fmt.Errorf("%w: open loop needs at least one input, got %d", dynamo.ErrConfiguration, inputs)
	}
	return &Open{inputs: inputs}, nil
}

func (o *Open) ComputeGains() error { return nil }

func (o *Open) ControlInput(x dynamo.State) (dynamo.Control, error) {
	return make(dynamo.Control, o.inputs), nil
}
