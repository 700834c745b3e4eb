package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/san-kum/gantrysim/internal/dynamo"
)

// SetKnob sets one scalar of the config by name, for a plant with n states
// and m inputs. Knobs are
//
//	q<i>, r<i>     diagonal entry i of Q or R (1-based); unset weights start at identity
//	x<i>           component i of the initial state (1-based)
//	cart_mass, payload_mass
func (c *Config) SetKnob(name string, value float64, n, m int) error {
	switch name {
	case "cart_mass":
		c.Params.CartMass = value
		return nil
	case "payload_mass":
		c.Params.PayloadMass = value
		return nil
	}

	kind, i, err := c.indexedKnob(name, n, m)
	if err != nil {
		return err
	}
	switch kind {
	case "q":
		c.LQR.Q = diagonal(c.LQR.Q, n)
		c.LQR.Q[i][i] = value
	case "r":
		c.LQR.R = diagonal(c.LQR.R, m)
		c.LQR.R[i][i] = value
	case "x":
		c.InitState[i] = value
	}
	return nil
}

// Knob reads the current value of a knob accepted by SetKnob.
func (c *Config) Knob(name string, n, m int) (float64, error) {
	switch name {
	case "cart_mass":
		return c.Params.CartMass, nil
	case "payload_mass":
		return c.Params.PayloadMass, nil
	}

	kind, i, err := c.indexedKnob(name, n, m)
	if err != nil {
		return 0, err
	}
	switch kind {
	case "q":
		return diagonal(c.LQR.Q, n)[i][i], nil
	case "r":
		return diagonal(c.LQR.R, m)[i][i], nil
	default:
		return c.InitState[i], nil
	}
}

// indexedKnob splits q<i>, r<i> or x<i> into its kind and 0-based index.
func (c *Config) indexedKnob(name string, n, m int) (string, int, error) {
	if len(name) < 2 {
		return "", 0, fmt.Errorf("%w: unknown knob %q", dynamo.ErrConfiguration, name)
	}
	i, err := strconv.Atoi(name[1:])
	if err != nil {
		return "", 0, fmt.Errorf("%w: unknown knob %q", dynamo.ErrConfiguration, name)
	}
	i--

	kind := strings.ToLower(name[:1])
	size := n
	switch kind {
	case "r":
		size = m
	case "q":
	case "x":
		if len(c.InitState) != n {
			return "", 0, fmt.Errorf("%w: knob %q needs an init_state of length %d", dynamo.ErrConfiguration, name, n)
		}
	default:
		return "", 0, fmt.Errorf("%w: unknown knob %q", dynamo.ErrConfiguration, name)
	}
	if i < 0 || i >= size {
		return "", 0, fmt.Errorf("%w: knob %q outside 1..%d", dynamo.ErrDimensionMismatch, name, size)
	}
	return kind, i, nil
}

// diagonal returns w, or an n×n identity when w is unset.
func diagonal(w [][]float64, n int) [][]float64 {
	if len(w) != 0 {
		return w
	}
	w = make([][]float64, n)
	for i := range w {
		w[i] = make([]float64, n)
		w[i][i] = 1
	}
	return w
}
