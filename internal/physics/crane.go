package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/gantrysim/internal/dynamo"
	"github.com/san-kum/gantrysim/internal/integrators"
	"github.com/san-kum/gantrysim/internal/plant"
	"gonum.org/v1/gonum/mat"
)

// Gravity is standard acceleration of gravity in m/s^2.
const Gravity = 9.80665

const (
	CartMass    = "Cart mass"
	PayloadMass = "Payload mass"
)

// State indices of the crane.
const (
	CartPosition = iota
	CartVelocity
	SwayAngle
	AngularVelocity
	SlingLength
	SlingRate
)

var craneInputs = dynamo.Signals{
	dynamo.MustSignal("Drive force on cart", "N", -2, 2, "F_c"),
	dynamo.MustSignal("Drive force on payload", "N", -2, 2, "F_p"),
}

var craneOutputs = dynamo.Signals{
	dynamo.MustSignal("Cart position", "m", 0, 2, "x"),
	dynamo.MustSignal("Cart velocity", "m/s", -1, 1, `\dot{x}`),
	dynamo.MustSignal("Sway angle", "rad", -math.Pi, math.Pi, `\theta`),
	dynamo.MustSignal("Angular velocity", "rad/s", math.Inf(-1), math.Inf(1), `\dot{\theta}`),
	dynamo.MustSignal("Sling length", "m", 0.1, 1, "l"),
	dynamo.MustSignal("Sling length changing speed", "m/s", -1, 1, `\dot{l}`),
}

var craneParameters = dynamo.Parameters{
	{Name: CartMass, Unit: "kg", Value: 1, Symbol: "m_c"},
	{Name: PayloadMass, Unit: "kg", Value: 2, Symbol: "m_p"},
}

// CraneOutputs describes the crane state, one signal per component.
func CraneOutputs() dynamo.Signals { return craneOutputs.Clone() }

// CraneInputs describes the two drive forces, in control vector order.
func CraneInputs() dynamo.Signals { return craneInputs.Clone() }

// DefaultCraneState is the cart at rest at the origin with the shortest sling.
func DefaultCraneState() dynamo.State {
	return dynamo.State{0, 0, 0, 0, 0.1, 0}
}

// Crane1D is a cart on a rail carrying a payload on a hoisted sling. The
// linearisation holds for small sway around the current sling length.
type Crane1D struct {
	*plant.Model
}

// NewCrane1D builds a crane at x0, or at DefaultCraneState when x0 is nil.
// The exact integrator is used unless plant.WithIntegrator says otherwise.
func NewCrane1D(x0 dynamo.State, opts ...plant.Option) (*Crane1D, error) {
	if x0 == nil {
		x0 = DefaultCraneState()
	}
	c := &Crane1D{}
	desc := plant.Descriptors{
		Inputs:     craneInputs,
		Outputs:    craneOutputs,
		Parameters: craneParameters,
	}
	m, err := plant.New(desc, x0, c, integrators.NewExact(), opts...)
	if err != nil {
		return nil, err
	}
	c.Model = m
	return c, nil
}

// WithPayloadMass overrides the payload mass on UpdateMatrices.
func WithPayloadMass(kg float64) dynamo.Override {
	return dynamo.Override{Name: PayloadMass, Value: kg}
}

// WithSlingLength moves the linearisation point on UpdateMatrices.
func WithSlingLength(m float64) dynamo.Override {
	return dynamo.Override{Name: craneOutputs[SlingLength].Name, Value: m}
}

// SetParam changes a mass and re-linearises the plant at once. Only
// parameters are accepted; state components are moved with SetState or
// WithSlingLength.
func (c *Crane1D) SetParam(name string, value float64) error {
	if _, ok := c.Param(name); !ok {
		return fmt.Errorf("%w: unknown parameter %q", dynamo.ErrConfiguration, name)
	}
	return c.UpdateMatrices(dynamo.Override{Name: name, Value: value})
}

// Linearize returns A and B for the masses in params at the sling length of x.
func (c *Crane1D) Linearize(params dynamo.Parameters, x dynamo.State) (*mat.Dense, *mat.Dense, error) {
	mc, ok := params.Get(CartMass)
	if !ok || mc <= 0 {
		return nil, nil, fmt.Errorf("%w: cart mass must be positive, got %g", dynamo.ErrConfiguration, mc)
	}
	mp, ok := params.Get(PayloadMass)
	if !ok || mp <= 0 {
		return nil, nil, fmt.Errorf("%w: payload mass must be positive, got %g", dynamo.ErrConfiguration, mp)
	}
	l := x[SlingLength]
	if l <= 0 {
		return nil, nil, fmt.Errorf("%w: sling length must be positive, got %g", dynamo.ErrStateBounds, l)
	}
	g := Gravity

	a := mat.NewDense(6, 6, []float64{
		0, 1, 0, 0, 0, 0,
		0, 0, mp * g / mc, 0, 0, 0,
		0, 0, 0, 1, 0, 0,
		0, 0, -g * (mc + mp) / mc / l, 0, 0, 0,
		0, 0, 0, 0, 0, 1,
		0, 0, 0, 0, 0, 0,
	})
	b := mat.NewDense(6, 2, []float64{
		0, 0,
		1 / mc, 0,
		0, 0,
		-1 / mc / l, 0,
		0, 0,
		0, 1 / (2 * mp),
	})
	return a, b, nil
}
