package metrics

import (
	"math"

	"github.com/san-kum/gantrysim/internal/dynamo"
)

// SwingEnergy is the mean mechanical energy of the payload swinging about
// the trolley: ½ m l² θ̇² + m g l (1 − cos θ).
type SwingEnergy struct {
	name    string
	mass    float64
	gravity float64

	angle, rate, length int

	samples     int
	totalEnergy float64
}

// NewSwingEnergy reads the sway angle, angular velocity and sling length
// from the given state indices.
func NewSwingEnergy(mass, gravity float64, angle, rate, length int) *SwingEnergy {
	return &SwingEnergy{
		name:    "swing_energy",
		mass:    mass,
		gravity: gravity,
		angle:   angle,
		rate:    rate,
		length:  length,
	}
}

func (e *SwingEnergy) Name() string { return e.name }

func (e *SwingEnergy) Observe(x dynamo.State, u dynamo.Control, t float64) {
	n := len(x)
	if e.angle >= n || e.rate >= n || e.length >= n {
		return
	}
	theta, omega, l := x[e.angle], x[e.rate], x[e.length]
	ke := 0.5 * e.mass * l * l * omega * omega
	pe := e.mass * e.gravity * l * (1 - math.Cos(theta))
	e.totalEnergy += ke + pe
	e.samples++
}

func (e *SwingEnergy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *SwingEnergy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}
