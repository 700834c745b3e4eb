package viz

import (
	"math"

	"github.com/san-kum/gantrysim/internal/dynamo"
	"github.com/san-kum/gantrysim/internal/physics"
)

const (
	sceneMargin = 6
	railY       = 4
	cartHalfW   = 4
	cartH       = 3
	payloadHalf = 2
	drumR       = 2
)

// Scene maps crane coordinates onto a canvas: the rail spans RailMin..RailMax
// across the canvas and MaxSling fills the height below it.
type Scene struct {
	RailMin, RailMax float64
	MaxSling         float64
}

// CraneScene fits the rail and sling bounds of the crane descriptors.
func CraneScene() Scene {
	out := physics.CraneOutputs()
	return Scene{
		RailMin:  out[physics.CartPosition].Min,
		RailMax:  out[physics.CartPosition].Max,
		MaxSling: out[physics.SlingLength].Max,
	}
}

// CartPixel returns the dot column of the cart centre for cart position pos.
func (s Scene) CartPixel(c *Canvas, pos float64) int {
	w, _ := c.Pixels()
	span := s.RailMax - s.RailMin
	if span <= 0 {
		span = 1
	}
	return sceneMargin + int(math.Round((pos-s.RailMin)/span*float64(w-2*sceneMargin)))
}

// PayloadPixel returns the dot position of the payload centre.
func (s Scene) PayloadPixel(c *Canvas, x dynamo.State) (int, int) {
	_, h := c.Pixels()
	cx := s.CartPixel(c, x[physics.CartPosition])
	top := railY + cartH
	maxSling := s.MaxSling
	if maxSling <= 0 {
		maxSling = 1
	}
	scale := float64(h-top-payloadHalf-2) / maxSling
	l := x[physics.SlingLength] * scale
	theta := x[physics.SwayAngle]
	return cx + int(math.Round(l*math.Sin(theta))), top + int(math.Round(l*math.Cos(theta)))
}

// Draw clears c and renders the rail, the cart, the sling and the payload
// for crane state x.
func (s Scene) Draw(c *Canvas, x dynamo.State) {
	c.Clear()
	if len(x) <= physics.SlingRate {
		return
	}
	w, _ := c.Pixels()

	c.DrawLine(0, railY, w-1, railY)
	for px := sceneMargin; px < w-sceneMargin; px += 8 {
		c.Set(px, railY+1)
	}

	cx := s.CartPixel(c, x[physics.CartPosition])
	c.FillRect(cx-cartHalfW, railY-cartH, cx+cartHalfW, railY-1)

	top := railY + cartH
	px, py := s.PayloadPixel(c, x)
	c.DrawLine(cx, railY, cx, top)
	c.Circle(cx, top, drumR)
	c.DrawLine(cx, top, px, py)
	c.FillRect(px-payloadHalf, py-payloadHalf, px+payloadHalf, py+payloadHalf)
}
