package viz

import "strings"

// brailleBlank is U+2800; each cell ORs in one bit per lit dot.
const brailleBlank = 0x2800

// dotBits[row][col] is the braille bit of a dot inside its 2x4 cell.
var dotBits = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a grid of braille cells. Pixel coordinates address the dots, so
// the canvas is Width*2 pixels wide and Height*4 pixels tall.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	grid := make([][]rune, h)
	for i := range grid {
		grid[i] = make([]rune, w)
	}
	c := &Canvas{Width: w, Height: h, Grid: grid}
	c.Clear()
	return c
}

// Pixels returns the canvas size in dots.
func (c *Canvas) Pixels() (w, h int) { return c.Width * 2, c.Height * 4 }

func (c *Canvas) locate(x, y int) (cell *rune, bit rune) {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return nil, 0
	}
	return &c.Grid[y/4][x/2], dotBits[y%4][x%2]
}

// Set lights a dot. Dots off the canvas are ignored.
func (c *Canvas) Set(x, y int) {
	if cell, bit := c.locate(x, y); cell != nil {
		*cell |= bit
	}
}

func (c *Canvas) Lit(x, y int) bool {
	cell, bit := c.locate(x, y)
	return cell != nil && *cell&bit != 0
}

func (c *Canvas) Clear() {
	for _, row := range c.Grid {
		for j := range row {
			row[j] = brailleBlank
		}
	}
}

// DrawLine lights the Bresenham line from (x0, y0) to (x1, y1).
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx, sx := absInt(x1-x0), sign(x1-x0)
	dy, sy := -absInt(y1-y0), sign(y1-y0)
	e := dx + dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// Circle lights the midpoint circle of radius r around (cx, cy).
func (c *Canvas) Circle(cx, cy, r int) {
	x, y, d := r, 0, 1-r
	for x >= y {
		for _, p := range [8][2]int{{x, y}, {y, x}, {-y, x}, {-x, y}, {-x, -y}, {-y, -x}, {y, -x}, {x, -y}} {
			c.Set(cx+p[0], cy+p[1])
		}
		y++
		if d < 0 {
			d += 2*y + 1
		} else {
			x--
			d += 2*(y-x) + 1
		}
	}
}

// FillRect lights every dot of the rectangle with corners (x0, y0) and
// (x1, y1), inclusive.
func (c *Canvas) FillRect(x0, y0, x1, y1 int) {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			c.Set(x, y)
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	b.Grow(c.Height * (c.Width*3 + 1))
	for _, row := range c.Grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
