package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/san-kum/gantrysim/internal/dynamo"
	"github.com/san-kum/gantrysim/internal/viz"
)

// CanvasToSVG draws every lit dot of a braille canvas as a circle, scale
// pixels apart.
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}
	w, h := canvas.Pixels()
	width, height := float64(w)*scale, float64(h)*scale

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="#ffb000">
`, width, height, width, height)

	r := scale * 0.4
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !canvas.Lit(x, y) {
				continue
			}
			fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
				float64(x)*scale+scale/2, float64(y)*scale+scale/2, r)
		}
	}

	sb.WriteString("</g>\n</svg>\n")
	return sb.String()
}

// CraneSnapshot renders the crane at state x into an SVG file.
func CraneSnapshot(path string, x dynamo.State) error {
	canvas := viz.NewCanvas(56, 18)
	viz.CraneScene().Draw(canvas, x)
	return os.WriteFile(path, []byte(CanvasToSVG(canvas, 6)), 0644)
}
