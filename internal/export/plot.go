package export

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/san-kum/gantrysim/internal/dynamo"
	"github.com/san-kum/gantrysim/internal/storage"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	DefaultColumns = 2
	DefaultFormat  = "svg"

	tileWidth  = 5 * vg.Inch
	tileHeight = 2.5 * vg.Inch
)

var gridColor = color.Gray{Y: 128}

// plainLabel turns the math markup of gain labels into plain text.
var plainLabel = strings.NewReplacer(
	"$", "",
	`\dot{\theta}`, "ω",
	`\theta`, "θ",
	`\dot{x}`, "v",
	`\dot{l}`, "dl",
	"_{", "_",
	"}", "",
)

// PlotSignals draws every column of table against time in a grid with cols
// columns and writes the figure to path. The format follows the extension
// (svg, png, pdf, eps). Axis labels come from the descriptor with the
// column's name.
func PlotSignals(path string, table *dynamo.Table, signals dynamo.Signals, cols int) error {
	if table == nil || len(table.Columns) == 0 {
		return fmt.Errorf("%w: nothing to plot", dynamo.ErrConfiguration)
	}
	if cols <= 0 {
		cols = DefaultColumns
	}
	if cols > len(table.Columns) {
		cols = len(table.Columns)
	}
	rows := (len(table.Columns) + cols - 1) / cols

	plots := make([][]*plot.Plot, rows)
	for r := range plots {
		plots[r] = make([]*plot.Plot, cols)
		for c := range plots[r] {
			i := r*cols + c
			if i >= len(table.Columns) {
				filler := plot.New()
				filler.HideAxes()
				plots[r][c] = filler
				continue
			}
			p, err := signalPlot(table, i, signals)
			if err != nil {
				return err
			}
			plots[r][c] = p
		}
	}

	format := strings.TrimPrefix(filepath.Ext(path), ".")
	if format == "" {
		format = DefaultFormat
		path += "." + format
	}
	w := tileWidth * vg.Length(cols)
	h := tileHeight * vg.Length(rows)
	canvas, err := draw.NewFormattedCanvas(w, h, format)
	if err != nil {
		return fmt.Errorf("%w: %v", dynamo.ErrConfiguration, err)
	}

	tiles := draw.Tiles{
		Rows:      rows,
		Cols:      cols,
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align(plots, tiles, draw.New(canvas))
	for r := range plots {
		for c := range plots[r] {
			plots[r][c].Draw(canvases[r][c])
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := canvas.WriteTo(f); err != nil {
		return err
	}
	return f.Close()
}

func signalPlot(table *dynamo.Table, col int, signals dynamo.Signals) (*plot.Plot, error) {
	name := table.Columns[col]
	label := name
	if sig, ok := signals.Lookup(name); ok {
		label = sig.Label()
	}

	p := plot.New()
	p.X.Label.Text = "Time [s]"
	p.Y.Label.Text = plainLabel.Replace(label)

	grid := plotter.NewGrid()
	grid.Vertical.Color = gridColor
	grid.Vertical.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	grid.Vertical.Width = vg.Points(0.5)
	grid.Horizontal = grid.Vertical
	p.Add(grid)

	pts := make(plotter.XYs, len(table.Rows))
	for i, row := range table.Rows {
		pts[i].X = table.Times[i]
		pts[i].Y = row[col]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", name, err)
	}
	line.LineStyle.Width = vg.Points(1.2)
	p.Add(line)
	return p, nil
}

// PlotRun renders every stream of a stored run into the run directory and
// returns the written paths.
func PlotRun(st *storage.Store, runID, format string) ([]string, error) {
	meta, err := st.Load(runID)
	if err != nil {
		return nil, err
	}
	signals, err := st.LoadSignals(runID)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = DefaultFormat
	}

	paths := make([]string, 0, len(meta.Streams))
	for _, name := range meta.Streams {
		table, err := st.LoadStream(runID, name)
		if err != nil {
			return paths, err
		}
		if table.Len() == 0 {
			continue
		}
		path := filepath.Join(st.Dir(runID), name+"."+format)
		if err := PlotSignals(path, table, signals[name], DefaultColumns); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
