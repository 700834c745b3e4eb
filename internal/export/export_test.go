package export

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/gantrysim/internal/dynamo"
	"github.com/san-kum/gantrysim/internal/physics"
	"github.com/san-kum/gantrysim/internal/storage"
	"github.com/san-kum/gantrysim/internal/viz"
)

func craneTable(t *testing.T, n int) *dynamo.Table {
	t.Helper()
	table := dynamo.NewTable(physics.CraneOutputs())
	for i := 0; i < n; i++ {
		ts := float64(i+1) * 0.1
		if err := table.Append(ts, []float64{ts, 0.1, 0.01 * float64(i), 0, 0.1, 0}); err != nil {
			t.Fatal(err)
		}
	}
	return table
}

func TestPlotSignals(t *testing.T) {
	dir := t.TempDir()
	table := craneTable(t, 5)

	path := filepath.Join(dir, "output.svg")
	if err := PlotSignals(path, table, physics.CraneOutputs(), 2); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	svg := string(data)
	for _, want := range []string{"Time [s]", "Cart position [m]", "Sway angle [rad]"} {
		if !strings.Contains(svg, want) {
			t.Errorf("figure has no label %q", want)
		}
	}

	// no extension falls back to svg
	if err := PlotSignals(filepath.Join(dir, "bare"), table, nil, 4); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "bare.svg")); err != nil {
		t.Error(err)
	}
}

func TestPlotSignalsRejects(t *testing.T) {
	dir := t.TempDir()
	if err := PlotSignals(filepath.Join(dir, "x.svg"), nil, nil, 2); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("nil table: %v", err)
	}
	if err := PlotSignals(filepath.Join(dir, "x.bmp"), craneTable(t, 2), nil, 2); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("unknown format: %v", err)
	}
}

func TestPlotRun(t *testing.T) {
	st := storage.New(t.TempDir())
	outputs := physics.CraneOutputs()
	inputs := physics.CraneInputs()

	in := dynamo.NewTable(inputs)
	if err := in.Append(0.1, []float64{1, 1}); err != nil {
		t.Fatal(err)
	}
	runID, err := st.Save(storage.RunMetadata{Plant: "crane1d"}, []storage.Stream{
		{Name: "input", Table: in, Signals: inputs},
		{Name: "output", Table: craneTable(t, 3), Signals: outputs},
		{Name: "empty", Table: dynamo.NewTable(inputs), Signals: inputs},
	})
	if err != nil {
		t.Fatal(err)
	}

	paths, err := PlotRun(st, runID, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("wrote %v, want input and output figures", paths)
	}
	for _, p := range paths {
		if filepath.Ext(p) != ".svg" {
			t.Errorf("figure %s is not svg", p)
		}
		if _, err := os.Stat(p); err != nil {
			t.Error(err)
		}
	}
}

func TestCanvasToSVG(t *testing.T) {
	if CanvasToSVG(nil, 1) != "" {
		t.Error("nil canvas should give no svg")
	}
	c := viz.NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 2)
	svg := CanvasToSVG(c, 10)
	if n := strings.Count(svg, "<circle"); n != 2 {
		t.Errorf("got %d dots, want 2", n)
	}
	if !strings.Contains(svg, `width="40" height="40"`) {
		t.Errorf("unexpected size in %s", svg)
	}
	if !strings.Contains(svg, `cx="35.0" cy="25.0"`) {
		t.Errorf("dot (3,2) misplaced in %s", svg)
	}
}

func TestCraneSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crane.svg")
	if err := CraneSnapshot(path, dynamo.State{1, 0, 0.2, 0, 0.5, 0}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "<?xml") || strings.Count(string(data), "<circle") < 50 {
		t.Error("snapshot does not look like a drawn crane")
	}
}
