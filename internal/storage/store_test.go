package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/gantrysim/internal/dynamo"
)

func testStreams(t *testing.T) []Stream {
	t.Helper()
	outputs := dynamo.Signals{
		dynamo.MustSignal("Cart position", "m", 0, 2, "x"),
		dynamo.MustSignal("Angular velocity", "rad/s", math.Inf(-1), math.Inf(1), `\dot{\theta}`),
	}
	inputs := dynamo.Signals{dynamo.MustSignal("Drive force on cart", "N", -2, 2, "F_c")}

	out := dynamo.NewTable(outputs)
	in := dynamo.NewTable(inputs)
	for i, row := range [][]float64{{0.1, -0.25}, {0.2, 1.0 / 3}} {
		ts := 0.1 * float64(i+1)
		if err := out.Append(ts, row); err != nil {
			t.Fatal(err)
		}
		if err := in.Append(ts, []float64{2 - row[0]}); err != nil {
			t.Fatal(err)
		}
	}
	return []Stream{
		{Name: "input", Table: in, Signals: inputs},
		{Name: "output", Table: out, Signals: outputs},
	}
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	st.now = fixedClock(time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC))

	meta := RunMetadata{
		Plant:      "crane1d",
		Algorithm:  "lqr",
		Integrator: "exact",
		Dt:         0.1,
		Cycles:     2,
		Metrics:    map[string]float64{"control_effort": 1.5},
	}
	runID, err := st.Save(meta, testStreams(t))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID != "2024-03-09_14-05-07" {
		t.Errorf("run id: got %q", runID)
	}

	loaded, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Plant != "crane1d" || loaded.Cycles != 2 {
		t.Errorf("metadata: got %+v", loaded)
	}
	if loaded.Metrics["control_effort"] != 1.5 {
		t.Errorf("expected control_effort 1.5, got %f", loaded.Metrics["control_effort"])
	}
	if len(loaded.Streams) != 2 || loaded.Streams[1] != "output" {
		t.Errorf("streams: got %v", loaded.Streams)
	}

	table, err := st.LoadStream(runID, "output")
	if err != nil {
		t.Fatalf("load stream failed: %v", err)
	}
	want := testStreams(t)[1].Table
	if len(table.Rows) != 2 || table.Rows[1][1] != want.Rows[1][1] || table.Times[1] != want.Times[1] {
		t.Errorf("stream round trip: got %+v, want %+v", table, want)
	}
	if table.Columns[0] != "Cart position" {
		t.Errorf("columns: got %v", table.Columns)
	}
}

func TestStoreRunDirCollision(t *testing.T) {
	st := New(t.TempDir())
	st.now = fixedClock(time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC))

	ids := make(map[string]bool)
	for i := 0; i < 3; i++ {
		id, err := st.Save(RunMetadata{}, testStreams(t))
		if err != nil {
			t.Fatal(err)
		}
		ids[id] = true
	}
	for _, want := range []string{"2024-03-09_14-05-07", "2024-03-09_14-05-07_1", "2024-03-09_14-05-07_2"} {
		if !ids[want] {
			t.Errorf("missing run %s in %v", want, ids)
		}
	}
}

func TestStoreSignals(t *testing.T) {
	st := New(t.TempDir())

	runID, err := st.Save(RunMetadata{}, testStreams(t))
	if err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filepath.Join(st.Dir(runID), "signals.json"))
	if err != nil {
		t.Fatal(err)
	}
	var infos map[string][]SignalInfo
	if err := json.Unmarshal(raw, &infos); err != nil {
		t.Fatal(err)
	}
	if infos["output"][1].Min != nil || infos["output"][1].Max != nil {
		t.Error("infinite bounds not stored as null")
	}

	signals, err := st.LoadSignals(runID)
	if err != nil {
		t.Fatal(err)
	}
	rate, ok := signals["output"].Lookup("Angular velocity")
	if !ok || !math.IsInf(rate.Max, 1) || !math.IsInf(rate.Min, -1) {
		t.Errorf("angular velocity: got %+v", rate)
	}
	pos, _ := signals["output"].Lookup("Cart position")
	if pos.Max != 2 || pos.Unit != "m" {
		t.Errorf("cart position: got %+v", pos)
	}
}

func TestStoreXLSX(t *testing.T) {
	st := New(t.TempDir())

	runID, err := st.Save(RunMetadata{}, testStreams(t))
	if err != nil {
		t.Fatal(err)
	}

	table, err := ReadXLSX(filepath.Join(st.Dir(runID), "output.xlsx"), "output")
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Rows) != 2 || table.Columns[1] != "Angular velocity" {
		t.Fatalf("got %+v", table)
	}
	if math.Abs(table.Rows[1][1]-1.0/3) > 1e-12 {
		t.Errorf("value: got %v", table.Rows[1][1])
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	if err := os.MkdirAll(filepath.Join(tmpDir, "not-a-run"), 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Save(RunMetadata{Plant: "crane1d"}, testStreams(t)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}
}

func TestStoreRejects(t *testing.T) {
	st := New(t.TempDir())

	streams := testStreams(t)
	streams[0].Signals = streams[1].Signals
	if _, err := st.Save(RunMetadata{}, streams); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("mismatched descriptors: got %v", err)
	}

	streams = testStreams(t)
	streams[1].Name = "input"
	if _, err := st.Save(RunMetadata{}, streams); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("duplicate stream: got %v", err)
	}

	if _, err := st.Load("../etc"); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("path traversal: got %v", err)
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSON(&buf, RunMetadata{Plant: "crane1d"}, testStreams(t)); err != nil {
		t.Fatal(err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatal(err)
	}
	if data.Meta.Plant != "crane1d" || len(data.Streams) != 2 {
		t.Errorf("got %+v", data)
	}
	if got := data.Streams["input"].Rows[0][0]; got != 1.9 {
		t.Errorf("input row: got %v", got)
	}
}
