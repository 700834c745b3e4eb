package automation

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/gantrysim/internal/config"
	"github.com/san-kum/gantrysim/internal/dynamo"
	"github.com/san-kum/gantrysim/internal/physics"
	"github.com/san-kum/gantrysim/internal/storage"
)

func shortConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Cycles = 20
	return cfg
}

func TestMonteCarlo(t *testing.T) {
	mc := MonteCarlo{
		Trials: 6,
		Spread: map[string]float64{"payload_mass": 0.5, "x3": 0.05},
		Seed:   7,
	}
	trials, err := RunMonteCarlo(context.Background(), shortConfig(), mc, WithLimit(2))
	if err != nil {
		t.Fatal(err)
	}
	if len(trials) != 6 {
		t.Fatalf("got %d trials, want 6", len(trials))
	}
	for i, tr := range trials {
		if tr.ID != i || tr.Err != nil || !tr.Stable {
			t.Errorf("trial %d: id %d, stable %v, err %v", i, tr.ID, tr.Stable, tr.Err)
		}
		if m := tr.Knobs["payload_mass"]; m < 1.5 || m > 2.5 {
			t.Errorf("trial %d: payload mass %g outside 2±0.5", i, m)
		}
		if s := tr.Knobs["x3"]; math.Abs(s) > 0.05 {
			t.Errorf("trial %d: initial sway %g outside ±0.05", i, s)
		}
	}
	if stable, unstable := Tally(trials); stable != 6 || unstable != 0 {
		t.Errorf("tally %d/%d", stable, unstable)
	}

	again, err := RunMonteCarlo(context.Background(), shortConfig(), mc)
	if err != nil {
		t.Fatal(err)
	}
	for i := range trials {
		if again[i].Knobs["payload_mass"] != trials[i].Knobs["payload_mass"] {
			t.Fatal("same seed drew different knobs")
		}
	}

	sum, err := Summarize(trials, "peak_sway")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Count != 6 || sum.Worst < sum.Mean || sum.StdDev < 0 {
		t.Errorf("summary %+v", sum)
	}
	if _, err := Summarize(trials, "nope"); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("unknown metric: %v", err)
	}
	if _, err := Summarize(nil, "peak_sway"); !errors.Is(err, dynamo.ErrPrecondition) {
		t.Errorf("no trials: %v", err)
	}
}

func TestMonteCarloBadTrialsAreUnstable(t *testing.T) {
	// draws of the sling length spread far past its 0.1..1 m bounds
	mc := MonteCarlo{Trials: 10, Spread: map[string]float64{"x5": 5}, Seed: 3}
	trials, err := RunMonteCarlo(context.Background(), shortConfig(), mc)
	if err != nil {
		t.Fatal(err)
	}
	_, unstable := Tally(trials)
	if unstable == 0 {
		t.Error("no trial failed")
	}
	for _, tr := range trials {
		if tr.Stable != (tr.Err == nil) {
			t.Errorf("trial %d: stable %v with err %v", tr.ID, tr.Stable, tr.Err)
		}
		if tr.Err != nil && !errors.Is(tr.Err, dynamo.ErrStateBounds) {
			t.Errorf("trial %d: got %v, want ErrStateBounds", tr.ID, tr.Err)
		}
	}
}

func TestMonteCarloRejects(t *testing.T) {
	tests := []struct {
		name string
		mc   MonteCarlo
		want error
	}{
		{"no trials", MonteCarlo{Spread: map[string]float64{"x1": 0.1}}, dynamo.ErrConfiguration},
		{"no spread", MonteCarlo{Trials: 2}, dynamo.ErrConfiguration},
		{"negative spread", MonteCarlo{Trials: 2, Spread: map[string]float64{"x1": -1}}, dynamo.ErrConfiguration},
		{"unknown knob", MonteCarlo{Trials: 2, Spread: map[string]float64{"speed": 1}}, dynamo.ErrConfiguration},
		{"knob out of range", MonteCarlo{Trials: 2, Spread: map[string]float64{"r3": 1}}, dynamo.ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RunMonteCarlo(context.Background(), shortConfig(), tt.mc); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

const scenarioYAML = `name: two moves
steps:
  - name: lift
    cycles: 80
    reference: [1, 0.5]
    knobs:
      payload_mass: 3
  - name: return
    continue: true
    cycles: 60
    reference: [0.5, 0.3]
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}
	st := storage.New(t.TempDir())
	results, err := RunScenario(context.Background(), sc, st)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d step results, want 2", len(results))
	}
	for _, r := range results {
		if r.RunID == "" || len(r.Metrics) == 0 {
			t.Errorf("step %s: run id %q, metrics %v", r.Step, r.RunID, r.Metrics)
		}
	}
	lift, back := results[0].Final, results[1].Final
	if lift[physics.CartPosition] < 0.5 {
		t.Errorf("lift ended at x = %g, want near 1", lift[physics.CartPosition])
	}
	if back[physics.CartPosition] >= lift[physics.CartPosition] {
		t.Errorf("return did not move back: %g -> %g", lift[physics.CartPosition], back[physics.CartPosition])
	}

	runs, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("stored %d runs, want 2", len(runs))
	}
}

func TestStepConfig(t *testing.T) {
	step := Step{Name: "s", Preset: "gentle", Cycles: 7, Continue: true}
	prev := dynamo.State{1, 0, 0, 0, 0.4, 0}
	cfg := step.Config(prev)
	if cfg.Cycles != 7 || cfg.LQR.Q[2][2] != 10 || cfg.InitState[4] != 0.4 {
		t.Errorf("resolved config %+v", cfg)
	}
	prev[4] = 0.9
	if cfg.InitState[4] != 0.4 {
		t.Error("config aliases the previous state")
	}
}

func TestScenarioRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no name", "steps:\n  - name: a\n"},
		{"no steps", "name: x\n"},
		{"unknown preset", "name: x\nsteps:\n  - name: a\n    preset: nope\n"},
		{"continue first", "name: x\nsteps:\n  - name: a\n    continue: true\n"},
		{"bad yaml", "name: [x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadScenario(writeScenario(t, tt.body)); !errors.Is(err, dynamo.ErrConfiguration) {
				t.Errorf("got %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestRunScenarioStopsAtFailure(t *testing.T) {
	sc := &Scenario{Name: "x", Steps: []Step{
		{Name: "ok", Cycles: 3},
		{Name: "broken", Cycles: 3, Knobs: map[string]float64{"payload_mass": -1}},
		{Name: "never", Cycles: 3},
	}}
	results, err := RunScenario(context.Background(), sc, nil)
	if !errors.Is(err, dynamo.ErrConfiguration) {
		t.Fatalf("got %v, want ErrConfiguration", err)
	}
	if len(results) != 1 || results[0].RunID != "" {
		t.Errorf("results %+v", results)
	}
}
