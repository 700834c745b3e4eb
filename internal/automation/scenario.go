package automation

import (
	"context"
	"fmt"
	"os"

	"github.com/san-kum/gantrysim/internal/config"
	"github.com/san-kum/gantrysim/internal/dynamo"
	"github.com/san-kum/gantrysim/internal/experiment"
	"github.com/san-kum/gantrysim/internal/storage"
	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of crane moves.
type Scenario struct {
	Name        string `yaml:"name" validate:"required"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps" validate:"required,min=1,dive"`
}

// Step is one run of the sequence. Preset defaults to "default". With
// Continue set the step starts where the previous one stopped.
type Step struct {
	Name      string             `yaml:"name" validate:"required"`
	Preset    string             `yaml:"preset,omitempty"`
	Cycles    int                `yaml:"cycles,omitempty" validate:"gte=0"`
	Reference []float64          `yaml:"reference,omitempty"`
	Knobs     map[string]float64 `yaml:"knobs,omitempty"`
	Continue  bool               `yaml:"continue,omitempty"`
}

type StepResult struct {
	Step    string
	RunID   string
	Final   dynamo.State
	Metrics map[string]float64
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrConfiguration, path, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) Validate() error {
	if err := validate.Struct(sc); err != nil {
		return fmt.Errorf("%w: %v", dynamo.ErrConfiguration, err)
	}
	for i, step := range sc.Steps {
		if step.Preset != "" && config.GetPreset(step.Preset) == nil {
			return fmt.Errorf("%w: step %d: unknown preset %q", dynamo.ErrConfiguration, i+1, step.Preset)
		}
		if i == 0 && step.Continue {
			return fmt.Errorf("%w: step 1 has nothing to continue from", dynamo.ErrConfiguration)
		}
	}
	return nil
}

// Config resolves the config of one step. prev is the final state of the
// step before, used when the step continues.
func (s Step) Config(prev dynamo.State) *config.Config {
	name := s.Preset
	if name == "" {
		name = "default"
	}
	cfg := config.GetPreset(name)
	if s.Cycles > 0 {
		cfg.Cycles = s.Cycles
	}
	if s.Reference != nil {
		cfg.Reference = append([]float64(nil), s.Reference...)
	}
	if s.Continue && prev != nil {
		cfg.InitState = append([]float64(nil), prev...)
	}
	return cfg
}

// RunScenario runs the steps in order and stores each run when st is not
// nil. It stops at the first failing step and returns what ran before it.
func RunScenario(ctx context.Context, sc *Scenario, st *storage.Store, opts ...Option) ([]StepResult, error) {
	r := newRunner(opts)
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	results := make([]StepResult, 0, len(sc.Steps))
	var prev dynamo.State
	for i, step := range sc.Steps {
		log := r.log.With().Str("scenario", sc.Name).Str("step", step.Name).Logger()
		log.Info().Int("index", i+1).Int("of", len(sc.Steps)).Msg("running step")

		e, err := experiment.New(step.Config(prev), experiment.WithKnobs(step.Knobs), experiment.WithLogger(log))
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, step.Name, err)
		}
		res, runErr := e.Run(ctx)
		out := StepResult{Step: step.Name, Final: e.Plant().State()}
		if res != nil {
			out.Metrics = res.Metrics
			if st != nil {
				if out.RunID, err = e.Save(st, res, runErr); err != nil {
					return results, fmt.Errorf("step %d (%s): %w", i+1, step.Name, err)
				}
			}
		}
		results = append(results, out)
		if runErr != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, step.Name, runErr)
		}
		prev = out.Final
	}
	return results, nil
}
