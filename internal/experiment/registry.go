package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/gantrysim/internal/config"
	"github.com/san-kum/gantrysim/internal/control"
	"github.com/san-kum/gantrysim/internal/dynamo"
	"github.com/san-kum/gantrysim/internal/integrators"
	"github.com/san-kum/gantrysim/internal/metrics"
	"github.com/san-kum/gantrysim/internal/physics"
	"github.com/san-kum/gantrysim/internal/plant"
	"github.com/san-kum/gantrysim/internal/sim"
	"gonum.org/v1/gonum/mat"
)

// Plant is a simulated plant whose physical parameters can be tuned live.
type Plant interface {
	sim.Plant
	dynamo.Configurable
}

type (
	PlantFactory      func(cfg *config.Config, integ dynamo.Integrator) (Plant, error)
	IntegratorFactory func(substeps int) dynamo.Integrator
	AlgorithmFactory  func(cfg *config.Config, p Plant) (control.Algorithm, error)
)

type Registry struct {
	plants      map[string]PlantFactory
	integrators map[string]IntegratorFactory
	algorithms  map[string]AlgorithmFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		plants:      make(map[string]PlantFactory),
		integrators: make(map[string]IntegratorFactory),
		algorithms:  make(map[string]AlgorithmFactory),
	}

	r.plants["crane1d"] = newCrane

	r.integrators["exact"] = func(int) dynamo.Integrator { return integrators.NewExact() }
	r.integrators["rk4"] = func(substeps int) dynamo.Integrator { return integrators.NewRK4(substeps) }

	r.algorithms["lqr"] = newLQR
	r.algorithms["static"] = func(cfg *config.Config, _ Plant) (control.Algorithm, error) {
		return control.NewStatic(cfg.Gains)
	}
	r.algorithms["none"] = func(_ *config.Config, p Plant) (control.Algorithm, error) {
		return control.NewOpen(len(p.InputSignals()))
	}
	return r
}

func newCrane(cfg *config.Config, integ dynamo.Integrator) (Plant, error) {
	c, err := physics.NewCrane1D(dynamo.State(cfg.InitState), plant.WithIntegrator(integ))
	if err != nil {
		return nil, err
	}
	err = c.UpdateMatrices(
		dynamo.Override{Name: physics.CartMass, Value: cfg.Params.CartMass},
		physics.WithPayloadMass(cfg.Params.PayloadMass),
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newLQR(cfg *config.Config, p Plant) (control.Algorithm, error) {
	sys, err := p.LinearizedSystem()
	if err != nil {
		return nil, err
	}
	n, m, _ := sys.Dims()
	q, r := cfg.Weights(n, m)
	return control.NewLQR(sys.A, sys.B, mat.NewDense(n, n, q), mat.NewDense(m, m, r), p.OutputSignals())
}

func (r *Registry) RegisterPlant(name string, f PlantFactory)         { r.plants[name] = f }
func (r *Registry) RegisterAlgorithm(name string, f AlgorithmFactory) { r.algorithms[name] = f }

func (r *Registry) GetIntegrator(name string, substeps int) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown integrator: %s", dynamo.ErrConfiguration, name)
	}
	return fn(substeps), nil
}

// GetPlant builds the plant named by cfg.Plant with cfg's integrator.
func (r *Registry) GetPlant(cfg *config.Config) (Plant, error) {
	fn, ok := r.plants[cfg.Plant]
	if !ok {
		return nil, fmt.Errorf("%w: unknown plant: %s", dynamo.ErrConfiguration, cfg.Plant)
	}
	integ, err := r.GetIntegrator(cfg.Integrator, cfg.Substeps)
	if err != nil {
		return nil, err
	}
	return fn(cfg, integ)
}

func (r *Registry) GetAlgorithm(cfg *config.Config, p Plant) (control.Algorithm, error) {
	fn, ok := r.algorithms[cfg.Algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: unknown algorithm: %s", dynamo.ErrConfiguration, cfg.Algorithm)
	}
	return fn(cfg, p)
}

func (r *Registry) ListPlants() []string      { return sortedKeys(r.plants) }
func (r *Registry) ListAlgorithms() []string  { return sortedKeys(r.algorithms) }
func (r *Registry) ListIntegrators() []string { return sortedKeys(r.integrators) }

// DefaultMetrics returns fresh metrics for a plant built from cfg.
func (r *Registry) DefaultMetrics(cfg *config.Config, p Plant) []dynamo.Metric {
	ms := []dynamo.Metric{
		metrics.NewControlEffort(),
		metrics.NewSaturation(p.InputSignals()),
		metrics.NewStability(p.OutputSignals()),
	}
	if cfg.Plant == "crane1d" {
		ms = append(ms,
			metrics.NewPeakAbs(physics.SwayAngle, "peak_sway"),
			metrics.NewDominantFrequency(physics.SwayAngle, "sway_frequency"),
			metrics.NewSwingEnergy(cfg.Params.PayloadMass, physics.Gravity,
				physics.SwayAngle, physics.AngularVelocity, physics.SlingLength),
		)
	}
	return ms
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
