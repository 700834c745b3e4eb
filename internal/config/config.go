package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/san-kum/gantrysim/internal/dynamo"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt          = 0.1
	DefaultCycles      = 100
	DefaultCartMass    = 1.0
	DefaultPayloadMass = 2.0
	DefaultOutputDir   = "runs"
)

type Config struct {
	Plant      string  `yaml:"plant" validate:"required,oneof=crane1d"`
	Algorithm  string  `yaml:"algorithm" validate:"required,oneof=lqr static none"`
	Integrator string  `yaml:"integrator" validate:"required,oneof=exact rk4"`
	Substeps   int     `yaml:"substeps,omitempty" validate:"gte=0"`
	Dt         float64 `yaml:"dt" validate:"gt=0"`
	Cycles     int     `yaml:"cycles" validate:"gte=0"`

	InitState []float64   `yaml:"init_state,omitempty"`
	Reference []float64   `yaml:"reference,omitempty"`
	Params    PlantConfig `yaml:"params"`
	LQR       LQRConfig   `yaml:"lqr"`
	Gains     [][]float64 `yaml:"gains,omitempty"`

	FilterGains   bool    `yaml:"filter_gains"`
	GainTolerance float64 `yaml:"gain_tolerance" validate:"gte=0"`
	OutputDir     string  `yaml:"output_dir"`
}

type PlantConfig struct {
	CartMass    float64 `yaml:"cart_mass" validate:"gt=0"`
	PayloadMass float64 `yaml:"payload_mass" validate:"gt=0"`
}

// LQRConfig holds the weights. Empty matrices default to identity.
type LQRConfig struct {
	Q [][]float64 `yaml:"q,omitempty"`
	R [][]float64 `yaml:"r,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Plant:      "crane1d",
		Algorithm:  "lqr",
		Integrator: "exact",
		Dt:         DefaultDt,
		Cycles:     DefaultCycles,
		InitState:  []float64{0, 0, 0, 0, 0.1, 0},
		Reference:  []float64{2, 0.5},
		Params: PlantConfig{
			CartMass:    DefaultCartMass,
			PayloadMass: DefaultPayloadMass,
		},
		GainTolerance: 1e-10,
		OutputDir:     DefaultOutputDir,
	}
}

var validate = validator.New()

// Validate checks field ranges and the shapes that do not depend on the
// plant. CheckDims covers the rest once the plant is known.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", dynamo.ErrConfiguration, err)
	}
	if c.Algorithm == "static" && len(c.Gains) == 0 {
		return fmt.Errorf("%w: static algorithm needs gains", dynamo.ErrConfiguration)
	}
	for name, m := range map[string][][]float64{"q": c.LQR.Q, "r": c.LQR.R} {
		for i, row := range m {
			if len(row) != len(m) {
				return fmt.Errorf("%w: lqr.%s row %d has %d entries, want %d", dynamo.ErrDimensionMismatch, name, i, len(row), len(m))
			}
		}
	}
	return nil
}

// CheckDims validates the vectors and weights against a plant with n states
// and m inputs.
func (c *Config) CheckDims(n, m int) error {
	if c.InitState != nil && len(c.InitState) != n {
		return fmt.Errorf("%w: init_state has %d entries, plant has %d states", dynamo.ErrDimensionMismatch, len(c.InitState), n)
	}
	if c.Reference != nil && len(c.Reference) != m {
		return fmt.Errorf("%w: reference has %d entries, plant has %d inputs", dynamo.ErrDimensionMismatch, len(c.Reference), m)
	}
	if q := len(c.LQR.Q); q != 0 && q != n {
		return fmt.Errorf("%w: lqr.q is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, q, q, n, n)
	}
	if r := len(c.LQR.R); r != 0 && r != m {
		return fmt.Errorf("%w: lqr.r is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, r, r, m, m)
	}
	if c.Gains != nil && len(c.Gains) != m {
		return fmt.Errorf("%w: gains have %d rows, plant has %d inputs", dynamo.ErrDimensionMismatch, len(c.Gains), m)
	}
	return nil
}

// Weights returns Q and R as row-major data, identity where unset.
func (c *Config) Weights(n, m int) (q, r []float64) {
	return flatten(c.LQR.Q, n), flatten(c.LQR.R, m)
}

func flatten(rows [][]float64, n int) []float64 {
	data := make([]float64, n*n)
	if len(rows) == 0 {
		for i := 0; i < n; i++ {
			data[i*n+i] = 1
		}
		return data
	}
	for i, row := range rows {
		copy(data[i*n:(i+1)*n], row)
	}
	return data
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	cp.InitState = cloneVec(c.InitState)
	cp.Reference = cloneVec(c.Reference)
	cp.LQR.Q = cloneMat(c.LQR.Q)
	cp.LQR.R = cloneMat(c.LQR.R)
	cp.Gains = cloneMat(c.Gains)
	return &cp
}

func cloneVec(v []float64) []float64 {
	if v == nil {
		return nil
	}
	return append([]float64(nil), v...)
}

func cloneMat(m [][]float64) [][]float64 {
	if m == nil {
		return nil
	}
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = cloneVec(row)
	}
	return out
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrConfiguration, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
