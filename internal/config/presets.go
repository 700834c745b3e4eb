package config

import "sort"

// Presets are named starting points for the crane. GetPreset hands out
// copies, so callers may modify the result.
var Presets = map[string]*Config{
	"default": DefaultConfig(),
	"long_sling": func() *Config {
		c := DefaultConfig()
		c.InitState = []float64{0, 0, 0, 0, 0.8, 0}
		c.Reference = []float64{1, 0.8}
		return c
	}(),
	"heavy_payload": func() *Config {
		c := DefaultConfig()
		c.Params.PayloadMass = 5
		c.Reference = []float64{1.5, 0.4}
		return c
	}(),
	"gentle": func() *Config {
		c := DefaultConfig()
		c.Cycles = 200
		c.LQR.Q = [][]float64{
			{1, 0, 0, 0, 0, 0},
			{0, 1, 0, 0, 0, 0},
			{0, 0, 10, 0, 0, 0},
			{0, 0, 0, 1, 0, 0},
			{0, 0, 0, 0, 1, 0},
			{0, 0, 0, 0, 0, 1},
		}
		c.LQR.R = [][]float64{{10, 0}, {0, 10}}
		c.Reference = []float64{0.6325, 0.1581}
		return c
	}(),
	"open_loop": func() *Config {
		c := DefaultConfig()
		c.Algorithm = "none"
		c.Cycles = 10
		c.Reference = []float64{0.5, 0.5}
		return c
	}(),
}

func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
