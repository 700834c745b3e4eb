package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/san-kum/gantrysim/internal/config"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	logLevel   string
	configFile string
	preset     string

	dt          float64
	cycles      int
	integrator  string
	substeps    int
	algorithm   string
	cartMass    float64
	payloadMass float64
	reference   []float64
	initState   []float64
	filterGains bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "gantrysim",
		Short:         "gantry crane plant with a re-linearising LQR loop",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging()
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultOutputDir, "run directory root")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL or info)")

	rootCmd.AddCommand(
		newRunCmd(),
		newLiveCmd(),
		newListCmd(),
		newPlotCmd(),
		newExportCmd(),
		newGainsCmd(),
		newSweepCmd(),
		newTuneCmd(),
		newMonteCarloCmd(),
		newScenarioCmd(),
		newPresetsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func setupLogging() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	level := logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// addSimFlags registers the flags that override config values.
func addSimFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "start from a named preset")
	f.Float64Var(&dt, "dt", config.DefaultDt, "control period [s]")
	f.IntVar(&cycles, "cycles", config.DefaultCycles, "number of control cycles")
	f.StringVar(&integrator, "integrator", "exact", "exact or rk4")
	f.IntVar(&substeps, "substeps", 10, "rk4 substeps per period")
	f.StringVar(&algorithm, "algorithm", "lqr", "lqr, static or none")
	f.Float64Var(&cartMass, "cart-mass", config.DefaultCartMass, "cart mass [kg]")
	f.Float64Var(&payloadMass, "payload-mass", config.DefaultPayloadMass, "payload mass [kg]")
	f.Float64SliceVar(&reference, "reference", nil, "reference input, one value per input")
	f.Float64SliceVar(&initState, "init-state", nil, "initial state, one value per state")
	f.BoolVar(&filterGains, "filter-gains", false, "record only gains above the tolerance")
}

// loadConfig resolves defaults, then the preset, then the config file, then
// every flag the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("dt") {
		cfg.Dt = dt
	}
	if f.Changed("cycles") {
		cfg.Cycles = cycles
	}
	if f.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if f.Changed("substeps") || (cfg.Integrator == "rk4" && cfg.Substeps == 0) {
		cfg.Substeps = substeps
	}
	if f.Changed("algorithm") {
		cfg.Algorithm = algorithm
	}
	if f.Changed("cart-mass") {
		cfg.Params.CartMass = cartMass
	}
	if f.Changed("payload-mass") {
		cfg.Params.PayloadMass = payloadMass
	}
	if f.Changed("reference") {
		cfg.Reference = reference
	}
	if f.Changed("init-state") {
		cfg.InitState = initState
	}
	if f.Changed("filter-gains") {
		cfg.FilterGains = filterGains
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseList parses "a,b,c" into floats.
func parseList(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty list %q", s)
	}
	return out, nil
}
