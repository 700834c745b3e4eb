package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/san-kum/gantrysim/internal/automation"
	"github.com/san-kum/gantrysim/internal/config"
	"github.com/san-kum/gantrysim/internal/control"
	"github.com/san-kum/gantrysim/internal/dynamo"
	"github.com/san-kum/gantrysim/internal/experiment"
	"github.com/san-kum/gantrysim/internal/export"
	"github.com/san-kum/gantrysim/internal/optim"
	"github.com/san-kum/gantrysim/internal/physics"
	"github.com/san-kum/gantrysim/internal/sim"
	"github.com/san-kum/gantrysim/internal/storage"
	"github.com/san-kum/gantrysim/internal/viz"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// slingKnob is the config knob of the initial sling length.
var slingKnob = fmt.Sprintf("x%d", physics.SlingLength+1)

func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// storeFor prefers an explicit --data over the config's output directory.
func storeFor(cmd *cobra.Command, cfg *config.Config) *storage.Store {
	if cmd.Flags().Changed("data") || cfg.OutputDir == "" {
		return storage.New(dataDir)
	}
	return storage.New(cfg.OutputDir)
}

func newRunCmd() *cobra.Command {
	var (
		save    bool
		figures bool
		format  string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the closed loop and store its tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			exp, err := experiment.New(cfg, experiment.WithLogger(log.Logger))
			if err != nil {
				return err
			}

			ctx, stop := interruptContext()
			defer stop()
			start := time.Now()
			res, runErr := exp.Run(ctx)
			if res == nil {
				return runErr
			}
			log.Info().Dur("elapsed", time.Since(start)).Int("cycles", res.Cycles).Msg("run complete")

			if save {
				st := storeFor(cmd, cfg)
				runID, err := exp.Save(st, res, runErr)
				if err != nil {
					return err
				}
				fmt.Printf("run id: %s\n", runID)
				if figures {
					paths, err := export.PlotRun(st, runID, format)
					if err != nil {
						return err
					}
					snapshot := filepath.Join(st.Dir(runID), "crane.svg")
					if err := export.CraneSnapshot(snapshot, exp.Plant().State()); err != nil {
						return err
					}
					for _, p := range append(paths, snapshot) {
						fmt.Printf("wrote %s\n", p)
					}
				}
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "\nSIGNAL\tFINAL")
			x := exp.Plant().State()
			for i, sig := range exp.Plant().OutputSignals() {
				fmt.Fprintf(w, "%s\t%.4f %s\n", sig.Name, x[i], sig.Unit)
			}
			fmt.Fprintln(w, "\nMETRIC\tVALUE")
			for _, name := range sortedNames(res.Metrics) {
				fmt.Fprintf(w, "%s\t%.6f\n", name, res.Metrics[name])
			}
			if err := w.Flush(); err != nil {
				return err
			}
			return runErr
		},
	}
	addSimFlags(cmd)
	cmd.Flags().BoolVar(&save, "save", true, "store the run under the data directory")
	cmd.Flags().BoolVar(&figures, "plot", false, "render signal figures and a crane snapshot into the run directory")
	cmd.Flags().StringVar(&format, "format", export.DefaultFormat, "figure format: svg, png, pdf or eps")
	return cmd
}

func newLiveCmd() *cobra.Command {
	var (
		fps     int
		gifPath string
	)
	cmd := &cobra.Command{
		Use:   "live",
		Short: "watch the crane in the terminal and tune it while it runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if fps <= 0 {
				return fmt.Errorf("fps must be positive, got %d", fps)
			}
			build := func() (*experiment.Experiment, error) {
				return experiment.New(cfg)
			}
			return viz.Run(build,
				viz.WithTick(time.Second/time.Duration(fps)),
				viz.WithGIFPath(gifPath),
				viz.WithTitle(fmt.Sprintf("GANTRY CRANE  %s / %s", cfg.Algorithm, cfg.Integrator)),
			)
		},
	}
	addSimFlags(cmd)
	cmd.Flags().IntVar(&fps, "fps", 20, "control cycles per wall-clock second")
	cmd.Flags().StringVar(&gifPath, "gif", "crane.gif", "where G saves the recording")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := storage.New(dataDir).List()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPLANT\tALGO\tINTEG\tCYCLES\tDT\tSTATUS")
			for _, run := range runs {
				status := "ok"
				if run.Error != "" {
					status = "aborted"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.4fs\t%s\n",
					run.ID, run.Plant, run.Algorithm, run.Integrator, run.Cycles, run.Dt, status)
			}
			return w.Flush()
		},
	}
}

func newPlotCmd() *cobra.Command {
	var (
		format  string
		ascii   bool
		stream  string
		signals []string
	)
	cmd := &cobra.Command{
		Use:   "plot <run-id>",
		Short: "plot the tables of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := args[0]
			st := storage.New(dataDir)

			if !ascii {
				paths, err := export.PlotRun(st, runID, format)
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Printf("wrote %s\n", p)
				}
				return nil
			}

			table, err := st.LoadStream(runID, stream)
			if err != nil {
				return err
			}
			descriptors, err := st.LoadSignals(runID)
			if err != nil {
				return err
			}
			names := signals
			if len(names) == 0 {
				names = table.Columns
			}
			for _, name := range names {
				sig, ok := descriptors[stream].Lookup(name)
				if !ok {
					sig = dynamo.Signal{Name: name}
				}
				chart, err := viz.ASCII(table, sig, 70, 10)
				if err != nil {
					return err
				}
				fmt.Println(chart)
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", export.DefaultFormat, "figure format: svg, png, pdf or eps")
	cmd.Flags().BoolVar(&ascii, "ascii", false, "plot in the terminal instead of writing figures")
	cmd.Flags().StringVar(&stream, "stream", experiment.StreamOutput, "stream to plot with --ascii")
	cmd.Flags().StringSliceVar(&signals, "signal", nil, "signals to plot with --ascii (default all)")
	return cmd
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <run-id>",
		Short: "dump a stored run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := args[0]
			st := storage.New(dataDir)
			meta, err := st.Load(runID)
			if err != nil {
				return err
			}
			descriptors, err := st.LoadSignals(runID)
			if err != nil {
				return err
			}
			streams := make([]storage.Stream, 0, len(meta.Streams))
			for _, name := range meta.Streams {
				table, err := st.LoadStream(runID, name)
				if err != nil {
					return err
				}
				streams = append(streams, storage.Stream{Name: name, Table: table, Signals: descriptors[name]})
			}
			return storage.ExportJSON(os.Stdout, *meta, streams)
		},
	}
}

func newGainsCmd() *cobra.Command {
	var (
		slingLength float64
		tolerance   float64
	)
	cmd := &cobra.Command{
		Use:   "gains",
		Short: "solve the LQR at one operating point and print K",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Algorithm = "lqr"
			var knobs map[string]float64
			if cmd.Flags().Changed("sling-length") {
				knobs = map[string]float64{slingKnob: slingLength}
			}
			exp, err := experiment.New(cfg, experiment.WithKnobs(knobs))
			if err != nil {
				return err
			}
			lqr := exp.Algorithm().(*control.LQR)

			fmt.Printf("operating point: %v\n", exp.Plant().State())
			fmt.Printf("K = %.4v\n\n", mat.Formatted(lqr.Gains(), mat.Prefix("    ")))

			active, err := lqr.FilterGains(tolerance)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "GAIN\tSYMBOL\tVALUE")
			for _, sig := range lqr.GainSignals() {
				if v, ok := active[sig.Name]; ok {
					fmt.Fprintf(w, "%s\t%s\t%.4f\n", sig.Name, sig.Symbol, v)
				}
			}
			fmt.Fprintf(w, "\n%d of %d gains active\n", len(active), len(lqr.FlatGains()))
			return w.Flush()
		},
	}
	addSimFlags(cmd)
	cmd.Flags().Float64Var(&slingLength, "sling-length", 0.1, "sling length to linearise at [m]")
	cmd.Flags().Float64Var(&tolerance, "tolerance", control.DefaultGainTolerance, "gains at or below this magnitude are inactive")
	return cmd
}

func newSweepCmd() *cobra.Command {
	var (
		lengths  string
		parallel int
		save     bool
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "run the loop from several sling lengths in parallel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ls, err := parseList(lengths)
			if err != nil {
				return err
			}

			exps := make([]*experiment.Experiment, len(ls))
			ens := sim.NewEnsemble(len(ls), func(i int) (*sim.Simulator, sim.Config, error) {
				exp, err := experiment.New(cfg, experiment.WithKnobs(map[string]float64{slingKnob: ls[i]}))
				if err != nil {
					return nil, sim.Config{}, err
				}
				exps[i] = exp
				return exp.Simulator(), exp.SimConfig(), nil
			})
			if parallel > 0 {
				ens.SetLimit(parallel)
			}

			ctx, stop := interruptContext()
			defer stop()
			start := time.Now()
			results, err := ens.Run(ctx)
			if err != nil {
				return err
			}
			log.Info().Int("runs", len(results)).Dur("elapsed", time.Since(start)).Msg("sweep complete")

			names := sortedNames(results[0].Metrics)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "SLING [m]\tFINAL x [m]\tFINAL l [m]\t%s\n", strings.ToUpper(strings.Join(names, "\t")))
			for i, res := range results {
				x := exps[i].Plant().State()
				fmt.Fprintf(w, "%.3f\t%.4f\t%.4f", ls[i], x[physics.CartPosition], x[physics.SlingLength])
				for _, name := range names {
					fmt.Fprintf(w, "\t%.4f", res.Metrics[name])
				}
				fmt.Fprintln(w)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if save {
				st := storeFor(cmd, cfg)
				for i, res := range results {
					runID, err := exps[i].Save(st, res, nil)
					if err != nil {
						return err
					}
					fmt.Printf("sling %.3f: run id %s\n", ls[i], runID)
				}
			}
			return nil
		},
	}
	addSimFlags(cmd)
	cmd.Flags().StringVar(&lengths, "sling-lengths", "0.1,0.3,0.5,0.7,0.9", "comma-separated initial sling lengths [m]")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "runs in flight (default GOMAXPROCS)")
	cmd.Flags().BoolVar(&save, "save", false, "store every run")
	return cmd
}

func newTuneCmd() *cobra.Command {
	var (
		knobs    []string
		metric   string
		parallel int
	)
	cmd := &cobra.Command{
		Use:   "tune",
		Short: "grid-search config knobs for the smallest metric",
		Long: `Each --knob is name=v1,v2,... where name is q<i> or r<i> (LQR weight
diagonal), x<i> (initial state), cart_mass or payload_mass.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(knobs) == 0 {
				return fmt.Errorf("at least one --knob is required")
			}
			names := make([]string, 0, len(knobs))
			values := make([][]float64, 0, len(knobs))
			for _, k := range knobs {
				name, list, ok := strings.Cut(k, "=")
				if !ok {
					return fmt.Errorf("knob %q: want name=v1,v2,...", k)
				}
				vs, err := parseList(list)
				if err != nil {
					return fmt.Errorf("knob %s: %w", name, err)
				}
				names = append(names, strings.TrimSpace(name))
				values = append(values, vs)
			}

			g, err := optim.NewGridSearch(names, values)
			if err != nil {
				return err
			}
			if parallel > 0 {
				g.SetLimit(parallel)
			}
			g.SetLogger(log.Logger)

			ctx, stop := interruptContext()
			defer stop()
			best, points, searchErr := g.Search(ctx, cfg, metric)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(metric))
			for _, p := range points {
				for _, name := range names {
					fmt.Fprintf(w, "%g\t", p.Knobs[name])
				}
				if p.Err != nil {
					fmt.Fprintf(w, "error: %v\n", p.Err)
				} else {
					fmt.Fprintf(w, "%.6f\n", p.Value)
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if searchErr != nil {
				return searchErr
			}

			fmt.Printf("\nbest %s = %.6f at", metric, best.Value)
			for _, name := range names {
				fmt.Printf(" %s=%g", name, best.Knobs[name])
			}
			fmt.Println()
			return nil
		},
	}
	addSimFlags(cmd)
	cmd.Flags().StringArrayVar(&knobs, "knob", nil, "knob to sweep as name=v1,v2,... (repeatable)")
	cmd.Flags().StringVar(&metric, "metric", "peak_sway", "metric to minimise")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "experiments in flight (default unbounded)")
	return cmd
}

func newMonteCarloCmd() *cobra.Command {
	var (
		trials   int
		spreads  []string
		seed     int64
		metric   string
		parallel int
	)
	cmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "run randomised trials around the config and count the stable ones",
		Long: `Each --spread is name=width; every trial draws the knob uniformly from
base-width..base+width. Knob names are those of tune.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			mc := automation.MonteCarlo{Trials: trials, Seed: seed, Spread: map[string]float64{}}
			for _, s := range spreads {
				name, width, ok := strings.Cut(s, "=")
				if !ok {
					return fmt.Errorf("spread %q: want name=width", s)
				}
				ws, err := parseList(width)
				if err != nil || len(ws) != 1 {
					return fmt.Errorf("spread %q: want one width", s)
				}
				mc.Spread[strings.TrimSpace(name)] = ws[0]
			}

			ctx, stop := interruptContext()
			defer stop()
			results, err := automation.RunMonteCarlo(ctx, cfg, mc,
				automation.WithLogger(log.Logger), automation.WithLimit(parallel))
			if err != nil {
				return err
			}

			names := make([]string, 0, len(mc.Spread))
			for name := range mc.Spread {
				names = append(names, name)
			}
			sort.Strings(names)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "TRIAL\t%s\t%s\tSTATUS\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(metric))
			for _, tr := range results {
				fmt.Fprintf(w, "%d", tr.ID)
				for _, name := range names {
					fmt.Fprintf(w, "\t%.4f", tr.Knobs[name])
				}
				switch {
				case tr.Err != nil:
					fmt.Fprintf(w, "\t-\terror: %v\n", tr.Err)
				case !tr.Stable:
					fmt.Fprintf(w, "\t%.4f\tdiverged\n", tr.Metrics[metric])
				default:
					fmt.Fprintf(w, "\t%.4f\tok\n", tr.Metrics[metric])
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}

			stable, unstable := automation.Tally(results)
			fmt.Printf("\n%d stable, %d unstable\n", stable, unstable)
			if sum, err := automation.Summarize(results, metric); err == nil {
				fmt.Printf("%s: mean %.4f, std %.4f, worst %.4f\n", metric, sum.Mean, sum.StdDev, sum.Worst)
			}
			return nil
		},
	}
	addSimFlags(cmd)
	cmd.Flags().IntVar(&trials, "trials", 20, "number of trials")
	cmd.Flags().StringArrayVar(&spreads, "spread", []string{"payload_mass=0.5", "x3=0.1"}, "knob half-width as name=width (repeatable)")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().StringVar(&metric, "metric", "peak_sway", "metric to summarise")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "trials in flight (default unbounded)")
	return cmd
}

func newScenarioCmd() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "scenario <file.yaml>",
		Short: "run a scripted sequence of crane moves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := automation.LoadScenario(args[0])
			if err != nil {
				return err
			}
			var st *storage.Store
			if save {
				st = storage.New(dataDir)
			}

			ctx, stop := interruptContext()
			defer stop()
			results, runErr := automation.RunScenario(ctx, sc, st, automation.WithLogger(log.Logger))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STEP\tRUN\tFINAL x [m]\tFINAL l [m]\tPEAK SWAY [rad]")
			for _, r := range results {
				runID := r.RunID
				if runID == "" {
					runID = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%.4f\n", r.Step, runID,
					r.Final[physics.CartPosition], r.Final[physics.SlingLength], r.Metrics["peak_sway"])
			}
			if err := w.Flush(); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&save, "save", true, "store every step under the data directory")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	var write string
	cmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "list presets or print one as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tALGO\tCYCLES\tREFERENCE")
				for _, name := range config.ListPresets() {
					p := config.GetPreset(name)
					fmt.Fprintf(w, "%s\t%s\t%d\t%v\n", name, p.Algorithm, p.Cycles, p.Reference)
				}
				return w.Flush()
			}

			cfg := config.GetPreset(args[0])
			if cfg == nil {
				return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
			}
			if write != "" {
				if err := config.Save(write, cfg); err != nil {
					return err
				}
				fmt.Printf("wrote %s\n", write)
				return nil
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&write, "write", "", "save the preset to this file instead of printing it")
	return cmd
}

func sortedNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
