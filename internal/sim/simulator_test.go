package sim_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/gantrysim/internal/control"
	"github.com/san-kum/gantrysim/internal/dynamo"
	"github.com/san-kum/gantrysim/internal/physics"
	"github.com/san-kum/gantrysim/internal/sim"
	"gonum.org/v1/gonum/mat"
)

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func newCraneLoop(opts ...sim.Option) (*physics.Crane1D, *control.LQR, *sim.Simulator) {
	crane, err := physics.NewCrane1D(nil)
	Expect(err).NotTo(HaveOccurred())
	sys, err := crane.LinearizedSystem()
	Expect(err).NotTo(HaveOccurred())
	lqr, err := control.NewLQR(sys.A, sys.B, eye(6), eye(2), crane.OutputSignals())
	Expect(err).NotTo(HaveOccurred())
	return crane, lqr, sim.New(crane, lqr, opts...)
}

type countingMetric struct{ n int }

func (c *countingMetric) Name() string                                  { return "count" }
func (c *countingMetric) Observe(dynamo.State, dynamo.Control, float64) { c.n++ }
func (c *countingMetric) Value() float64                                { return float64(c.n) }
func (c *countingMetric) Reset()                                        { c.n = 0 }

type recorder struct{ times []float64 }

func (r *recorder) OnStep(_ dynamo.State, _ dynamo.Control, t float64) {
	r.times = append(r.times, t)
}

var _ = Describe("Simulator", func() {
	var cfg sim.Config

	BeforeEach(func() {
		cfg = sim.DefaultConfig()
		cfg.Reference = dynamo.Control{2, 0.5}
	})

	Describe("Run", func() {
		It("drives the crane to the reference", func() {
			crane, _, s := newCraneLoop()

			res, err := s.Run(context.Background(), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Cycles).To(Equal(100))
			Expect(res.Input.Len()).To(Equal(100))
			Expect(res.Output.Len()).To(Equal(100))
			Expect(res.Gains.Len()).To(Equal(100))

			x := crane.State()
			Expect(x[physics.CartPosition]).To(BeNumerically("~", 2, 0.1))
			Expect(x[physics.SlingLength]).To(BeNumerically("~", 0.5, 0.05))
			Expect(crane.Time()).To(BeNumerically("~", 10, 1e-9))
		})

		It("keeps table columns in descriptor order", func() {
			crane, lqr, s := newCraneLoop()

			res, err := s.Run(context.Background(), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Input.Columns).To(Equal(crane.InputSignals().Names()))
			Expect(res.Output.Columns).To(Equal(crane.OutputSignals().Names()))
			Expect(res.Gains.Columns).To(Equal(lqr.GainSignals().Names()))
			Expect(res.Output.Last()).To(Equal([]float64(crane.State())))
		})

		It("re-solves the gains at every operating point", func() {
			_, lqr, s := newCraneLoop()
			before := lqr.Gains()

			_, err := s.Run(context.Background(), cfg)
			Expect(err).NotTo(HaveOccurred())
			after := lqr.Gains()
			Expect(mat.EqualApprox(before, after, 1e-6)).To(BeFalse())
			Expect(after.At(1, 4)).To(BeNumerically("~", 1, 1e-6))
			Expect(after.At(1, 5)).To(BeNumerically("~", 3, 1e-6))
		})

		It("records inactive gains as zero when filtering", func() {
			_, _, s := newCraneLoop()
			cfg.FilterGains = true
			cfg.Cycles = 5

			res, err := s.Run(context.Background(), cfg)
			Expect(err).NotTo(HaveOccurred())
			col, ok := res.Gains.Column(`$K_{2,x}$`)
			Expect(ok).To(BeTrue())
			Expect(col).To(HaveEach(BeZero()))
			col, _ = res.Gains.Column(`$K_{2,\dot{l}}$`)
			Expect(col).To(HaveEach(BeNumerically("~", 3, 1e-4)))
		})

		It("feeds metrics and observers once per cycle", func() {
			metric := &countingMetric{}
			rec := &recorder{}
			_, _, s := newCraneLoop(sim.WithMetric(metric), sim.WithObserver(rec))
			cfg.Cycles = 7

			res, err := s.Run(context.Background(), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Metrics).To(HaveKeyWithValue("count", 7.0))
			Expect(rec.times).To(HaveLen(7))
			Expect(rec.times[6]).To(BeNumerically("~", 0.7, 1e-12))
		})

		It("returns the partial result with a wrapped error", func() {
			_, lqr, s := newCraneLoop()
			cfg.Cycles = 3
			Expect(s.Start(cfg)).To(Succeed())
			Expect(s.Cycle()).To(Succeed())

			lqr.Reset()
			err := s.Cycle()
			Expect(err).To(MatchError(dynamo.ErrPrecondition))

			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Step).To(Equal(1))
			Expect(s.Result().Output.Len()).To(Equal(1))
		})

		It("stops on context cancellation", func() {
			_, _, s := newCraneLoop()
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			res, err := s.Run(ctx, cfg)
			Expect(err).To(MatchError(context.Canceled))
			Expect(res.Cycles).To(BeZero())
		})

		DescribeTable("rejects invalid configs",
			func(mutate func(*sim.Config), want error) {
				_, _, s := newCraneLoop()
				mutate(&cfg)
				_, err := s.Run(context.Background(), cfg)
				Expect(err).To(MatchError(want))
			},
			Entry("zero dt", func(c *sim.Config) { c.Dt = 0 }, dynamo.ErrConfiguration),
			Entry("negative cycles", func(c *sim.Config) { c.Cycles = -1 }, dynamo.ErrConfiguration),
			Entry("short reference", func(c *sim.Config) { c.Reference = dynamo.Control{1} }, dynamo.ErrDimensionMismatch),
		)

		It("requires Start before Cycle", func() {
			_, _, s := newCraneLoop()
			Expect(s.Cycle()).To(MatchError(dynamo.ErrPrecondition))
		})
	})

	Describe("open loop", func() {
		It("runs without a gain table", func() {
			crane, err := physics.NewCrane1D(nil)
			Expect(err).NotTo(HaveOccurred())
			open, err := control.NewOpen(2)
			Expect(err).NotTo(HaveOccurred())

			cfg.Reference = dynamo.Control{1, 1}
			cfg.Cycles = 1
			res, err := sim.New(crane, open).Run(context.Background(), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Gains).To(BeNil())
			Expect(res.Output.Last()[physics.SwayAngle]).To(BeNumerically("~", -0.0389, 5e-5))
		})
	})
})

var _ = Describe("Ensemble", func() {
	factory := func(i int) (*sim.Simulator, sim.Config, error) {
		crane, err := physics.NewCrane1D(nil)
		if err != nil {
			return nil, sim.Config{}, err
		}
		if err := crane.UpdateMatrices(physics.WithPayloadMass(1 + float64(i))); err != nil {
			return nil, sim.Config{}, err
		}
		sys, _ := crane.LinearizedSystem()
		lqr, err := control.NewLQR(sys.A, sys.B, eye(6), eye(2), crane.OutputSignals())
		if err != nil {
			return nil, sim.Config{}, err
		}
		cfg := sim.DefaultConfig()
		cfg.Cycles = 10
		cfg.Reference = dynamo.Control{2, 0.5}
		return sim.New(crane, lqr), cfg, nil
	}

	It("returns one result per run in order", func() {
		results, err := sim.NewEnsemble(4, factory).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))
		for _, r := range results {
			Expect(r.Cycles).To(Equal(10))
		}
		Expect(results[0].Output.Last()).NotTo(Equal(results[3].Output.Last()))
	})

	It("fails as a whole when one run fails", func() {
		failing := func(i int) (*sim.Simulator, sim.Config, error) {
			if i == 2 {
				return nil, sim.Config{}, dynamo.ErrConfiguration
			}
			return factory(i)
		}
		e := sim.NewEnsemble(4, failing)
		e.SetLimit(1)
		results, err := e.Run(context.Background())
		Expect(err).To(MatchError(dynamo.ErrConfiguration))
		Expect(results).To(BeNil())
	})
})
