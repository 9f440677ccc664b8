package rollout_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/quadsim/internal/control"
	"github.com/san-kum/quadsim/internal/dynamo"
	"github.com/san-kum/quadsim/internal/env"
	"github.com/san-kum/quadsim/internal/rollout"
)

// scripted costs 1 per step and terminates after terminateAt steps when
// terminateAt is positive.
type scripted struct {
	steps       int
	terminateAt int
	failAt      int
	resets      int
}

func (s *scripted) Reset() ([]float64, error) {
	s.resets++
	s.steps = 0
	return []float64{0}, nil
}

func (s *scripted) Step(action []float64) ([]float64, bool, float64, error) {
	s.steps++
	if s.failAt > 0 && s.steps == s.failAt {
		return nil, true, 0, dynamo.ErrUnstable
	}
	return []float64{float64(s.steps)}, s.terminateAt > 0 && s.steps >= s.terminateAt, 1, nil
}

func (s *scripted) Discount() float64      { return 0.5 }
func (s *scripted) TerminalValue() float64 { return 10 }
func (s *scripted) TimeLimit() float64     { return 1 }
func (s *scripted) Timestep() float64      { return 0.1 }

type countingMetric struct{ n int }

func (c *countingMetric) Name() string                                  { return "count" }
func (c *countingMetric) Observe(dynamo.State, dynamo.Control, float64) { c.n++ }
func (c *countingMetric) Value() float64                                { return float64(c.n) }
func (c *countingMetric) Reset()                                        { c.n = 0 }

var _ = Describe("Runner", func() {
	var (
		runner *rollout.Runner
		policy dynamo.Controller
	)

	BeforeEach(func() {
		runner = rollout.NewRunner()
		policy = control.NewNone(1)
	})

	It("runs until the time limit", func() {
		e := &scripted{}
		ep, err := runner.Run(context.Background(), e, policy)
		Expect(err).NotTo(HaveOccurred())
		Expect(ep.Steps).To(Equal(10))
		Expect(ep.Observations).To(HaveLen(11))
		Expect(ep.Actions).To(HaveLen(10))
		Expect(ep.Times[10]).To(BeNumerically("~", 1.0, 1e-12))
		Expect(ep.Terminated).To(BeFalse())
		Expect(e.resets).To(Equal(1))
	})

	It("discounts the cost", func() {
		ep, err := runner.Run(context.Background(), &scripted{}, policy)
		Expect(err).NotTo(HaveOccurred())
		// sum of 0.5^k for k < 10
		Expect(ep.Return).To(BeNumerically("~", 2*(1-math.Pow(0.5, 10)), 1e-12))
	})

	It("adds the terminal value on termination", func() {
		ep, err := runner.Run(context.Background(), &scripted{terminateAt: 2}, policy)
		Expect(err).NotTo(HaveOccurred())
		Expect(ep.Terminated).To(BeTrue())
		Expect(ep.Steps).To(Equal(2))
		Expect(ep.Return).To(BeNumerically("~", 1+0.5+0.25*10, 1e-12))
	})

	It("returns the partial episode with the step error", func() {
		ep, err := runner.Run(context.Background(), &scripted{failAt: 3}, policy)
		Expect(err).To(MatchError(dynamo.ErrUnstable))
		Expect(ep.Steps).To(Equal(2))
	})

	It("stops when the context is canceled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ep, err := runner.Run(ctx, &scripted{}, policy)
		Expect(err).To(MatchError(dynamo.ErrContextCanceled))
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(ep.Steps).To(Equal(0))
	})

	It("feeds metrics every step", func() {
		runner.AddMetric(&countingMetric{})
		ep, err := runner.Run(context.Background(), &scripted{}, policy)
		Expect(err).NotTo(HaveOccurred())
		Expect(ep.Metrics["count"]).To(Equal(10.0))
	})

	It("drives the real environment", func() {
		cfg := env.DefaultConfig(env.Plain)
		cfg.TimeLimit = 0.5
		e, err := env.New(cfg)
		Expect(err).NotTo(HaveOccurred())

		ep, err := runner.Run(context.Background(), e, control.NewNone(env.ActionDim))
		Expect(err).NotTo(HaveOccurred())
		Expect(ep.Steps).To(Equal(50))
		Expect(ep.Observations[50]).To(HaveLen(18))
		Expect(ep.Return).To(BeNumerically(">", 0))
	})
})

var _ = Describe("Ensemble", func() {
	factory := func(v env.Variant) rollout.Factory {
		return func(seed uint64) (rollout.Environment, error) {
			cfg := env.DefaultConfig(v)
			cfg.TimeLimit = 0.3
			cfg.Seed = seed
			return env.New(cfg)
		}
	}
	hover := func() dynamo.Controller { return control.NewPID(2, 0.1, 0.5, 0) }

	It("orders episodes by seed and is reproducible", func() {
		ens := rollout.NewEnsemble(3, hover)
		first, err := ens.Run(context.Background(), factory(env.SlungLoad), 6, 100)
		Expect(err).NotTo(HaveOccurred())
		second, err := ens.Run(context.Background(), factory(env.SlungLoad), 6, 100)
		Expect(err).NotTo(HaveOccurred())

		Expect(first).To(HaveLen(6))
		for i := range first {
			Expect(first[i].Seed).To(Equal(uint64(100 + i)))
			Expect(first[i].Return).To(Equal(second[i].Return))
			Expect(first[i].Observations[0]).To(Equal(second[i].Observations[0]))
		}
		Expect(first[0].Observations[0]).NotTo(Equal(first[1].Observations[0]))
	})

	It("gives every episode its own metrics", func() {
		ens := rollout.NewEnsemble(0, hover)
		ens.NewMetrics = func() []dynamo.Metric { return []dynamo.Metric{&countingMetric{}} }
		eps, err := ens.Run(context.Background(), factory(env.Plain), 4, 0)
		Expect(err).NotTo(HaveOccurred())
		for _, ep := range eps {
			Expect(ep.Metrics["count"]).To(Equal(30.0))
		}
	})

	It("reports factory errors", func() {
		bad := func(seed uint64) (rollout.Environment, error) {
			return nil, dynamo.ErrParameterBounds
		}
		_, err := rollout.NewEnsemble(2, hover).Run(context.Background(), bad, 2, 0)
		Expect(err).To(MatchError(dynamo.ErrParameterBounds))
	})

	It("rejects an empty batch", func() {
		_, err := rollout.NewEnsemble(2, hover).Run(context.Background(), factory(env.Plain), 0, 0)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Summarize", func() {
	It("aggregates returns", func() {
		eps := []*rollout.Episode{
			{Return: 1, Steps: 10},
			{Return: 3, Steps: 20, Terminated: true},
			nil,
		}
		s := rollout.Summarize(eps)
		Expect(s.Episodes).To(Equal(2))
		Expect(s.Terminated).To(Equal(1))
		Expect(s.MeanReturn).To(Equal(2.0))
		Expect(s.StdReturn).To(BeNumerically("~", math.Sqrt2, 1e-12))
		Expect(s.MeanSteps).To(Equal(15.0))
		Expect(s.Best).To(Equal(1.0))
		Expect(s.Worst).To(Equal(3.0))
	})

	It("handles a single episode", func() {
		s := rollout.Summarize([]*rollout.Episode{{Return: 4}})
		Expect(s.StdReturn).To(Equal(0.0))
		Expect(s.MeanReturn).To(Equal(4.0))
	})
})
