package env

import (
	"math"
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/quadsim/internal/dynamo"
	"github.com/san-kum/quadsim/internal/physics"
	"github.com/san-kum/quadsim/internal/rotation"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

type frameCounter struct {
	frames []Frame
}

func (f *frameCounter) Draw(fr Frame) { f.frames = append(f.frames, fr) }

type divergenceRecorder struct {
	events []Divergence
}

func (d *divergenceRecorder) Diverged(dv Divergence) { d.events = append(d.events, dv) }

func newEnv(v Variant, opts ...Option) *Env {
	e, err := New(DefaultConfig(v), opts...)
	Expect(err).NotTo(HaveOccurred())
	return e
}

// restObs is an observation at the origin with identity attitude and no
// motion. For SlungLoad the load hangs straight down at full length.
func restObs(e *Env) []float64 {
	l := e.Layout()
	obs := make([]float64, l.Dim)
	copy(obs[l.Rotation:], rotation.Identity().Columns())
	if l.Load >= 0 {
		obs[l.Load+2] = e.cable.Length
	}
	if l.RefRotation >= 0 {
		copy(obs[l.RefRotation:], rotation.Identity().Columns())
	}
	return obs
}

var zeroAction = []float64{0, 0, 0, 0}

var _ = Describe("Layout", func() {
	DescribeTable("observation dimension",
		func(v Variant, dim int) {
			Expect(NewLayout(v, 1).Dim).To(Equal(dim))
			Expect(NewLayout(v, 1).Bounds).To(HaveLen(dim))
		},
		Entry("plain", Plain, 18),
		Entry("with reference", WithReference, 33),
		Entry("slung load", SlungLoad, 24),
	)

	It("bounds the cable length between 0.3L and L", func() {
		l := NewLayout(SlungLoad, 2)
		Expect(l.Bounds[l.Load+2].Min).To(BeNumerically("~", 0.6, 1e-12))
		Expect(l.Bounds[l.Load+2].Max).To(Equal(2.0))
		Expect(l.Bounds[l.Load].Max).To(BeNumerically("~", 3*math.Pi/8, 1e-12))
	})

	It("treats NaN and wrong lengths as violations", func() {
		l := NewLayout(Plain, 1)
		obs := make([]float64, l.Dim)
		Expect(l.Violates(obs)).To(BeFalse())
		obs[l.Position] = math.NaN()
		Expect(l.Violates(obs)).To(BeTrue())
		Expect(l.Violates(obs[:3])).To(BeTrue())
	})

	It("parses variant names", func() {
		for _, v := range []Variant{Plain, WithReference, SlungLoad} {
			got, err := ParseVariant(v.String())
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(v))
		}
		_, err := ParseVariant("hexacopter")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Env", func() {
	Describe("construction", func() {
		It("rejects invalid configuration", func() {
			cfg := DefaultConfig(Plain)
			cfg.Dt = 0
			_, err := New(cfg)
			Expect(err).To(MatchError(dynamo.ErrParameterBounds))
		})

		It("starts from a valid random state", func() {
			e := newEnv(Plain)
			obs, err := e.ObservableState()
			Expect(err).NotTo(HaveOccurred())
			Expect(dynamo.State(obs).IsValid()).To(BeTrue())
			Expect(e.Time()).To(Equal(0.0))
		})

		It("resolves the default termination policy per variant", func() {
			Expect(newEnv(Plain).Termination()).To(Equal(TerminateNever))
			Expect(newEnv(WithReference).Termination()).To(Equal(TerminateNever))
			Expect(newEnv(SlungLoad).Termination()).To(Equal(TerminateOnBounds))
		})
	})

	Describe("Step", func() {
		It("holds a level hover with zero action", func() {
			e := newEnv(Plain)
			Expect(e.InitTo(restObs(e))).To(Succeed())

			_, terminated, _, err := e.Step(zeroAction)
			Expect(err).NotTo(HaveOccurred())
			Expect(terminated).To(BeFalse())
			Expect(r3.Norm(e.LinearVelocity())).To(BeNumerically("<", 1e-9))
			Expect(r3.Norm(e.AngularVelocity())).To(BeNumerically("<", 1e-12))
			Expect(e.Time()).To(BeNumerically("~", 0.01, 1e-15))
		})

		It("charges the shaped position cost", func() {
			e := newEnv(Plain)
			obs := restObs(e)
			obs[e.Layout().Position] = 0.5
			Expect(e.InitTo(obs)).To(Succeed())

			_, _, cost, err := e.Step(zeroAction)
			Expect(err).NotTo(HaveOccurred())
			Expect(cost).To(BeNumerically("~", 0.004, 1e-6))
		})

		It("charges the action norm", func() {
			e := newEnv(Plain)
			Expect(e.InitTo(restObs(e))).To(Succeed())
			_, _, base, _ := e.Step(zeroAction)

			Expect(e.InitTo(restObs(e))).To(Succeed())
			_, _, cost, err := e.Step([]float64{0.3, 0.4, 0, 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(cost - base).To(BeNumerically(">", 0.5*0.00005))
		})

		It("rejects a wrong action length", func() {
			e := newEnv(Plain)
			_, _, _, err := e.Step([]float64{1})
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		})

		It("counts rotor saturation", func() {
			e := newEnv(Plain)
			Expect(e.InitTo(restObs(e))).To(Succeed())
			_, _, _, err := e.Step([]float64{-10, -10, -10, -10})
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Saturations()).To(Equal(1))
		})

		It("reports bounds only when the policy asks for it", func() {
			obs := func(e *Env) []float64 {
				o := restObs(e)
				o[e.Layout().Position] = 3.5
				return o
			}

			plain := newEnv(Plain)
			Expect(plain.InitTo(obs(plain))).To(Succeed())
			_, terminated, _, err := plain.Step(zeroAction)
			Expect(err).NotTo(HaveOccurred())
			Expect(terminated).To(BeFalse())

			strict := newEnv(Plain, WithTermination(TerminateOnBounds))
			Expect(strict.InitTo(obs(strict))).To(Succeed())
			_, terminated, _, err = strict.Step(zeroAction)
			Expect(err).NotTo(HaveOccurred())
			Expect(terminated).To(BeTrue())
		})

		It("hands a frame to the renderer after every step", func() {
			r := &frameCounter{}
			e := newEnv(Plain, WithRenderer(r))
			e.SetTarget(r3.Vec{X: 1})
			for i := 0; i < 5; i++ {
				_, _, _, err := e.Step(zeroAction)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(r.frames).To(HaveLen(5))
			Expect(r.frames[4].Step).To(Equal(5))
			Expect(r.frames[4].Target).To(Equal(r3.Vec{X: 1}))
		})

		It("reports divergence to the diagnostic sink", func() {
			d := &divergenceRecorder{}
			e := newEnv(Plain, WithDiagnostics(d))
			e.body.Orientation = quat.NaN()

			_, _, _, err := e.Step(zeroAction)
			Expect(err).To(MatchError(dynamo.ErrUnstable))
			Expect(d.events).To(HaveLen(1))
			Expect(d.events[0].Step).To(Equal(1))

			_, err = e.ObservableState()
			Expect(err).To(MatchError(dynamo.ErrUnstable))
		})

		It("reports a diverged reference vehicle with its state", func() {
			d := &divergenceRecorder{}
			e := newEnv(WithReference, WithDiagnostics(d))
			e.ref.Orientation = quat.NaN()

			_, _, _, err := e.Step(zeroAction)
			Expect(err).To(MatchError(dynamo.ErrUnstable))
			Expect(d.events).To(HaveLen(1))
			Expect(d.events[0].Body.Diverged()).To(BeFalse())
			Expect(d.events[0].Reference.Diverged()).To(BeTrue())
		})
	})

	Describe("StepSim", func() {
		It("free falls with zero rotor commands", func() {
			e := newEnv(Plain)
			Expect(e.InitTo(restObs(e))).To(Succeed())

			Expect(e.StepSim(zeroAction)).To(Succeed())
			Expect(e.LinearVelocity().Z).To(BeNumerically("~", -physics.GravityAccel*0.01, 1e-6))
		})

		It("climbs with enough rotor speed", func() {
			e := newEnv(Plain)
			Expect(e.InitTo(restObs(e))).To(Succeed())

			// 4·cmd²·8.5486e-6 is about 1.9·m·g
			cmd := []float64{600, 600, 600, 600}
			Expect(e.StepSim(cmd)).To(Succeed())
			Expect(e.LinearVelocity().Z).To(BeNumerically(">", 0))
		})
	})

	Describe("InitTo and ObservableState", func() {
		DescribeTable("round trips a reset state",
			func(v Variant) {
				e := newEnv(v)
				want, err := e.Reset()
				Expect(err).NotTo(HaveOccurred())

				Expect(e.InitTo(want)).To(Succeed())
				got, err := e.ObservableState()
				Expect(err).NotTo(HaveOccurred())
				for i := range want {
					Expect(got[i]).To(BeNumerically("~", want[i], 1e-9), "component %d", i)
				}
			},
			Entry("plain", Plain),
			Entry("with reference", WithReference),
			Entry("slung load", SlungLoad),
		)

		It("does not modify the state when reading", func() {
			e := newEnv(SlungLoad)
			first, _ := e.ObservableState()
			second, _ := e.ObservableState()
			Expect(second).To(Equal(first))
		})

		It("puts the load below the vehicle when rebuilding", func() {
			e := newEnv(SlungLoad)
			Expect(e.InitTo(restObs(e))).To(Succeed())
			Expect(e.LoadPosition()).To(Equal(r3.Vec{Z: -1}))
			Expect(e.CableState()).To(Equal(physics.Taut))
		})

		It("rejects malformed observations", func() {
			e := newEnv(Plain)
			Expect(e.InitTo(make([]float64, 5))).To(MatchError(dynamo.ErrDimensionMismatch))
			obs := restObs(e)
			obs[0] = math.Inf(1)
			Expect(e.InitTo(obs)).To(MatchError(dynamo.ErrInvalidState))
		})
	})

	Describe("Reset", func() {
		It("samples within the documented ranges", func() {
			e := newEnv(Plain)
			for i := 0; i < 100; i++ {
				_, err := e.Reset()
				Expect(err).NotTo(HaveOccurred())
				q := e.Orientation()
				Expect(q.Real).To(BeNumerically(">=", 0))
				Expect(quat.Abs(q)).To(BeNumerically("~", 1, 1e-9))
				p := e.Position()
				for _, c := range []float64{p.X, p.Y, p.Z} {
					Expect(math.Abs(c)).To(BeNumerically("<=", 2))
				}
			}
		})

		It("hangs the load below the vehicle within the cable", func() {
			e := newEnv(SlungLoad)
			for i := 0; i < 100; i++ {
				obs, err := e.Reset()
				Expect(err).NotTo(HaveOccurred())
				Expect(obs[e.Layout().Load+2]).To(BeNumerically("<=", 1+1e-12))
				b := rotation.ToRotMat(e.Orientation()).T().MulVec(r3.Sub(e.LoadPosition(), e.Position()))
				Expect(b.Z).To(BeNumerically("<=", 1e-12))
				Expect(e.LoadVelocity()).To(Equal(e.LinearVelocity()))
			}
		})

		It("places the reference at the origin", func() {
			e := newEnv(WithReference)
			Expect(e.Reference().Position).To(Equal(r3.Vec{}))
			Expect(e.Reference().Orientation.Real).To(BeNumerically(">=", 0))
		})

		It("is reproducible under a seed", func() {
			cfg := DefaultConfig(SlungLoad)
			cfg.Seed = 42
			a, err := New(cfg)
			Expect(err).NotTo(HaveOccurred())
			b, err := New(cfg)
			Expect(err).NotTo(HaveOccurred())

			oa, _ := a.ObservableState()
			ob, _ := b.ObservableState()
			Expect(oa).To(Equal(ob))

			for i := 0; i < 50; i++ {
				action := []float64{0.1, -0.1, 0.05, 0}
				oa, _, ca, _ := a.Step(action)
				ob, _, cb, _ := b.Step(action)
				Expect(oa).To(Equal(ob))
				Expect(ca).To(Equal(cb))
			}

			a.Seed(7)
			b.Seed(7)
			oa, _ = a.Reset()
			ob, _ = b.Reset()
			Expect(oa).To(Equal(ob))
		})
	})

	Describe("reference vehicle", func() {
		It("is integrated alongside the vehicle", func() {
			e := newEnv(WithReference)
			before := e.Reference()
			_, _, _, err := e.Step(zeroAction)
			Expect(err).NotTo(HaveOccurred())
			after := e.Reference()
			Expect(after.Position).NotTo(Equal(before.Position))
		})

		It("costs nothing beyond the action when tracking exactly", func() {
			e := newEnv(WithReference)
			Expect(e.InitTo(restObs(e))).To(Succeed())
			_, _, cost, err := e.Step(zeroAction)
			Expect(err).NotTo(HaveOccurred())
			Expect(cost).To(BeNumerically("<", 1e-6))
		})
	})

	Describe("slung load", func() {
		It("stays in static equilibrium below a hovering vehicle", func() {
			e := newEnv(SlungLoad)
			Expect(e.InitTo(restObs(e))).To(Succeed())
			start := e.LoadPosition()

			_, terminated, _, err := e.Step(zeroAction)
			Expect(err).NotTo(HaveOccurred())
			Expect(terminated).To(BeFalse())
			Expect(r3.Norm(r3.Sub(e.LoadPosition(), start))).To(BeNumerically("<", 1e-3))
		})

		It("never stretches the cable over long random rollouts", func() {
			rng := rand.New(rand.NewPCG(3, 5))
			cfg := DefaultConfig(SlungLoad)
			for episode := 0; episode < 10; episode++ {
				cfg.Seed = uint64(episode)
				e, err := New(cfg)
				Expect(err).NotTo(HaveOccurred())
				for i := 0; i < 400; i++ {
					action := []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
					_, _, _, err := e.Step(action)
					Expect(err).NotTo(HaveOccurred())
					d := r3.Norm(r3.Sub(e.LoadPosition(), e.Position()))
					Expect(d).To(BeNumerically("<=", cfg.Cable.Length+1e-9))
				}
			}
		})

		It("moves the load with Translate", func() {
			e := newEnv(SlungLoad)
			p, l := e.Position(), e.LoadPosition()
			e.Translate(r3.Vec{X: 1})
			Expect(e.Position().X).To(BeNumerically("~", p.X+1, 1e-12))
			Expect(e.LoadPosition().X).To(BeNumerically("~", l.X+1, 1e-12))
		})
	})

	Describe("unsupported entry points", func() {
		It("refuses SetInitialState", func() {
			e := newEnv(Plain)
			Expect(e.SetInitialState(restObs(e))).To(MatchError(dynamo.ErrUnsupported))
		})

		It("does not provide gradients", func() {
			e := newEnv(Plain)
			_, err := e.GradientStateAction(restObs(e), zeroAction)
			Expect(err).To(MatchError(dynamo.ErrNotImplemented))
			_, err = e.GradientCostAction(restObs(e), zeroAction)
			Expect(err).To(MatchError(dynamo.ErrNotImplemented))
		})
	})
})
