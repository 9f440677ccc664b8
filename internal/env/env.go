// Package env exposes the quadrotor simulator as a reinforcement learning
// environment: fixed-size scaled observations, a shaped cost, and box
// constraint termination. One Env type covers the plain quadrotor, the
// quadrotor with a reference vehicle and the quadrotor with a slung load.
//
// An Env is not safe for concurrent use. Run one per goroutine.
package env

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/quadsim/internal/control"
	"github.com/san-kum/quadsim/internal/dynamo"
	"github.com/san-kum/quadsim/internal/mixer"
	"github.com/san-kum/quadsim/internal/physics"
	"github.com/san-kum/quadsim/internal/rotation"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ActionDim is the length of every action: one entry per rotor.
const ActionDim = mixer.Rotors

const (
	positionCostWeight = 0.004
	motionCostWeight   = 0.00005
)

type Config struct {
	Variant       Variant
	Dt            float64
	TimeLimit     float64
	Discount      float64
	TerminalValue float64
	ActionScale   float64
	Seed          uint64
	Termination   TerminationPolicy
	Vehicle       physics.Vehicle
	Cable         physics.Cable
}

func DefaultConfig(v Variant) Config {
	return Config{
		Variant:       v,
		Dt:            0.01,
		TimeLimit:     15.0,
		Discount:      0.99,
		TerminalValue: 1.5,
		ActionScale:   2.0,
		Vehicle:       *physics.NewQuadrotor(),
		Cable:         *physics.NewCable(),
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Dt <= 0 {
		errs = append(errs, fmt.Errorf("dt must be positive, got %g", c.Dt))
	}
	if c.TimeLimit < c.Dt {
		errs = append(errs, fmt.Errorf("time limit %g shorter than one step", c.TimeLimit))
	}
	if c.Discount <= 0 || c.Discount > 1 {
		errs = append(errs, fmt.Errorf("discount must be in (0, 1], got %g", c.Discount))
	}
	if c.ActionScale <= 0 {
		errs = append(errs, fmt.Errorf("action scale must be positive, got %g", c.ActionScale))
	}
	if _, ok := variantNames[c.Variant]; !ok {
		errs = append(errs, fmt.Errorf("unknown variant %d", int(c.Variant)))
	}
	if err := c.Vehicle.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Variant == SlungLoad {
		if err := c.Cable.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", dynamo.ErrParameterBounds, errors.Join(errs...))
	}
	return nil
}

type Env struct {
	cfg         Config
	layout      Layout
	termination TerminationPolicy

	integrator *physics.Integrator
	cable      *physics.Cable
	mixer      *mixer.Mixer
	stabilizer *control.Stabilizer
	rng        *sampler

	body       physics.Body
	load       physics.Load
	ref        physics.Body
	target     r3.Vec
	cableState physics.CableState

	t           float64
	steps       int
	saturations int

	renderer Renderer
	diag     DiagnosticSink
}

// New builds an environment and draws a first initial state from the
// configured seed.
func New(cfg Config, opts ...Option) (*Env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	vehicle := cfg.Vehicle
	integrator, err := physics.NewIntegrator(&vehicle)
	if err != nil {
		return nil, err
	}
	mx, err := mixer.New(vehicle.ArmLength, vehicle.DragCoeff)
	if err != nil {
		return nil, err
	}
	cable := cfg.Cable

	e := &Env{
		cfg:         cfg,
		layout:      NewLayout(cfg.Variant, cable.Length),
		termination: cfg.Termination.resolve(cfg.Variant),
		integrator:  integrator,
		cable:       &cable,
		mixer:       mx,
		stabilizer:  control.DefaultStabilizer(),
		rng:         newSampler(cfg.Seed),
		diag:        nopSink{},
	}
	for _, opt := range opts {
		opt(e)
	}

	if _, err := e.Reset(); err != nil {
		return nil, err
	}
	return e, nil
}

// Step applies a normalised action for one control period and returns the
// next observation, whether it is terminal, and the step cost.
func (e *Env) Step(action []float64) ([]float64, bool, float64, error) {
	if len(action) != ActionDim {
		return nil, false, 0, fmt.Errorf("%w: action has %d entries, want %d",
			dynamo.ErrDimensionMismatch, len(action), ActionDim)
	}

	var a [ActionDim]float64
	copy(a[:], action)
	w := e.wrench(&e.body, a)
	e.advance(w)

	if e.cfg.Variant == WithReference {
		e.integrator.Step(&e.ref, e.wrench(&e.ref, [ActionDim]float64{}), r3.Vec{}, e.cfg.Dt)
	}

	e.t += e.cfg.Dt
	e.steps++

	if err := e.checkDivergence(w, action); err != nil {
		return nil, true, 0, err
	}

	obs, err := e.ObservableState()
	if err != nil {
		return nil, true, 0, err
	}
	cost := e.cost(action)
	terminated := e.termination == TerminateOnBounds && e.layout.Violates(obs)

	e.draw(cost)
	return obs, terminated, cost, nil
}

// StepSim drives the vehicle open loop from raw rotor commands. There is
// no stabilizer and no gravity compensation; the reference vehicle does
// not move.
func (e *Env) StepSim(cmd []float64) error {
	if len(cmd) != ActionDim {
		return fmt.Errorf("%w: command has %d entries, want %d",
			dynamo.ErrDimensionMismatch, len(cmd), ActionDim)
	}

	var c [ActionDim]float64
	copy(c[:], cmd)
	gf := e.mixer.Forward(mixer.ThrustFromCommand(c))
	w := physics.Wrench{Torque: r3.Vec{X: gf[0], Y: gf[1], Z: gf[2]}, Thrust: gf[3]}
	e.advance(w)

	e.t += e.cfg.Dt
	e.steps++

	if err := e.checkDivergence(w, cmd); err != nil {
		return err
	}
	e.draw(math.NaN())
	return nil
}

func (e *Env) advance(w physics.Wrench) {
	if e.cfg.Variant == SlungLoad {
		e.cableState = e.cable.Step(e.integrator, &e.body, &e.load, w, e.cfg.Dt)
		return
	}
	e.integrator.Step(&e.body, w, r3.Vec{}, e.cfg.Dt)
}

// wrench mixes the scaled action with the attitude stabilizer and hover
// thrust, then clips every rotor at the thrust floor.
func (e *Env) wrench(b *physics.Body, action [ActionDim]float64) physics.Wrench {
	for i := range action {
		action[i] *= e.cfg.ActionScale
	}
	gf := e.mixer.Forward(action)

	fb := e.stabilizer.Torque(b.Orientation, b.Rot(), b.AngVel)
	gf[0] += fb.X
	gf[1] += fb.Y
	gf[2] += fb.Z
	gf[3] += e.integrator.Vehicle().Mass * physics.GravityAccel

	out, _, saturated := e.mixer.Saturate(gf)
	if saturated && b == &e.body {
		e.saturations++
	}
	return physics.Wrench{Torque: r3.Vec{X: out[0], Y: out[1], Z: out[2]}, Thrust: out[3]}
}

func (e *Env) checkDivergence(w physics.Wrench, action []float64) error {
	refDiverged := e.cfg.Variant == WithReference && e.ref.Diverged()
	if !e.body.Diverged() && !refDiverged {
		return nil
	}
	e.diag.Diverged(Divergence{
		Variant:   e.cfg.Variant,
		Step:      e.steps,
		Time:      e.t,
		Body:      e.body,
		Load:      e.load,
		Reference: e.ref,
		Wrench:    w,
		Action:    append([]float64(nil), action...),
	})
	return &dynamo.SimulationError{Step: e.steps, Time: e.t, Wrapped: dynamo.ErrUnstable}
}

func (e *Env) cost(action []float64) float64 {
	motion := floats.Norm(action, 2)
	switch e.cfg.Variant {
	case SlungLoad:
		motion += r3.Norm(e.body.AngVel) + r3.Norm(e.body.LinVel) + r3.Norm(e.load.Velocity)
		return positionCostWeight*math.Sqrt(r3.Norm(e.load.Position)) + motionCostWeight*motion
	case WithReference:
		motion += r3.Norm(r3.Sub(e.body.AngVel, e.ref.AngVel)) + r3.Norm(r3.Sub(e.body.LinVel, e.ref.LinVel))
		return positionCostWeight*math.Sqrt(coordinateDistance(&e.body, &e.ref)) + motionCostWeight*motion
	default:
		motion += r3.Norm(e.body.AngVel) + r3.Norm(e.body.LinVel)
		return positionCostWeight*math.Sqrt(r3.Norm(e.body.Position)) + motionCostWeight*motion
	}
}

// coordinateDistance is the Euclidean norm of the difference of the
// generalized coordinates (quaternion then position).
func coordinateDistance(a, b *physics.Body) float64 {
	dq := quat.Sub(a.Orientation, b.Orientation)
	dp := r3.Sub(a.Position, b.Position)
	return floats.Norm([]float64{dq.Real, dq.Imag, dq.Jmag, dq.Kmag, dp.X, dp.Y, dp.Z}, 2)
}

func (e *Env) draw(cost float64) {
	if e.renderer == nil {
		return
	}
	e.renderer.Draw(Frame{
		Variant:   e.cfg.Variant,
		Time:      e.t,
		Step:      e.steps,
		Vehicle:   e.body,
		Load:      e.load,
		Reference: e.ref,
		Target:    e.target,
		Cable:     e.cableState,
		Cost:      cost,
	})
}

// Reset draws a new random initial state and restarts the episode clock.
func (e *Env) Reset() ([]float64, error) {
	s := e.rng
	e.body = physics.Body{Orientation: s.orientation()}

	switch e.cfg.Variant {
	case SlungLoad:
		e.body.Position = r3.Scale(2, s.ball())
		e.body.AngVel = s.ball()
		e.body.LinVel = s.ball()
		off := r3.Scale(e.cable.Length, s.ball())
		off.Z = -math.Abs(off.Z)
		e.load = physics.Load{
			Position: r3.Add(e.body.Position, e.body.Rot().MulVec(off)),
			Velocity: e.body.LinVel,
		}
	default:
		e.body.Position = r3.Scale(2, s.cube())
		e.body.AngVel = s.cube()
		e.body.LinVel = s.cube()
		e.load = physics.Load{}
	}

	e.ref = physics.Body{}
	if e.cfg.Variant == WithReference {
		e.ref.Orientation = s.orientation()
		e.ref.AngVel = s.cube()
		e.ref.LinVel = s.cube()
	}

	e.restart()
	return e.ObservableState()
}

// Seed reseeds the initial state stream. The next Reset is reproducible.
func (e *Env) Seed(seed uint64) {
	e.cfg.Seed = seed
	e.rng.seed(seed)
}

func (e *Env) restart() {
	e.t = 0
	e.steps = 0
	e.saturations = 0
	e.cableState = physics.Slack
	if e.cfg.Variant == SlungLoad {
		e.cableState = e.cable.State(&e.body, &e.load)
	}
}

// InitTo places the simulator at the state encoded by obs. For SlungLoad
// the load is assumed to hang below the vehicle in body z, so a load
// above the rotor plane does not round trip.
func (e *Env) InitTo(obs []float64) error {
	l := e.layout
	if len(obs) != l.Dim {
		return fmt.Errorf("%w: observation has %d entries, want %d",
			dynamo.ErrDimensionMismatch, len(obs), l.Dim)
	}
	if !dynamo.State(obs).IsValid() {
		return dynamo.ErrInvalidState
	}

	R := rotation.FromColumns(obs[l.Rotation : l.Rotation+9])
	e.body = physics.Body{
		Orientation: rotation.FromRotMat(R),
		Position:    r3.Scale(1/PositionScale, vec(obs, l.Position)),
		AngVel:      r3.Scale(1/AngVelScale, vec(obs, l.AngVel)),
		LinVel:      r3.Scale(1/LinVelScale, vec(obs, l.LinVel)),
	}

	e.load = physics.Load{}
	if l.Load >= 0 {
		s1, s2, n := math.Sin(obs[l.Load]), math.Sin(obs[l.Load+1]), obs[l.Load+2]
		b := r3.Scale(n, r3.Vec{X: s1, Y: s2, Z: -math.Sqrt(math.Max(0, 1-s1*s1-s2*s2))})
		e.load.Position = r3.Add(e.body.Position, R.MulVec(b))
		e.load.Velocity = r3.Scale(1/LinVelScale, vec(obs, l.LoadVel))
	}

	e.ref = physics.Body{}
	if l.RefRotation >= 0 {
		e.ref.Orientation = rotation.FromRotMat(rotation.FromColumns(obs[l.RefRotation : l.RefRotation+9]))
		e.ref.AngVel = r3.Scale(1/AngVelScale, vec(obs, l.RefAngVel))
		e.ref.LinVel = r3.Scale(1/LinVelScale, vec(obs, l.RefLinVel))
	}

	e.restart()
	return nil
}

// ObservableState encodes the current state. It does not modify the Env.
func (e *Env) ObservableState() ([]float64, error) {
	if e.body.Diverged() {
		return nil, &dynamo.SimulationError{Step: e.steps, Time: e.t, Wrapped: dynamo.ErrUnstable}
	}
	l := e.layout
	obs := make([]float64, l.Dim)

	R := rotation.ToRotMat(rotation.Normalize(e.body.Orientation))
	copy(obs[l.Rotation:], R.Columns())
	put(obs, l.Position, r3.Scale(PositionScale, e.body.Position))
	put(obs, l.AngVel, r3.Scale(AngVelScale, e.body.AngVel))
	put(obs, l.LinVel, r3.Scale(LinVelScale, e.body.LinVel))

	if l.Load >= 0 {
		b := R.T().MulVec(r3.Sub(e.load.Position, e.body.Position))
		if n := r3.Norm(b); n > 0 {
			obs[l.Load] = math.Asin(clampUnit(b.X / n))
			obs[l.Load+1] = math.Asin(clampUnit(b.Y / n))
			obs[l.Load+2] = n
		}
		put(obs, l.LoadVel, r3.Scale(LinVelScale, e.load.Velocity))
	}

	if l.RefRotation >= 0 {
		if e.ref.Diverged() {
			return nil, &dynamo.SimulationError{Step: e.steps, Time: e.t, Wrapped: dynamo.ErrUnstable}
		}
		Rr := rotation.ToRotMat(rotation.Normalize(e.ref.Orientation))
		copy(obs[l.RefRotation:], Rr.Columns())
		put(obs, l.RefAngVel, r3.Scale(AngVelScale, e.ref.AngVel))
		put(obs, l.RefLinVel, r3.Scale(LinVelScale, e.ref.LinVel))
	}
	return obs, nil
}

// SetInitialState always fails: initial states are drawn by Reset.
func (e *Env) SetInitialState([]float64) error {
	return fmt.Errorf("%w: initial states are random, use Reset or InitTo", dynamo.ErrUnsupported)
}

func (e *Env) GradientStateAction([]float64, []float64) ([][]float64, error) {
	return nil, fmt.Errorf("%w: state/action jacobian", dynamo.ErrNotImplemented)
}

func (e *Env) GradientCostAction([]float64, []float64) ([]float64, error) {
	return nil, fmt.Errorf("%w: cost/action gradient", dynamo.ErrNotImplemented)
}

// SetTarget records the position the vehicle is meant to reach. It only
// feeds the rendered frames.
func (e *Env) SetTarget(p r3.Vec) { e.target = p }
func (e *Env) Target() r3.Vec     { return e.target }

// Translate shifts the vehicle, and the load with it, by dp.
func (e *Env) Translate(dp r3.Vec) {
	e.body.Position = r3.Add(e.body.Position, dp)
	if e.cfg.Variant == SlungLoad {
		e.load.Position = r3.Add(e.load.Position, dp)
	}
}

func (e *Env) Orientation() quat.Number       { return e.body.Orientation }
func (e *Env) Position() r3.Vec               { return e.body.Position }
func (e *Env) AngularVelocity() r3.Vec        { return e.body.AngVel }
func (e *Env) LinearVelocity() r3.Vec         { return e.body.LinVel }
func (e *Env) LoadPosition() r3.Vec           { return e.load.Position }
func (e *Env) LoadVelocity() r3.Vec           { return e.load.Velocity }
func (e *Env) Reference() physics.Body        { return e.ref }
func (e *Env) CableState() physics.CableState { return e.cableState }

func (e *Env) Time() float64                  { return e.t }
func (e *Env) Steps() int                     { return e.steps }
func (e *Env) Dim() int                       { return e.layout.Dim }
func (e *Env) Layout() Layout                 { return e.layout }
func (e *Env) Variant() Variant               { return e.cfg.Variant }
func (e *Env) Discount() float64              { return e.cfg.Discount }
func (e *Env) TerminalValue() float64         { return e.cfg.TerminalValue }
func (e *Env) TimeLimit() float64             { return e.cfg.TimeLimit }
func (e *Env) Timestep() float64              { return e.cfg.Dt }
func (e *Env) Termination() TerminationPolicy { return e.termination }
func (e *Env) Vehicle() physics.Vehicle       { return *e.integrator.Vehicle() }

// Saturations counts the steps of the current episode in which at least
// one rotor was clipped at the thrust floor.
func (e *Env) Saturations() int { return e.saturations }

func vec(x []float64, offset int) r3.Vec {
	return r3.Vec{X: x[offset], Y: x[offset+1], Z: x[offset+2]}
}

func put(x []float64, offset int, v r3.Vec) {
	x[offset], x[offset+1], x[offset+2] = v.X, v.Y, v.Z
}

func clampUnit(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}
