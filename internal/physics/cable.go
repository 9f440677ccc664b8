package physics

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	DefaultCableLength = 1.0
	DefaultLoadMass    = 0.08
	DefaultDamping     = 0.01

	// tautSlack absorbs the rounding left by the radial projection so a
	// cable that was projected last step still reads as taut.
	tautSlack = 1e-9
)

type CableState int

const (
	Slack CableState = iota
	Taut
)

func (s CableState) String() string {
	switch s {
	case Slack:
		return "slack"
	case Taut:
		return "taut"
	default:
		return fmt.Sprintf("CableState(%d)", int(s))
	}
}

// Cable is an inextensible massless tether between the vehicle centre and
// a point load. It only ever pulls.
type Cable struct {
	Length   float64
	LoadMass float64
	Damping  float64
}

func NewCable() *Cable {
	return &Cable{
		Length:   DefaultCableLength,
		LoadMass: DefaultLoadMass,
		Damping:  DefaultDamping,
	}
}

func (c *Cable) Validate() error {
	if c.Length <= 0 {
		return fmt.Errorf("cable length must be positive, got %g", c.Length)
	}
	if c.LoadMass <= 0 {
		return fmt.Errorf("load mass must be positive, got %g", c.LoadMass)
	}
	if c.Damping < 0 {
		return fmt.Errorf("cable damping must be non-negative, got %g", c.Damping)
	}
	return nil
}

// State is recomputed from geometry on every call.
func (c *Cable) State(b *Body, l *Load) CableState {
	if r3.Norm(r3.Sub(l.Position, b.Position)) >= c.Length-tautSlack {
		return Taut
	}
	return Slack
}

// Tension is the force the cable exerts on the vehicle, pointing from the
// vehicle towards the load. The load feels the opposite force.
func (c *Cable) Tension(b *Body, l *Load, gravity r3.Vec) r3.Vec {
	if c.State(b, l) == Slack {
		return r3.Vec{}
	}
	dir := direction(b.Position, l.Position)
	return r3.Scale(c.LoadMass*r3.Norm(r3.Add(gravity, b.LinAcc)), dir)
}

// LoadAcceleration is the inertial acceleration of the load given the
// tension on the vehicle.
func (c *Cable) LoadAcceleration(b *Body, l *Load, tension, gravity r3.Vec) r3.Vec {
	if c.State(b, l) == Slack {
		return gravity
	}
	acc := r3.Sub(gravity, r3.Scale(1/c.LoadMass, tension))

	dir := direction(b.Position, l.Position)
	rel := r3.Sub(l.Velocity, b.LinVel)
	tangential := r3.Sub(rel, r3.Scale(r3.Dot(rel, dir), dir))
	return r3.Sub(acc, r3.Scale(c.Damping, tangential))
}

// Project moves the load radially onto the tether sphere. A slack cable is
// only corrected when the load has drifted outside the sphere.
func (c *Cable) Project(b *Body, l *Load, state CableState) {
	d := r3.Sub(l.Position, b.Position)
	n := r3.Norm(d)
	if n == 0 {
		return
	}
	if state == Slack && n <= c.Length {
		return
	}
	l.Position = r3.Add(b.Position, r3.Scale(c.Length/n, d))
}

// Step advances vehicle and load together. The cable state is decided on
// the configuration at the start of the step.
func (c *Cable) Step(in *Integrator, b *Body, l *Load, w Wrench, dt float64) CableState {
	g := in.vehicle.Gravity
	state := c.State(b, l)
	tension := c.Tension(b, l, g)
	loadAcc := c.LoadAcceleration(b, l, tension, g)

	lin, ang := in.Accelerations(b, w, tension)
	l.Velocity = r3.Add(l.Velocity, r3.Scale(dt, loadAcc))
	in.Advance(b, lin, ang, dt)
	l.Position = r3.Add(l.Position, r3.Scale(dt, l.Velocity))
	c.Project(b, l, state)

	limit := in.vehicle.MaxLinVel
	l.Velocity.X = clamp(l.Velocity.X, limit)
	l.Velocity.Y = clamp(l.Velocity.Y, limit)
	return state
}

func direction(from, to r3.Vec) r3.Vec {
	d := r3.Sub(to, from)
	n := r3.Norm(d)
	if n == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/n, d)
}
