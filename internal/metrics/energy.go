package metrics

import (
	"math"

	"github.com/san-kum/quadsim/internal/dynamo"
	"github.com/san-kum/quadsim/internal/env"
	"github.com/san-kum/quadsim/internal/physics"
	"github.com/san-kum/quadsim/internal/rotation"
	"gonum.org/v1/gonum/spatial/r3"
)

// EnergyFunc evaluates an energy from an observation.
type EnergyFunc func(x dynamo.State) float64

// FlightEnergy decodes the vehicle state from an observation and returns
// its mechanical energy: translational and rotational kinetic energy plus
// potential energy relative to z = 0.
func FlightEnergy(v physics.Vehicle, layout env.Layout) EnergyFunc {
	return func(x dynamo.State) float64 {
		if len(x) != layout.Dim {
			return math.NaN()
		}
		R := rotation.FromColumns(x[layout.Rotation : layout.Rotation+9])
		p := r3.Scale(1/env.PositionScale, vec(x, layout.Position))
		w := r3.Scale(1/env.AngVelScale, vec(x, layout.AngVel))
		lv := r3.Scale(1/env.LinVelScale, vec(x, layout.LinVel))

		wB := R.T().MulVec(w)
		rot := 0.5 * (v.Inertia.X*wB.X*wB.X + v.Inertia.Y*wB.Y*wB.Y + v.Inertia.Z*wB.Z*wB.Z)
		kin := 0.5 * v.Mass * r3.Norm2(lv)
		pot := -v.Mass * v.Gravity.Z * p.Z
		return kin + rot + pot
	}
}

// Energy is the mean of an energy function over the observed steps.
type Energy struct {
	name        string
	energy      EnergyFunc
	samples     int
	totalEnergy float64
}

func NewEnergy(fn EnergyFunc) *Energy {
	return &Energy{
		name:   "energy",
		energy: fn,
	}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(x dynamo.State, u dynamo.Control, t float64) {
	val := e.energy(x)
	if math.IsNaN(val) {
		return
	}
	e.totalEnergy += val
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}

// EnergyDrift is the largest relative change of energy from the first
// observation. Under zero action the stabilizer and hover thrust should
// keep it small.
type EnergyDrift struct {
	name          string
	energy        EnergyFunc
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift(fn EnergyFunc) *EnergyDrift {
	return &EnergyDrift{
		name:   "energy_drift",
		energy: fn,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(x dynamo.State, u dynamo.Control, t float64) {
	energy := e.energy(x)
	if math.IsNaN(energy) {
		return
	}

	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

func vec(x []float64, offset int) r3.Vec {
	return r3.Vec{X: x[offset], Y: x[offset+1], Z: x[offset+2]}
}
