// Package mixer maps per-rotor thrust to the body wrench of a
// "plus" quadrotor and back, and enforces that every wrench handed to the
// integrator is producible by strictly positive rotor thrusts.
package mixer

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const (
	// ThrustFloor is the smallest thrust a rotor is allowed to produce.
	ThrustFloor = 1e-8

	// ThrustCoeff converts a squared rotor command to thrust in newtons.
	ThrustCoeff = 8.5486e-6

	Rotors = 4
)

// Mixer holds the fixed thrust-to-wrench matrix
//
//	τx = l·(f3 − f4)
//	τy = l·(f2 − f1)
//	τz = c·(f1 + f2 − f3 − f4)
//	F  = f1 + f2 + f3 + f4
//
// and its inverse. The wrench ordering is [τx τy τz F].
type Mixer struct {
	ArmLength float64
	DragCoeff float64

	forward *mat.Dense
	inverse *mat.Dense
}

func New(armLength, dragCoeff float64) (*Mixer, error) {
	if armLength <= 0 || dragCoeff <= 0 {
		return nil, fmt.Errorf("mixer: arm length and drag coefficient must be positive, got %g and %g", armLength, dragCoeff)
	}
	l, c := armLength, dragCoeff
	fwd := mat.NewDense(Rotors, Rotors, []float64{
		0, 0, l, -l,
		-l, l, 0, 0,
		c, c, -c, -c,
		1, 1, 1, 1,
	})

	var inv mat.Dense
	if err := inv.Inverse(fwd); err != nil {
		return nil, fmt.Errorf("mixer: %w", err)
	}

	return &Mixer{
		ArmLength: armLength,
		DragCoeff: dragCoeff,
		forward:   fwd,
		inverse:   &inv,
	}, nil
}

// Forward converts rotor thrusts to a generalized force [τx τy τz F].
func (m *Mixer) Forward(thrust [Rotors]float64) [Rotors]float64 {
	return apply(m.forward, thrust)
}

// Inverse converts a generalized force to the rotor thrusts that produce it.
// The result may contain negative entries.
func (m *Mixer) Inverse(genForce [Rotors]float64) [Rotors]float64 {
	return apply(m.inverse, genForce)
}

// Saturate projects genForce onto the set of wrenches producible with
// thrusts >= ThrustFloor. The returned thrusts are the clamped rotor values
// and saturated reports whether any rotor was clamped. When nothing is
// clamped out equals genForce up to rounding.
func (m *Mixer) Saturate(genForce [Rotors]float64) (out, thrust [Rotors]float64, saturated bool) {
	thrust = m.Inverse(genForce)
	for i, f := range thrust {
		if f < ThrustFloor {
			thrust[i] = ThrustFloor
			saturated = true
		}
	}
	return m.Forward(thrust), thrust, saturated
}

// ThrustFromCommand converts raw rotor commands to floored thrusts,
// f = ThrustCoeff·cmd².
func ThrustFromCommand(cmd [Rotors]float64) [Rotors]float64 {
	var thrust [Rotors]float64
	for i, u := range cmd {
		thrust[i] = max(u*u*ThrustCoeff, ThrustFloor)
	}
	return thrust
}

func apply(m *mat.Dense, in [Rotors]float64) [Rotors]float64 {
	var v mat.VecDense
	v.MulVec(m, mat.NewVecDense(Rotors, in[:]))
	var out [Rotors]float64
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
