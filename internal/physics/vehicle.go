package physics

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// GravityAccel is the magnitude used for gravity compensation in the
	// control loop.
	GravityAccel = 9.81

	DefaultMass      = 0.665
	DefaultArmLength = 0.17
	DefaultDragCoeff = 0.016
	DefaultMaxAngVel = 20.0
	DefaultMaxLinVel = 5.0
)

// Vehicle collects the physical constants of a quadrotor. Inertia is the
// diagonal of the body inertia tensor.
type Vehicle struct {
	Mass      float64
	Inertia   r3.Vec
	ArmLength float64
	DragCoeff float64
	Gravity   r3.Vec
	MaxAngVel float64
	MaxLinVel float64
}

func NewQuadrotor() *Vehicle {
	return &Vehicle{
		Mass:      DefaultMass,
		Inertia:   r3.Vec{X: 0.007, Y: 0.007, Z: 0.012},
		ArmLength: DefaultArmLength,
		DragCoeff: DefaultDragCoeff,
		Gravity:   r3.Vec{Z: -GravityAccel},
		MaxAngVel: DefaultMaxAngVel,
		MaxLinVel: DefaultMaxLinVel,
	}
}

// HoverThrust is the collective thrust that cancels gravity.
func (v *Vehicle) HoverThrust() float64 {
	return v.Mass * GravityAccel
}

func (v *Vehicle) Validate() error {
	if v.Mass <= 0 {
		return fmt.Errorf("vehicle mass must be positive, got %g", v.Mass)
	}
	if v.Inertia.X <= 0 || v.Inertia.Y <= 0 || v.Inertia.Z <= 0 {
		return fmt.Errorf("vehicle inertia must be positive definite, got %v", v.Inertia)
	}
	if v.MaxAngVel <= 0 || v.MaxLinVel <= 0 {
		return fmt.Errorf("velocity bounds must be positive, got %g and %g", v.MaxAngVel, v.MaxLinVel)
	}
	return nil
}

func (v *Vehicle) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":        v.Mass,
		"inertia_x":   v.Inertia.X,
		"inertia_y":   v.Inertia.Y,
		"inertia_z":   v.Inertia.Z,
		"arm_length":  v.ArmLength,
		"drag_coeff":  v.DragCoeff,
		"gravity":     -v.Gravity.Z,
		"max_ang_vel": v.MaxAngVel,
		"max_lin_vel": v.MaxLinVel,
	}
}

func (v *Vehicle) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		v.Mass = value
	case "inertia_x":
		v.Inertia.X = value
	case "inertia_y":
		v.Inertia.Y = value
	case "inertia_z":
		v.Inertia.Z = value
	case "arm_length":
		v.ArmLength = value
	case "drag_coeff":
		v.DragCoeff = value
	case "gravity":
		v.Gravity = r3.Vec{Z: -value}
	case "max_ang_vel":
		v.MaxAngVel = value
	case "max_lin_vel":
		v.MaxLinVel = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
