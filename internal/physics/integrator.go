package physics

import (
	"errors"
	"fmt"

	"github.com/san-kum/quadsim/internal/rotation"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Integrator advances a Body with the semi-implicit Euler scheme.
type Integrator struct {
	vehicle    *Vehicle
	inertia    *mat.SymDense
	inertiaInv *mat.SymDense
}

func NewIntegrator(v *Vehicle) (*Integrator, error) {
	if v == nil {
		return nil, errors.New("physics: nil vehicle")
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}

	inertia := mat.NewSymDense(3, []float64{
		v.Inertia.X, 0, 0,
		0, v.Inertia.Y, 0,
		0, 0, v.Inertia.Z,
	})
	var chol mat.Cholesky
	if ok := chol.Factorize(inertia); !ok {
		return nil, fmt.Errorf("physics: inertia %v is not positive definite", v.Inertia)
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, fmt.Errorf("physics: invert inertia: %w", err)
	}

	return &Integrator{vehicle: v, inertia: inertia, inertiaInv: &inv}, nil
}

func (in *Integrator) Vehicle() *Vehicle {
	return in.vehicle
}

// Accelerations returns the inertial linear and angular acceleration of b
// under the body-frame wrench w and an inertial external force ext.
func (in *Integrator) Accelerations(b *Body, w Wrench, ext r3.Vec) (lin, ang r3.Vec) {
	R := b.Rot()
	m := in.vehicle.Mass

	lin = r3.Scale(1/m, R.MulVec(r3.Vec{Z: w.Thrust}))
	lin = r3.Add(lin, in.vehicle.Gravity)
	lin = r3.Add(lin, r3.Scale(1/m, ext))

	wB := R.T().MulVec(b.AngVel)
	Iw := symMulVec(in.inertia, wB)
	rhs := r3.Sub(w.Torque, r3.Cross(wB, Iw))
	ang = R.MulVec(symMulVec(in.inertiaInv, rhs))
	return lin, ang
}

// Advance applies one step of the given accelerations. The attitude update
// uses the already updated angular velocity; clamping happens after the
// position update so the clamped velocity first acts on the next step.
func (in *Integrator) Advance(b *Body, lin, ang r3.Vec, dt float64) {
	b.LinAcc = lin
	b.LinVel = r3.Add(b.LinVel, r3.Scale(dt, lin))
	b.AngVel = r3.Add(b.AngVel, r3.Scale(dt, ang))
	b.Orientation = rotation.Normalize(rotation.BoxplusI(b.Orientation, r3.Scale(dt, b.AngVel)))
	b.Position = r3.Add(b.Position, r3.Scale(dt, b.LinVel))

	b.AngVel = clampVec(b.AngVel, in.vehicle.MaxAngVel)
	b.LinVel = clampVec(b.LinVel, in.vehicle.MaxLinVel)
}

// Step computes accelerations and advances b in one call.
func (in *Integrator) Step(b *Body, w Wrench, ext r3.Vec, dt float64) {
	lin, ang := in.Accelerations(b, w, ext)
	in.Advance(b, lin, ang, dt)
}

func symMulVec(m *mat.SymDense, v r3.Vec) r3.Vec {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return r3.Vec{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}
