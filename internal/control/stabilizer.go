package control

import (
	"math"

	"github.com/san-kum/quadsim/internal/rotation"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	DefaultAttitudeKp = -0.2
	DefaultAttitudeKd = -0.06
	DefaultYawScale   = 0.15

	// below this rotation angle only the rate term is applied
	minStabilizerAngle = 1e-6
)

// Stabilizer computes a corrective body torque from the attitude error
// relative to identity and the body angular rate.
type Stabilizer struct {
	Kp       float64
	Kd       float64
	YawScale float64
}

func DefaultStabilizer() *Stabilizer {
	return &Stabilizer{
		Kp:       DefaultAttitudeKp,
		Kd:       DefaultAttitudeKd,
		YawScale: DefaultYawScale,
	}
}

// Torque returns the body-frame feedback torque for orientation q with
// rotation matrix R and inertial angular velocity wI.
func (s *Stabilizer) Torque(q quat.Number, R rotation.Mat, wI r3.Vec) r3.Vec {
	Rt := R.T()
	torque := r3.Scale(s.Kd, Rt.MulVec(wI))

	angle := rotation.Angle(q)
	if angle > minStabilizerAngle {
		axis := r3.Scale(1/math.Sin(angle), Rt.MulVec(rotation.Vec(q)))
		torque = r3.Add(torque, r3.Scale(s.Kp*angle, axis))
	}
	torque.Z *= s.YawScale
	return torque
}

func (s *Stabilizer) GetParams() map[string]float64 {
	return map[string]float64{
		"kp":        s.Kp,
		"kd":        s.Kd,
		"yaw_scale": s.YawScale,
	}
}
