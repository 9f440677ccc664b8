package control

import (
	"fmt"

	"github.com/san-kum/quadsim/internal/dynamo"
)

// PID holds altitude by commanding equal extra thrust on all four rotors.
// It reads the scaled vertical position from the observation at Index and
// divides by Scale to get metres. The output is split so that the mixer,
// after multiplying by ActionScale, yields u newtons of collective thrust
// and no torque.
type PID struct {
	Kp          float64
	Ki          float64
	Kd          float64
	Target      float64
	Index       int
	Scale       float64
	ActionScale float64
	integral    float64
	prevErr     float64
	prevT       float64
	first       bool
}

const (
	defaultAltitudeIndex = 11
	defaultPositionScale = 0.5
	defaultActionScale   = 2.0
	rotors               = 4
)

func NewPID(kp, ki, kd, target float64) *PID {
	return &PID{
		Kp:          kp,
		Ki:          ki,
		Kd:          kd,
		Target:      target,
		Index:       defaultAltitudeIndex,
		Scale:       defaultPositionScale,
		ActionScale: defaultActionScale,
		first:       true,
	}
}

func (p *PID) Compute(x dynamo.State, t float64) dynamo.Control {
	if len(x) <= p.Index {
		return make(dynamo.Control, rotors)
	}

	err := p.Target - x[p.Index]/p.Scale

	if p.first {
		p.prevErr = err
		p.prevT = t
		p.first = false
		return p.split(p.Kp * err)
	}

	dt := t - p.prevT
	if dt > 0 {
		p.integral += err * dt
		derivative := (err - p.prevErr) / dt

		u := p.Kp*err + p.Ki*p.integral + p.Kd*derivative

		p.prevErr = err
		p.prevT = t

		return p.split(u)
	}
	return p.split(p.Kp * err)
}

func (p *PID) split(u float64) dynamo.Control {
	per := u / (rotors * p.ActionScale)
	return dynamo.Control{per, per, per, per}
}

// Reset clears integral and derivative state
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.first = true
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp":     p.Kp,
		"Ki":     p.Ki,
		"Kd":     p.Kd,
		"Target": p.Target,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) error {
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	case "Target":
		p.Target = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
