package env

import (
	"github.com/san-kum/quadsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r3"
)

// Frame is a snapshot handed to a Renderer after every step.
type Frame struct {
	Variant   Variant
	Time      float64
	Step      int
	Vehicle   physics.Body
	Load      physics.Load
	Reference physics.Body
	Target    r3.Vec
	Cable     physics.CableState
	Cost      float64
}

// Renderer receives frames synchronously from the stepping goroutine.
// Implementations that draw elsewhere must copy or forward the frame.
type Renderer interface {
	Draw(Frame)
}

// Divergence is the full state dump reported when the attitude of the
// vehicle or of the reference vehicle becomes NaN.
type Divergence struct {
	Variant   Variant
	Step      int
	Time      float64
	Body      physics.Body
	Load      physics.Load
	Reference physics.Body
	Wrench    physics.Wrench
	Action    []float64
}

type DiagnosticSink interface {
	Diverged(Divergence)
}

type nopSink struct{}

func (nopSink) Diverged(Divergence) {}

type Option func(*Env)

func WithRenderer(r Renderer) Option {
	return func(e *Env) {
		e.renderer = r
	}
}

func WithDiagnostics(d DiagnosticSink) Option {
	return func(e *Env) {
		if d == nil {
			d = nopSink{}
		}
		e.diag = d
	}
}

// WithTermination overrides the policy from the Config.
func WithTermination(p TerminationPolicy) Option {
	return func(e *Env) {
		e.termination = p.resolve(e.cfg.Variant)
	}
}
