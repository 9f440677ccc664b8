// Package diag reports numerical trouble from the simulator through a
// structured charmbracelet/log logger.
package diag

import (
	"io"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/san-kum/quadsim/internal/env"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sink implements env.DiagnosticSink. One Sink may be shared by the
// environments of an ensemble.
type Sink struct {
	logger   *log.Logger
	diverged atomic.Int64
}

func New(w io.Writer, level log.Level) *Sink {
	return &Sink{logger: log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          "quadsim",
		ReportTimestamp: true,
	})}
}

// NewJSON logs one JSON object per event.
func NewJSON(w io.Writer) *Sink {
	return &Sink{logger: log.NewWithOptions(w, log.Options{
		Level:     log.InfoLevel,
		Formatter: log.JSONFormatter,
	})}
}

func Discard() *Sink {
	return New(io.Discard, log.FatalLevel)
}

func (s *Sink) Logger() *log.Logger { return s.logger }

// Diverged dumps the full state at the step the attitude became NaN.
func (s *Sink) Diverged(d env.Divergence) {
	s.diverged.Add(1)
	kv := []any{
		"variant", d.Variant.String(),
		"step", d.Step,
		"t", d.Time,
		"orientation", []float64{d.Body.Orientation.Real, d.Body.Orientation.Imag, d.Body.Orientation.Jmag, d.Body.Orientation.Kmag},
		"position", vec(d.Body.Position),
		"ang_vel", vec(d.Body.AngVel),
		"lin_vel", vec(d.Body.LinVel),
		"lin_acc", vec(d.Body.LinAcc),
		"load", vec(d.Load.Position),
		"load_vel", vec(d.Load.Velocity),
		"torque", vec(d.Wrench.Torque),
		"thrust", d.Wrench.Thrust,
		"action", d.Action,
	}
	if d.Variant == env.WithReference {
		kv = append(kv,
			"ref_orientation", []float64{d.Reference.Orientation.Real, d.Reference.Orientation.Imag, d.Reference.Orientation.Jmag, d.Reference.Orientation.Kmag},
			"ref_ang_vel", vec(d.Reference.AngVel),
			"ref_lin_vel", vec(d.Reference.LinVel),
		)
	}
	s.logger.Error("simulation diverged", kv...)
}

// Divergences counts the events reported so far.
func (s *Sink) Divergences() int64 { return s.diverged.Load() }

func vec(v r3.Vec) []float64 {
	return []float64{v.X, v.Y, v.Z}
}
