package metrics

import (
	"github.com/san-kum/quadsim/internal/dynamo"
	"github.com/san-kum/quadsim/internal/env"
)

// Stability is the fraction of observations inside the box constraints
// of the layout, whatever the termination policy.
type Stability struct {
	name       string
	layout     env.Layout
	violations int
	samples    int
}

func NewStability(layout env.Layout) *Stability {
	return &Stability{
		name:   "stability",
		layout: layout,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(x dynamo.State, u dynamo.Control, t float64) {
	s.samples++
	if s.layout.Violates(x) {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
