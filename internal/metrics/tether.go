package metrics

import (
	"math"

	"github.com/san-kum/quadsim/internal/dynamo"
	"github.com/san-kum/quadsim/internal/env"
)

// TetherStretch is the largest observed cable extension beyond its
// nominal length. It stays at zero for layouts without a load.
type TetherStretch struct {
	name    string
	index   int
	length  float64
	stretch float64
}

func NewTetherStretch(layout env.Layout, length float64) *TetherStretch {
	index := -1
	if layout.Load >= 0 {
		index = layout.Load + 2
	}
	return &TetherStretch{
		name:   "tether_stretch",
		index:  index,
		length: length,
	}
}

func (m *TetherStretch) Name() string { return m.name }

func (m *TetherStretch) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if m.index < 0 || m.index >= len(x) {
		return
	}
	m.stretch = math.Max(m.stretch, x[m.index]-m.length)
}

func (m *TetherStretch) Value() float64 { return m.stretch }

func (m *TetherStretch) Reset() { m.stretch = 0 }

// SlackFraction is the share of observations in which the cable is
// shorter than its length by more than tol.
type SlackFraction struct {
	name    string
	index   int
	length  float64
	tol     float64
	slack   int
	samples int
}

func NewSlackFraction(layout env.Layout, length, tol float64) *SlackFraction {
	index := -1
	if layout.Load >= 0 {
		index = layout.Load + 2
	}
	return &SlackFraction{name: "slack_fraction", index: index, length: length, tol: tol}
}

func (m *SlackFraction) Name() string { return m.name }

func (m *SlackFraction) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if m.index < 0 || m.index >= len(x) {
		return
	}
	m.samples++
	if x[m.index] < m.length-m.tol {
		m.slack++
	}
}

func (m *SlackFraction) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return float64(m.slack) / float64(m.samples)
}

func (m *SlackFraction) Reset() {
	m.slack = 0
	m.samples = 0
}
