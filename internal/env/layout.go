package env

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r1"
)

// Variant selects the vehicle configuration an Env simulates.
type Variant int

const (
	Plain Variant = iota
	WithReference
	SlungLoad
)

var variantNames = map[Variant]string{
	Plain:         "quadrotor",
	WithReference: "reference",
	SlungLoad:     "slungload",
}

func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

func ParseVariant(s string) (Variant, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for v, name := range variantNames {
		if name == s {
			return v, nil
		}
	}
	switch s {
	case "plain":
		return Plain, nil
	case "slung", "slung-load":
		return SlungLoad, nil
	case "withreference", "with-reference":
		return WithReference, nil
	}
	return Plain, fmt.Errorf("unknown variant %q", s)
}

const (
	PositionScale = 0.5
	AngVelScale   = 0.15
	LinVelScale   = 0.5

	rotationBound = 2.0
	positionBound = 3.0
	angVelBound   = 5.0
	linVelBound   = 6.0
	loadAngle     = 3 * math.Pi / 8
	minCableRatio = 0.3

	// boundSlack keeps rounding in the cable projection from reading as a
	// violation of the cable length bound.
	boundSlack = 1e-9
)

// Layout describes where each block sits in the observation vector of a
// variant. Offsets of absent blocks are -1.
type Layout struct {
	Variant     Variant
	Dim         int
	Rotation    int
	Position    int
	Load        int
	AngVel      int
	LinVel      int
	LoadVel     int
	RefRotation int
	RefAngVel   int
	RefLinVel   int
	Bounds      []r1.Interval
}

// NewLayout builds the observation layout and its box constraints. The
// cable length only matters for SlungLoad.
func NewLayout(v Variant, cableLength float64) Layout {
	l := Layout{
		Variant:     v,
		Rotation:    0,
		Position:    9,
		Load:        -1,
		LoadVel:     -1,
		RefRotation: -1,
		RefAngVel:   -1,
		RefLinVel:   -1,
	}

	switch v {
	case SlungLoad:
		l.Load = 12
		l.AngVel = 15
		l.LinVel = 18
		l.LoadVel = 21
		l.Dim = 24
	case WithReference:
		l.AngVel = 12
		l.LinVel = 15
		l.RefRotation = 18
		l.RefAngVel = 27
		l.RefLinVel = 30
		l.Dim = 33
	default:
		l.AngVel = 12
		l.LinVel = 15
		l.Dim = 18
	}

	l.Bounds = make([]r1.Interval, l.Dim)
	l.fill(l.Rotation, 9, rotationBound)
	l.fill(l.Position, 3, positionBound)
	l.fill(l.AngVel, 3, angVelBound)
	l.fill(l.LinVel, 3, linVelBound)
	if l.Load >= 0 {
		l.fill(l.Load, 2, loadAngle)
		l.Bounds[l.Load+2] = r1.Interval{Min: minCableRatio * cableLength, Max: cableLength}
		l.fill(l.LoadVel, 3, linVelBound)
	}
	if l.RefRotation >= 0 {
		l.fill(l.RefRotation, 9, rotationBound)
		l.fill(l.RefAngVel, 3, angVelBound)
		l.fill(l.RefLinVel, 3, linVelBound)
	}
	return l
}

func (l *Layout) fill(offset, n int, bound float64) {
	for i := offset; i < offset+n; i++ {
		l.Bounds[i] = r1.Interval{Min: -bound, Max: bound}
	}
}

// Violates reports whether any component of obs lies outside its bound.
// NaN components always violate.
func (l Layout) Violates(obs []float64) bool {
	if len(obs) != l.Dim {
		return true
	}
	for i, x := range obs {
		b := l.Bounds[i]
		if !(x >= b.Min-boundSlack && x <= b.Max+boundSlack) {
			return true
		}
	}
	return false
}

// TerminationPolicy decides whether Step reports a terminal state.
type TerminationPolicy int

const (
	// TerminationDefault resolves to TerminateOnBounds for SlungLoad and
	// TerminateNever otherwise.
	TerminationDefault TerminationPolicy = iota
	TerminateNever
	TerminateOnBounds
)

func (p TerminationPolicy) String() string {
	switch p {
	case TerminationDefault:
		return "default"
	case TerminateNever:
		return "never"
	case TerminateOnBounds:
		return "bounds"
	default:
		return fmt.Sprintf("TerminationPolicy(%d)", int(p))
	}
}

func ParseTermination(s string) (TerminationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return TerminationDefault, nil
	case "never":
		return TerminateNever, nil
	case "bounds", "on-bounds":
		return TerminateOnBounds, nil
	}
	return TerminationDefault, fmt.Errorf("unknown termination policy %q", s)
}

func (p TerminationPolicy) resolve(v Variant) TerminationPolicy {
	if p != TerminationDefault {
		return p
	}
	if v == SlungLoad {
		return TerminateOnBounds
	}
	return TerminateNever
}
