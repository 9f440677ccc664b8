package control

import (
	"fmt"

	"github.com/san-kum/quadsim/internal/dynamo"
)

// Constant replays the same action every step.
type Constant struct {
	U dynamo.Control
}

func NewConstant(u []float64) *Constant {
	return &Constant{U: dynamo.Control(u).Clone()}
}

// SetControl replaces the action. The length must not change.
func (c *Constant) SetControl(u []float64) error {
	if len(u) != len(c.U) {
		return fmt.Errorf("%w: got %d components, want %d", dynamo.ErrDimensionMismatch, len(u), len(c.U))
	}
	copy(c.U, u)
	return nil
}

func (c *Constant) Compute(state dynamo.State, t float64) dynamo.Control {
	return c.U.Clone()
}
