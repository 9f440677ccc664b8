package dynamo

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"normal", State{1.0, 2.0, 3.0}, true},
		{"zeros", State{0.0, 0.0}, true},
		{"with NaN", State{1.0, math.NaN()}, false},
		{"with +Inf", State{1.0, math.Inf(1)}, false},
		{"with -Inf", State{1.0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestClone(t *testing.T) {
	s := State{1, 2, 3}
	c := s.Clone()
	c[0] = 99
	if s[0] != 1 {
		t.Errorf("State.Clone shares storage: %v", s)
	}

	u := Control{0.5, -0.5}
	v := u.Clone()
	v[1] = 7
	if u[1] != -0.5 {
		t.Errorf("Control.Clone shares storage: %v", u)
	}
}

func TestSimulationErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("step failed: %w", &SimulationError{Step: 3, Time: 0.03, Wrapped: ErrUnstable})
	if !errors.Is(err, ErrUnstable) {
		t.Error("errors.Is did not reach the wrapped sentinel")
	}
	var se *SimulationError
	if !errors.As(err, &se) || se.Step != 3 {
		t.Errorf("errors.As = %+v", se)
	}
	if se.Error() != ErrUnstable.Error() {
		t.Errorf("Error() = %q", se.Error())
	}
}
