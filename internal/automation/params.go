package automation

import (
	"fmt"
	"sort"

	"github.com/san-kum/quadsim/internal/config"
)

// params maps a sweepable parameter name to its field in a Config.
var params = map[string]func(c *config.Config) *float64{
	"dt":                  func(c *config.Config) *float64 { return &c.Dt },
	"time_limit":          func(c *config.Config) *float64 { return &c.TimeLimit },
	"discount":            func(c *config.Config) *float64 { return &c.Discount },
	"terminal_value":      func(c *config.Config) *float64 { return &c.TerminalValue },
	"action_scale":        func(c *config.Config) *float64 { return &c.ActionScale },
	"vehicle.mass":        func(c *config.Config) *float64 { return &c.Vehicle.Mass },
	"vehicle.arm_length":  func(c *config.Config) *float64 { return &c.Vehicle.ArmLength },
	"vehicle.drag_coeff":  func(c *config.Config) *float64 { return &c.Vehicle.DragCoeff },
	"vehicle.max_ang_vel": func(c *config.Config) *float64 { return &c.Vehicle.MaxAngVel },
	"vehicle.max_lin_vel": func(c *config.Config) *float64 { return &c.Vehicle.MaxLinVel },
	"cable.length":        func(c *config.Config) *float64 { return &c.Cable.Length },
	"cable.load_mass":     func(c *config.Config) *float64 { return &c.Cable.LoadMass },
	"cable.damping":       func(c *config.Config) *float64 { return &c.Cable.Damping },
	"policy.kp":           func(c *config.Config) *float64 { return &c.Policy.Kp },
	"policy.ki":           func(c *config.Config) *float64 { return &c.Policy.Ki },
	"policy.kd":           func(c *config.Config) *float64 { return &c.Policy.Kd },
	"policy.target":       func(c *config.Config) *float64 { return &c.Policy.Target },
}

// SetParam sets a named scalar field of cfg.
func SetParam(cfg *config.Config, name string, value float64) error {
	field, ok := params[name]
	if !ok {
		return fmt.Errorf("unknown parameter %q (available: %v)", name, ParamNames())
	}
	*field(cfg) = value
	return nil
}

func ParamNames() []string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
