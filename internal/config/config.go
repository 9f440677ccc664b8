package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/san-kum/quadsim/internal/control"
	"github.com/san-kum/quadsim/internal/dynamo"
	"github.com/san-kum/quadsim/internal/env"
	"github.com/san-kum/quadsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt            = 0.01
	DefaultTimeLimit     = 15.0
	DefaultDiscount      = 0.99
	DefaultTerminalValue = 1.5
	DefaultActionScale   = 2.0
	DefaultEpisodes      = 1
	DefaultKp            = 2.0
	DefaultKi            = 0.1
	DefaultKd            = 0.5
)

type Config struct {
	Variant       string        `yaml:"variant"`
	Dt            float64       `yaml:"dt"`
	TimeLimit     float64       `yaml:"time_limit"`
	Discount      float64       `yaml:"discount"`
	TerminalValue float64       `yaml:"terminal_value"`
	ActionScale   float64       `yaml:"action_scale"`
	Seed          uint64        `yaml:"seed"`
	Termination   string        `yaml:"termination"`
	Vehicle       VehicleConfig `yaml:"vehicle"`
	Cable         CableConfig   `yaml:"cable"`
	Policy        PolicyConfig  `yaml:"policy"`
	Episodes      int           `yaml:"episodes"`
	Workers       int           `yaml:"workers"`
}

type VehicleConfig struct {
	Mass      float64    `yaml:"mass"`
	Inertia   [3]float64 `yaml:"inertia,flow"`
	ArmLength float64    `yaml:"arm_length"`
	DragCoeff float64    `yaml:"drag_coeff"`
	MaxAngVel float64    `yaml:"max_ang_vel"`
	MaxLinVel float64    `yaml:"max_lin_vel"`
}

type CableConfig struct {
	Length   float64 `yaml:"length"`
	LoadMass float64 `yaml:"load_mass"`
	Damping  float64 `yaml:"damping"`
}

// PolicyConfig selects the controller a run uses: "zero", "constant"
// (Action on every step) or "hover" (altitude PID towards Target).
type PolicyConfig struct {
	Name   string    `yaml:"name"`
	Action []float64 `yaml:"action,flow,omitempty"`
	Kp     float64   `yaml:"kp"`
	Ki     float64   `yaml:"ki"`
	Kd     float64   `yaml:"kd"`
	Target float64   `yaml:"target"`
}

func DefaultConfig() *Config {
	v := physics.NewQuadrotor()
	c := physics.NewCable()
	return &Config{
		Variant:       env.Plain.String(),
		Dt:            DefaultDt,
		TimeLimit:     DefaultTimeLimit,
		Discount:      DefaultDiscount,
		TerminalValue: DefaultTerminalValue,
		ActionScale:   DefaultActionScale,
		Termination:   env.TerminationDefault.String(),
		Vehicle: VehicleConfig{
			Mass:      v.Mass,
			Inertia:   [3]float64{v.Inertia.X, v.Inertia.Y, v.Inertia.Z},
			ArmLength: v.ArmLength,
			DragCoeff: v.DragCoeff,
			MaxAngVel: v.MaxAngVel,
			MaxLinVel: v.MaxLinVel,
		},
		Cable: CableConfig{
			Length:   c.Length,
			LoadMass: c.LoadMass,
			Damping:  c.Damping,
		},
		Policy: PolicyConfig{
			Name: "zero",
			Kp:   DefaultKp,
			Ki:   DefaultKi,
			Kd:   DefaultKd,
		},
		Episodes: DefaultEpisodes,
	}
}

// Load reads a YAML file over the defaults, so a file only needs the
// fields it changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Policy.Action = append([]float64(nil), c.Policy.Action...)
	return &out
}

func (c *Config) Validate() error {
	var errs []error
	if _, err := env.ParseVariant(c.Variant); err != nil {
		errs = append(errs, err)
	}
	if _, err := env.ParseTermination(c.Termination); err != nil {
		errs = append(errs, err)
	}
	if c.Episodes < 1 {
		errs = append(errs, fmt.Errorf("episodes must be at least 1, got %d", c.Episodes))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be non-negative, got %d", c.Workers))
	}
	if _, err := c.NewPolicy(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		ec, _ := c.EnvConfig()
		if err := ec.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EnvConfig converts the file representation into an environment config.
func (c *Config) EnvConfig() (env.Config, error) {
	variant, err := env.ParseVariant(c.Variant)
	if err != nil {
		return env.Config{}, err
	}
	term, err := env.ParseTermination(c.Termination)
	if err != nil {
		return env.Config{}, err
	}

	ec := env.DefaultConfig(variant)
	ec.Dt = c.Dt
	ec.TimeLimit = c.TimeLimit
	ec.Discount = c.Discount
	ec.TerminalValue = c.TerminalValue
	ec.ActionScale = c.ActionScale
	ec.Seed = c.Seed
	ec.Termination = term

	ec.Vehicle.Mass = c.Vehicle.Mass
	ec.Vehicle.Inertia = r3.Vec{X: c.Vehicle.Inertia[0], Y: c.Vehicle.Inertia[1], Z: c.Vehicle.Inertia[2]}
	ec.Vehicle.ArmLength = c.Vehicle.ArmLength
	ec.Vehicle.DragCoeff = c.Vehicle.DragCoeff
	ec.Vehicle.MaxAngVel = c.Vehicle.MaxAngVel
	ec.Vehicle.MaxLinVel = c.Vehicle.MaxLinVel

	ec.Cable.Length = c.Cable.Length
	ec.Cable.LoadMass = c.Cable.LoadMass
	ec.Cable.Damping = c.Cable.Damping
	return ec, nil
}

// NewPolicy returns a constructor so that each episode gets its own
// controller state.
func (c *Config) NewPolicy() (func() dynamo.Controller, error) {
	p := c.Policy
	switch strings.ToLower(p.Name) {
	case "", "zero", "none":
		return func() dynamo.Controller { return control.NewNone(env.ActionDim) }, nil
	case "constant":
		if len(p.Action) != env.ActionDim {
			return nil, fmt.Errorf("%w: constant policy needs %d actions, got %d",
				dynamo.ErrDimensionMismatch, env.ActionDim, len(p.Action))
		}
		action := append([]float64(nil), p.Action...)
		return func() dynamo.Controller { return control.NewConstant(action) }, nil
	case "hover", "pid":
		return func() dynamo.Controller { return control.NewPID(p.Kp, p.Ki, p.Kd, p.Target) }, nil
	default:
		return nil, fmt.Errorf("unknown policy %q", p.Name)
	}
}
