package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/san-kum/quadsim/internal/config"
	"github.com/san-kum/quadsim/internal/env"
	"github.com/san-kum/quadsim/internal/mixer"
	"github.com/san-kum/quadsim/internal/physics"
	"github.com/san-kum/quadsim/internal/rotation"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
)

// validateSteps keeps free fall below the linear velocity clamp.
const validateSteps = 40

type check struct {
	name    string
	variant env.Variant
	// thrust is the total rotor thrust as a multiple of the vehicle weight.
	thrust float64
	verify func(e *env.Env, ec env.Config) (float64, float64)
}

var checks = []check{
	{
		name:    "free fall",
		variant: env.Plain,
		verify: func(e *env.Env, _ env.Config) (float64, float64) {
			return math.Abs(e.LinearVelocity().Z + physics.GravityAccel*e.Time()), 1e-6
		},
	},
	{
		name:    "hover",
		variant: env.Plain,
		thrust:  1,
		verify: func(e *env.Env, _ env.Config) (float64, float64) {
			return math.Max(r3.Norm(e.LinearVelocity()), r3.Norm(e.Position())), 1e-6
		},
	},
	{
		name:    "climb",
		variant: env.Plain,
		thrust:  1.44,
		verify: func(e *env.Env, _ env.Config) (float64, float64) {
			want := 0.44 * physics.GravityAccel * e.Time()
			return math.Abs(e.LinearVelocity().Z-want) / want, 1e-3
		},
	},
	{
		name:    "slung hover",
		variant: env.SlungLoad,
		thrust:  1,
		verify: func(e *env.Env, ec env.Config) (float64, float64) {
			if e.CableState() != physics.Taut {
				return math.Inf(1), 1e-6
			}
			stretch := math.Abs(r3.Norm(r3.Sub(e.LoadPosition(), e.Position())) - ec.Cable.Length)
			return math.Max(stretch, r3.Norm(e.Position())), 1e-6
		},
	},
}

// runValidate drives the open-loop simulator from rest with constant
// rotor commands and compares against closed-form motion.
func runValidate(cmd *cobra.Command, args []string) error {
	base := config.DefaultConfig()
	if configFile != "" {
		c, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		base = c
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tVARIANT\tERROR\tTOLERANCE\tRESULT")
	var failed []error
	for _, c := range checks {
		errVal, tol, err := runCheck(base, c)
		result := "PASS"
		switch {
		case err != nil:
			result = "ERROR"
			failed = append(failed, fmt.Errorf("%s: %w", c.name, err))
		case !(errVal <= tol):
			result = "FAIL"
			failed = append(failed, fmt.Errorf("%s: error %.3g exceeds %.3g", c.name, errVal, tol))
		}
		fmt.Fprintf(w, "%s\t%s\t%.3g\t%.3g\t%s\n", c.name, c.variant, errVal, tol, result)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return errors.Join(failed...)
}

func runCheck(base *config.Config, c check) (float64, float64, error) {
	cfg := base.Clone()
	cfg.Variant = c.variant.String()
	ec, err := cfg.EnvConfig()
	if err != nil {
		return 0, 0, err
	}
	e, err := env.New(ec)
	if err != nil {
		return 0, 0, err
	}
	if err := e.InitTo(restObservation(e.Layout(), ec.Cable.Length)); err != nil {
		return 0, 0, err
	}

	mass := ec.Vehicle.Mass
	if c.variant == env.SlungLoad {
		mass += ec.Cable.LoadMass
	}
	// f = ThrustCoeff·cmd² per rotor
	rotor := math.Sqrt(c.thrust * mass * physics.GravityAccel / (mixer.Rotors * mixer.ThrustCoeff))
	cmdVec := make([]float64, mixer.Rotors)
	for i := range cmdVec {
		cmdVec[i] = rotor
	}

	for i := 0; i < validateSteps; i++ {
		if err := e.StepSim(cmdVec); err != nil {
			return 0, 0, err
		}
	}
	errVal, tol := c.verify(e, ec)
	return errVal, tol, nil
}

// restObservation encodes a level vehicle at the origin with the load, if
// any, hanging straight down on a taut cable.
func restObservation(l env.Layout, cableLength float64) []float64 {
	obs := make([]float64, l.Dim)
	copy(obs[l.Rotation:], rotation.Identity().Columns())
	if l.Load >= 0 {
		obs[l.Load+2] = cableLength
	}
	if l.RefRotation >= 0 {
		copy(obs[l.RefRotation:], rotation.Identity().Columns())
	}
	return obs
}
