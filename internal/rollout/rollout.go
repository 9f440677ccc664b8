// Package rollout runs a controller against an environment for whole
// episodes and collects discounted costs, and fans episodes out over
// goroutines with one environment per worker.
package rollout

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/quadsim/internal/dynamo"
)

// Environment is the part of env.Env a rollout needs.
type Environment interface {
	Reset() ([]float64, error)
	Step(action []float64) ([]float64, bool, float64, error)
	Discount() float64
	TerminalValue() float64
	TimeLimit() float64
	Timestep() float64
}

type Observer interface {
	OnStep(x dynamo.State, u dynamo.Control, t float64)
}

// Episode holds one trajectory. Observations and Times have one more
// entry than Actions and Costs.
type Episode struct {
	Seed         uint64
	Times        []float64
	Observations []dynamo.State
	Actions      []dynamo.Control
	Costs        []float64
	Return       float64
	Terminated   bool
	Steps        int
	Metrics      map[string]float64
}

type Runner struct {
	metrics   []dynamo.Metric
	observers []Observer
}

func NewRunner() *Runner {
	return &Runner{
		metrics:   make([]dynamo.Metric, 0),
		observers: make([]Observer, 0),
	}
}

func (r *Runner) AddMetric(m dynamo.Metric) { r.metrics = append(r.metrics, m) }
func (r *Runner) AddObserver(o Observer)    { r.observers = append(r.observers, o) }

// Run resets env and steps it with policy until it reports a terminal
// state or the time limit is reached. A terminal state adds the
// discounted terminal value to the return. On error the partial episode
// is returned together with the error.
func (r *Runner) Run(ctx context.Context, env Environment, policy dynamo.Controller) (*Episode, error) {
	dt := env.Timestep()
	if dt <= 0 {
		return nil, fmt.Errorf("%w: timestep %g", dynamo.ErrParameterBounds, dt)
	}
	steps := int(math.Round(env.TimeLimit() / dt))

	obs, err := env.Reset()
	if err != nil {
		return nil, err
	}

	ep := &Episode{
		Times:        make([]float64, 0, steps+1),
		Observations: make([]dynamo.State, 0, steps+1),
		Actions:      make([]dynamo.Control, 0, steps),
		Costs:        make([]float64, 0, steps),
		Metrics:      make(map[string]float64),
	}
	for _, m := range r.metrics {
		m.Reset()
	}

	x := dynamo.State(obs)
	t := 0.0
	discount := env.Discount()
	weight := 1.0

	ep.Observations = append(ep.Observations, x.Clone())
	ep.Times = append(ep.Times, t)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			r.collect(ep)
			return ep, fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err())
		default:
		}

		u := policy.Compute(x, t)

		for _, m := range r.metrics {
			m.Observe(x, u, t)
		}
		for _, o := range r.observers {
			o.OnStep(x, u, t)
		}

		next, terminated, cost, err := env.Step(u)
		if err != nil {
			r.collect(ep)
			return ep, err
		}

		x = dynamo.State(next)
		t += dt
		ep.Steps++
		ep.Return += weight * cost
		weight *= discount

		ep.Observations = append(ep.Observations, x.Clone())
		ep.Actions = append(ep.Actions, u.Clone())
		ep.Costs = append(ep.Costs, cost)
		ep.Times = append(ep.Times, t)

		if terminated {
			ep.Terminated = true
			ep.Return += weight * env.TerminalValue()
			break
		}
	}

	r.collect(ep)
	return ep, nil
}

func (r *Runner) collect(ep *Episode) {
	for _, m := range r.metrics {
		ep.Metrics[m.Name()] = m.Value()
	}
}
