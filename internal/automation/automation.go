package automation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/san-kum/quadsim/internal/config"
	"github.com/san-kum/quadsim/internal/dynamo"
	"github.com/san-kum/quadsim/internal/env"
	"github.com/san-kum/quadsim/internal/rollout"
	"gopkg.in/yaml.v3"
)

// Scenario defines a scripted sequence of ensembles.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is a single ensemble in a scenario. Preset and Params are
// applied over the defaults of Variant, in that order.
type ScenarioStep struct {
	Name     string             `yaml:"name"`
	Variant  string             `yaml:"variant"`
	Preset   string             `yaml:"preset"`
	Policy   string             `yaml:"policy"`
	Episodes int                `yaml:"episodes"`
	Seed     uint64             `yaml:"seed"`
	Params   map[string]float64 `yaml:"params"`
	Save     bool               `yaml:"save"`
}

// StepResult is the outcome of one scenario step or sweep point.
type StepResult struct {
	Name    string
	Config  *config.Config
	Summary rollout.Summary
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", scenario.Name)
	}
	return &scenario, nil
}

// Runner executes ensembles for scenarios and sweeps.
type Runner struct {
	Options    []env.Option
	Logger     *log.Logger
	NewMetrics func(env.Config) func() []dynamo.Metric
	// Save is called for every episode of a step marked Save.
	Save func(cfg *config.Config, ep *rollout.Episode) error
}

func (r *Runner) logf(msg string, kv ...any) {
	if r.Logger != nil {
		r.Logger.Info(msg, kv...)
	}
}

// Config builds the configuration of one step.
func (s ScenarioStep) Config() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if s.Variant != "" {
		v, err := env.ParseVariant(s.Variant)
		if err != nil {
			return nil, err
		}
		cfg.Variant = v.String()
	}
	if s.Preset != "" {
		p := config.GetPreset(cfg.Variant, s.Preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset %q for %s", s.Preset, cfg.Variant)
		}
		cfg = p
	}
	if s.Policy != "" {
		cfg.Policy.Name = s.Policy
	}
	if s.Episodes > 0 {
		cfg.Episodes = s.Episodes
	}
	if s.Seed > 0 {
		cfg.Seed = s.Seed
	}

	names := make([]string, 0, len(s.Params))
	for k := range s.Params {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if err := SetParam(cfg, k, s.Params[k]); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Validate()
}

// RunScenario executes all steps in a scenario. A failing step stops the
// scenario; the results of the steps before it are returned.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step %d", i+1)
		}
		r.logf("running scenario step", "step", i+1, "of", len(scenario.Steps), "name", name)

		cfg, err := step.Config()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		summary, err := r.runEnsemble(ctx, cfg, step.Save)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		results = append(results, StepResult{Name: name, Config: cfg, Summary: summary})
	}

	return results, nil
}

// ParameterSweep runs an ensemble at evenly spaced values of one
// parameter.
type ParameterSweep struct {
	Base      *config.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
}

// RunSweep executes a parameter sweep
func (r *Runner) RunSweep(ctx context.Context, sweep *ParameterSweep) ([]StepResult, error) {
	if sweep.NumSteps < 2 {
		return nil, fmt.Errorf("%w: sweep needs at least 2 steps, got %d", dynamo.ErrParameterBounds, sweep.NumSteps)
	}
	if _, ok := params[sweep.ParamName]; !ok {
		return nil, fmt.Errorf("unknown parameter %q (available: %v)", sweep.ParamName, ParamNames())
	}

	results := make([]StepResult, 0, sweep.NumSteps)
	paramStep := (sweep.ParamMax - sweep.ParamMin) / float64(sweep.NumSteps-1)

	for i := 0; i < sweep.NumSteps; i++ {
		paramVal := sweep.ParamMin + float64(i)*paramStep
		cfg := sweep.Base.Clone()
		if err := SetParam(cfg, sweep.ParamName, paramVal); err != nil {
			return results, err
		}
		if err := cfg.Validate(); err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.ParamName, paramVal, err)
		}

		summary, err := r.runEnsemble(ctx, cfg, false)
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.ParamName, paramVal, err)
		}
		results = append(results, StepResult{
			Name:    fmt.Sprintf("%s=%g", sweep.ParamName, paramVal),
			Config:  cfg,
			Summary: summary,
		})
		r.logf("sweep", "step", i+1, "of", sweep.NumSteps, sweep.ParamName, paramVal, "return", summary.MeanReturn)
	}

	return results, nil
}

func (r *Runner) runEnsemble(ctx context.Context, cfg *config.Config, save bool) (rollout.Summary, error) {
	ec, err := cfg.EnvConfig()
	if err != nil {
		return rollout.Summary{}, err
	}
	newPolicy, err := cfg.NewPolicy()
	if err != nil {
		return rollout.Summary{}, err
	}

	ens := rollout.NewEnsemble(cfg.Workers, newPolicy)
	if r.NewMetrics != nil {
		ens.NewMetrics = r.NewMetrics(ec)
	}
	factory := func(s uint64) (rollout.Environment, error) {
		c := ec
		c.Seed = s
		return env.New(c, r.Options...)
	}
	eps, err := ens.Run(ctx, factory, cfg.Episodes, cfg.Seed)
	if err != nil {
		return rollout.Summary{}, err
	}

	if save && r.Save != nil {
		var errs []error
		for _, ep := range eps {
			errs = append(errs, r.Save(cfg, ep))
		}
		if err := errors.Join(errs...); err != nil {
			return rollout.Summary{}, err
		}
	}
	return rollout.Summarize(eps), nil
}
