package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/san-kum/quadsim/internal/automation"
	"github.com/san-kum/quadsim/internal/config"
	"github.com/san-kum/quadsim/internal/env"
	"github.com/san-kum/quadsim/internal/rollout"
	"github.com/san-kum/quadsim/internal/storage"
	"github.com/spf13/cobra"
)

var (
	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep [variant]",
		Short: "run an ensemble at evenly spaced values of one parameter",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addEpisodeFlags(cmd)
	cmd.Flags().IntVar(&episodes, "episodes", config.DefaultEpisodes, "episodes per sweep value")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (0 = one per episode)")
	cmd.Flags().StringVar(&sweepParam, "param", "cable.length", "parameter to sweep")
	cmd.Flags().Float64Var(&sweepMin, "min", 0.5, "first value")
	cmd.Flags().Float64Var(&sweepMax, "max", 1.5, "last value")
	cmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of values")
	return cmd
}

func newScenarioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenario [file]",
		Short: "run the ensembles scripted in a yaml scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
}

func newAutomationRunner() (*automation.Runner, error) {
	sink, err := newSink()
	if err != nil {
		return nil, err
	}
	st := storage.New(dataDir)
	return &automation.Runner{
		Options:    []env.Option{env.WithDiagnostics(sink)},
		Logger:     sink.Logger(),
		NewMetrics: episodeMetrics,
		Save: func(cfg *config.Config, ep *rollout.Episode) error {
			if err := st.Init(); err != nil {
				return err
			}
			_, err := st.Save(runInfo(cfg), ep)
			return err
		},
	}, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	r, err := newAutomationRunner()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	results, err := r.RunSweep(ctx, &automation.ParameterSweep{
		Base:      cfg,
		ParamName: sweepParam,
		ParamMin:  sweepMin,
		ParamMax:  sweepMax,
		NumSteps:  sweepSteps,
	})
	printResults(os.Stdout, results)
	return err
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	r, err := newAutomationRunner()
	if err != nil {
		return err
	}

	fmt.Printf("scenario: %s\n", scenario.Name)
	if scenario.Description != "" {
		fmt.Println(scenario.Description)
	}
	fmt.Println()

	ctx, cancel := signalContext()
	defer cancel()
	results, err := r.RunScenario(ctx, scenario)
	printResults(os.Stdout, results)
	return err
}

func printResults(out io.Writer, results []automation.StepResult) {
	if len(results) == 0 {
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "step\tvariant\tepisodes\tterminated\treturn\tstd")
	for _, r := range results {
		s := r.Summary
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.6f\t%.6f\n", r.Name, r.Config.Variant, s.Episodes, s.Terminated, s.MeanReturn, s.StdReturn)
	}
	w.Flush()
}
