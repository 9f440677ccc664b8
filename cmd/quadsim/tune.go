package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/san-kum/quadsim/internal/config"
	"github.com/san-kum/quadsim/internal/diag"
	"github.com/san-kum/quadsim/internal/env"
	"github.com/san-kum/quadsim/internal/optim"
	"github.com/san-kum/quadsim/internal/rollout"
	"github.com/spf13/cobra"
)

var (
	kpGrid    []float64
	kiGrid    []float64
	kdGrid    []float64
	tuneTop   int
	tuneWrite string
)

// tuneEpisodes is the smallest ensemble a grid point is scored on unless
// --episodes says otherwise.
const tuneEpisodes = 4

func newTuneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tune [variant]",
		Short: "grid-search hover pid gains by mean ensemble return",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTune,
	}
	addEpisodeFlags(cmd)
	cmd.Flags().IntVar(&episodes, "episodes", tuneEpisodes, "episodes per grid point")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (0 = one per episode)")
	cmd.Flags().Float64SliceVar(&kpGrid, "kp-grid", []float64{1, 2, 4}, "kp values to try")
	cmd.Flags().Float64SliceVar(&kiGrid, "ki-grid", []float64{0, 0.1}, "ki values to try")
	cmd.Flags().Float64SliceVar(&kdGrid, "kd-grid", []float64{0.25, 0.5, 1}, "kd values to try")
	cmd.Flags().IntVar(&tuneTop, "top", 5, "number of grid points to print")
	cmd.Flags().StringVar(&tuneWrite, "write", "", "write the best configuration to this yaml file")
	return cmd
}

// tuneObjective scores a gain assignment by the mean return of an
// ensemble flown with the hover policy. Returns are costs, so lower wins.
func tuneObjective(base *config.Config, opts ...env.Option) optim.Objective {
	return func(ctx context.Context, params map[string]float64) (float64, error) {
		cfg := withGains(base, params)
		ec, err := cfg.EnvConfig()
		if err != nil {
			return 0, err
		}
		newPolicy, err := cfg.NewPolicy()
		if err != nil {
			return 0, err
		}

		ens := rollout.NewEnsemble(cfg.Workers, newPolicy)
		factory := func(s uint64) (rollout.Environment, error) {
			c := ec
			c.Seed = s
			return env.New(c, opts...)
		}
		eps, err := ens.Run(ctx, factory, cfg.Episodes, cfg.Seed)
		if err != nil {
			return 0, err
		}
		return rollout.Summarize(eps).MeanReturn, nil
	}
}

func withGains(base *config.Config, params map[string]float64) *config.Config {
	cfg := base.Clone()
	cfg.Policy.Name = "hover"
	if v, ok := params["Kp"]; ok {
		cfg.Policy.Kp = v
	}
	if v, ok := params["Ki"]; ok {
		cfg.Policy.Ki = v
	}
	if v, ok := params["Kd"]; ok {
		cfg.Policy.Kd = v
	}
	return cfg
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("episodes") {
		cfg.Episodes = max(cfg.Episodes, tuneEpisodes)
	}

	grid := optim.NewGridSearch([]string{"Kp", "Ki", "Kd"}, [][]float64{kpGrid, kiGrid, kdGrid})
	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("tuning %s hover gains over %d grid points x %d episodes...\n", cfg.Variant, grid.Size(), cfg.Episodes)
	start := time.Now()
	best, score, trials, err := grid.Search(ctx, tuneObjective(cfg, env.WithDiagnostics(diag.Discard())))
	if err != nil {
		return err
	}
	fmt.Printf("completed in %v\n\n", time.Since(start))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "kp\tki\tkd\tmean return")
	for i, t := range optim.Ranked(trials) {
		if i >= tuneTop {
			break
		}
		fmt.Fprintf(w, "%.4g\t%.4g\t%.4g\t%.6f\n", t.Params["Kp"], t.Params["Ki"], t.Params["Kd"], t.Score)
	}
	for _, t := range trials {
		if t.Err != nil {
			fmt.Fprintf(w, "%.4g\t%.4g\t%.4g\tfailed: %v\n", t.Params["Kp"], t.Params["Ki"], t.Params["Kd"], t.Err)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nbest: kp=%.4g ki=%.4g kd=%.4g (return %.6f)\n", best["Kp"], best["Ki"], best["Kd"], score)
	if tuneWrite != "" {
		if err := config.Save(tuneWrite, withGains(cfg, best)); err != nil {
			return err
		}
		fmt.Printf("saved to %s\n", tuneWrite)
	}
	return nil
}
