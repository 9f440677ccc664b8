package main

import (
	"fmt"

	"github.com/san-kum/quadsim/internal/analysis"
	"github.com/san-kum/quadsim/internal/env"
	"github.com/san-kum/quadsim/internal/physics"
	"github.com/san-kum/quadsim/internal/rollout"
	"github.com/san-kum/quadsim/internal/storage"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
)

func loadRun(runID string) (*storage.RunMetadata, *rollout.Episode, env.Layout, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, env.Layout{}, err
	}
	ep, err := st.LoadEpisode(runID)
	if err != nil {
		return nil, nil, env.Layout{}, err
	}
	v, err := env.ParseVariant(meta.Variant)
	if err != nil {
		return nil, nil, env.Layout{}, err
	}
	return meta, ep, env.NewLayout(v, physics.DefaultCableLength), nil
}

// analyzeRun reports the dominant frequency of the altitude and, for a
// slung load, of the swing angle against the cable's pendulum frequency.
func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, ep, layout, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if len(ep.Observations) < 4 {
		return fmt.Errorf("run %s has too few samples", meta.ID)
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("samples: %d at %.4fs\n\n", len(ep.Observations), meta.Dt)

	altitude := column(ep.Observations, layout.Position+2, 1/env.PositionScale)
	report := func(name string, xs []float64) {
		f, err := analysis.DominantFrequency(xs, meta.Dt)
		if err != nil {
			fmt.Printf("%-10s %v\n", name, err)
			return
		}
		period := analysis.MeanPeriod(analysis.Crossings(ep.Times, xs, stat.Mean(xs, nil)))
		fmt.Printf("%-10s dominant %.4f Hz  mean period %.4fs\n", name, f, period)
	}
	report("altitude", altitude)

	if layout.Load >= 0 {
		swing := column(ep.Observations, layout.Load, 1)
		report("swing", swing)
		length := stat.Mean(column(ep.Observations, layout.Load+2, 1), nil)
		fmt.Printf("%-10s pendulum %.4f Hz for a %.3fm cable\n", "", analysis.SwingFrequency(length, physics.GravityAccel), length)
	}
	return nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	meta, ep, layout, err := loadRun(args[0])
	if err != nil {
		return err
	}
	xi, yi := xAxis, yAxis
	if xi < 0 {
		xi = layout.Position + 2
	}
	if yi < 0 {
		yi = layout.LinVel + 2
	}
	if xi >= layout.Dim || yi >= layout.Dim {
		return fmt.Errorf("axis out of range: observation has %d entries", layout.Dim)
	}

	pts := analysis.Portrait(column(ep.Observations, xi, 1), column(ep.Observations, yi, 1))
	fmt.Printf("run: %s  x: obs[%d]  y: obs[%d]\n\n", meta.ID, xi, yi)
	fmt.Print(analysis.PortraitToASCII(pts, 80, 24))
	return nil
}
