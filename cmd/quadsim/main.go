package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/quadsim/internal/config"
	"github.com/san-kum/quadsim/internal/diag"
	"github.com/san-kum/quadsim/internal/dynamo"
	"github.com/san-kum/quadsim/internal/env"
	"github.com/san-kum/quadsim/internal/export"
	"github.com/san-kum/quadsim/internal/metrics"
	"github.com/san-kum/quadsim/internal/rollout"
	"github.com/san-kum/quadsim/internal/storage"
	"github.com/san-kum/quadsim/internal/telemetry"
	"github.com/san-kum/quadsim/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir     string
	logFormat   string
	logLevel    string
	dt          float64
	duration    float64
	discount    float64
	seed        uint64
	policy      string
	kp          float64
	ki          float64
	kd          float64
	target      float64
	termination string
	configFile  string
	preset      string
	episodes    int
	workers     int
	save        bool
	outPath     string
	maxPlots    int
	xAxis       int
	yAxis       int
	mavlinkAddr string

	exportFormat string
	exportView   string
)

// slackTolerance is the distance below the cable length at which the
// load counts as slack for the slack-fraction metric.
const slackTolerance = 1e-3

// telemetryPeriod is the MAVLink publishing period in simulated seconds.
const telemetryPeriod = 0.02

const svgSize = 480

func main() {
	rootCmd := &cobra.Command{
		Use:           "quadsim",
		Short:         "quadrotor and slung-load simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunInteractive(env.WithDiagnostics(diag.Discard()))
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".quadsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "diagnostic log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "diagnostic log level")

	runCmd := &cobra.Command{
		Use:   "run [variant]",
		Short: "run one episode and save it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEpisode,
	}
	addEpisodeFlags(runCmd)
	runCmd.Flags().StringVar(&mavlinkAddr, "mavlink", "", "stream MAVLink telemetry to this UDP address (e.g. 127.0.0.1:14550)")

	ensembleCmd := &cobra.Command{
		Use:   "ensemble [variant]",
		Short: "run episodes with consecutive seeds in parallel",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEnsemble,
	}
	addEpisodeFlags(ensembleCmd)
	ensembleCmd.Flags().IntVar(&episodes, "episodes", config.DefaultEpisodes, "number of episodes")
	ensembleCmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (0 = one per episode)")
	ensembleCmd.Flags().BoolVar(&save, "save", false, "save every episode")

	liveCmd := &cobra.Command{
		Use:   "live [variant]",
		Short: "fly an episode in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addEpisodeFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot position and cost of a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&maxPlots, "max", 4, "number of charts")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a saved run as JSON or an SVG trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file, - for stdout")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format (json, svg)")
	exportCmd.Flags().StringVar(&exportView, "view", "top", "svg projection (top, side)")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "phase portrait of two observation columns",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().IntVar(&xAxis, "x-axis", -1, "observation index for the x-axis (default altitude)")
	phaseCmd.Flags().IntVar(&yAxis, "y-axis", -1, "observation index for the y-axis (default vertical velocity)")

	deleteCmd := &cobra.Command{
		Use:   "delete [run_id]",
		Short: "delete a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storage.New(dataDir).Delete(args[0])
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [variant]",
		Short: "list presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "check the open-loop simulator against closed-form motion",
		RunE:  runValidate,
	}
	validateCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")

	rootCmd.AddCommand(runCmd, ensembleCmd, liveCmd, listCmd, plotCmd, analyzeCmd, phaseCmd, exportCmd, deleteCmd, presetsCmd, validateCmd,
		newTuneCmd(), newSweepCmd(), newScenarioCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addEpisodeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "control period")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultTimeLimit, "episode time limit")
	cmd.Flags().Float64Var(&discount, "discount", config.DefaultDiscount, "per-step discount")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "initial state seed")
	cmd.Flags().StringVar(&policy, "policy", "zero", "policy (zero, constant, hover)")
	cmd.Flags().Float64Var(&kp, "kp", config.DefaultKp, "hover pid kp")
	cmd.Flags().Float64Var(&ki, "ki", config.DefaultKi, "hover pid ki")
	cmd.Flags().Float64Var(&kd, "kd", config.DefaultKd, "hover pid kd")
	cmd.Flags().Float64Var(&target, "target", 0, "hover pid altitude target")
	cmd.Flags().StringVar(&termination, "termination", "default", "termination policy (default, never, bounds)")
}

// loadConfig layers preset, config file and explicitly set flags over
// the defaults, in that order.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		v, err := env.ParseVariant(args[0])
		if err != nil {
			return nil, err
		}
		cfg.Variant = v.String()
	}

	if preset != "" {
		p := config.GetPreset(cfg.Variant, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(cfg.Variant))
		}
		cfg = p
	}

	if configFile != "" {
		fileCfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if len(args) > 0 {
			fileCfg.Variant = cfg.Variant
		}
		cfg = fileCfg
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.TimeLimit = duration
	}
	if flags.Changed("discount") {
		cfg.Discount = discount
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("policy") {
		cfg.Policy.Name = policy
	}
	if flags.Changed("kp") {
		cfg.Policy.Kp = kp
	}
	if flags.Changed("ki") {
		cfg.Policy.Ki = ki
	}
	if flags.Changed("kd") {
		cfg.Policy.Kd = kd
	}
	if flags.Changed("target") {
		cfg.Policy.Target = target
	}
	if flags.Changed("termination") {
		cfg.Termination = termination
	}
	if flags.Lookup("episodes") != nil && flags.Changed("episodes") {
		cfg.Episodes = episodes
	}
	if flags.Lookup("workers") != nil && flags.Changed("workers") {
		cfg.Workers = workers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newSink() (*diag.Sink, error) {
	switch strings.ToLower(logFormat) {
	case "json":
		return diag.NewJSON(os.Stderr), nil
	case "text", "":
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return nil, err
		}
		return diag.New(os.Stderr, level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", logFormat)
	}
}

// episodeMetrics returns a constructor for the metrics recorded with every
// episode of the given environment configuration.
func episodeMetrics(ec env.Config) func() []dynamo.Metric {
	layout := env.NewLayout(ec.Variant, ec.Cable.Length)
	energy := metrics.FlightEnergy(ec.Vehicle, layout)
	return func() []dynamo.Metric {
		ms := []dynamo.Metric{
			metrics.NewControlEffort(),
			metrics.NewStability(layout),
			metrics.NewEnergy(energy),
			metrics.NewEnergyDrift(energy),
		}
		if ec.Variant == env.SlungLoad {
			ms = append(ms,
				metrics.NewTetherStretch(layout, ec.Cable.Length),
				metrics.NewSlackFraction(layout, ec.Cable.Length, slackTolerance))
		}
		return ms
	}
}

func runInfo(cfg *config.Config) storage.RunInfo {
	return storage.RunInfo{
		Variant:   cfg.Variant,
		Policy:    cfg.Policy.Name,
		Dt:        cfg.Dt,
		TimeLimit: cfg.TimeLimit,
		Discount:  cfg.Discount,
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runEpisode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	ec, err := cfg.EnvConfig()
	if err != nil {
		return err
	}
	newPolicy, err := cfg.NewPolicy()
	if err != nil {
		return err
	}
	sink, err := newSink()
	if err != nil {
		return err
	}

	opts := []env.Option{env.WithDiagnostics(sink)}
	var pub *telemetry.Publisher
	if mavlinkAddr != "" {
		pub, err = telemetry.Dial(mavlinkAddr)
		if err != nil {
			return fmt.Errorf("mavlink: %w", err)
		}
		defer pub.Close()
		pub.Every = max(1, int(math.Round(telemetryPeriod/ec.Dt)))
		opts = append(opts, env.WithRenderer(pub))
	}

	e, err := env.New(ec, opts...)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	runner := rollout.NewRunner()
	for _, m := range episodeMetrics(ec)() {
		runner.AddMetric(m)
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("running %s episode...\n", cfg.Variant)
	start := time.Now()
	ep, err := runner.Run(ctx, e, newPolicy())
	if ep == nil {
		return err
	}
	ep.Seed = cfg.Seed
	if err != nil {
		sink.Logger().Error("episode stopped early", "err", err, "steps", ep.Steps)
	}

	runID, saveErr := st.Save(runInfo(cfg), ep)
	if saveErr != nil {
		return saveErr
	}

	fmt.Printf("completed in %v\n", time.Since(start))
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d  terminated: %v  saturated: %d\n", ep.Steps, ep.Terminated, e.Saturations())
	fmt.Printf("return: %.6f\n", ep.Return)
	if pub != nil {
		sent, failed := pub.Stats()
		fmt.Printf("mavlink: %d messages sent, %d failed\n", sent, failed)
	}
	printMetrics(ep.Metrics)
	return err
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	ec, err := cfg.EnvConfig()
	if err != nil {
		return err
	}
	newPolicy, err := cfg.NewPolicy()
	if err != nil {
		return err
	}
	sink, err := newSink()
	if err != nil {
		return err
	}

	ens := rollout.NewEnsemble(cfg.Workers, newPolicy)
	ens.NewMetrics = episodeMetrics(ec)
	factory := func(s uint64) (rollout.Environment, error) {
		c := ec
		c.Seed = s
		return env.New(c, env.WithDiagnostics(sink))
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("running %d %s episodes...\n", cfg.Episodes, cfg.Variant)
	start := time.Now()
	eps, runErr := ens.Run(ctx, factory, cfg.Episodes, cfg.Seed)

	var done []*rollout.Episode
	for _, ep := range eps {
		if ep != nil {
			done = append(done, ep)
		}
	}
	if len(done) == 0 {
		return runErr
	}

	if save {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		for _, ep := range done {
			if _, err := st.Save(runInfo(cfg), ep); err != nil {
				return err
			}
		}
	}

	s := rollout.Summarize(done)
	fmt.Printf("completed in %v\n\n", time.Since(start))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "episodes\t%d\n", s.Episodes)
	fmt.Fprintf(w, "terminated\t%d\n", s.Terminated)
	fmt.Fprintf(w, "return\t%.6f ± %.6f\n", s.MeanReturn, s.StdReturn)
	fmt.Fprintf(w, "best\t%.6f\n", s.Best)
	fmt.Fprintf(w, "worst\t%.6f\n", s.Worst)
	fmt.Fprintf(w, "mean steps\t%.1f\n", s.MeanSteps)
	fmt.Fprintf(w, "divergences\t%d\n", sink.Divergences())
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

// runLive logs nothing: the full-screen view owns the terminal and shows
// divergence itself.
func runLive(cmd *cobra.Command, args []string) error {
	quiet := env.WithDiagnostics(diag.Discard())
	if len(args) == 0 && preset == "" && configFile == "" {
		return viz.RunInteractive(quiet)
	}
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	ec, err := cfg.EnvConfig()
	if err != nil {
		return err
	}
	newPolicy, err := cfg.NewPolicy()
	if err != nil {
		return err
	}
	m, err := viz.NewLive(ec, newPolicy, quiet)
	if err != nil {
		return err
	}
	return viz.Run(m)
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVARIANT\tTIME\tSEED\tSTEPS\tRETURN\tTERM\tPOLICY")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.4f\t%v\t%s\n",
			run.ID,
			run.Variant,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Seed,
			run.Steps,
			run.Return,
			run.Terminated,
			run.Policy,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, ep, layout, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if len(ep.Observations) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("variant: %s\n", meta.Variant)
	fmt.Printf("samples: %d\n\n", len(ep.Observations))

	series := []struct {
		caption string
		data    []float64
	}{
		{"position x (m)", column(ep.Observations, layout.Position, 1/env.PositionScale)},
		{"position y (m)", column(ep.Observations, layout.Position+1, 1/env.PositionScale)},
		{"position z (m)", column(ep.Observations, layout.Position+2, 1/env.PositionScale)},
		{"step cost", ep.Costs},
	}
	for i, s := range series {
		if i >= maxPlots || len(s.data) == 0 {
			break
		}
		fmt.Println(asciigraph.Plot(s.data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(s.caption),
		))
		fmt.Println()
	}
	return nil
}

func column(xs []dynamo.State, idx int, scale float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if idx < len(x) {
			out = append(out, x[idx]*scale)
		}
	}
	return out
}

func exportRun(cmd *cobra.Command, args []string) error {
	meta, ep, layout, err := loadRun(args[0])
	if err != nil {
		return err
	}

	switch strings.ToLower(exportFormat) {
	case "json", "":
		info := storage.RunInfo{
			Variant:   meta.Variant,
			Policy:    meta.Policy,
			Dt:        meta.Dt,
			TimeLimit: meta.TimeLimit,
			Discount:  meta.Discount,
		}
		return storage.ExportFile(outPath, info, ep)
	case "svg":
		svg, err := trajectorySVG(ep, layout, exportView)
		if err != nil {
			return err
		}
		if outPath == "-" {
			_, err = os.Stdout.WriteString(svg)
			return err
		}
		return os.WriteFile(outPath, []byte(svg), 0644)
	default:
		return fmt.Errorf("unknown export format %q", exportFormat)
	}
}

// trajectorySVG draws the vehicle path of an episode from above (x/y) or
// from the side (x/z).
func trajectorySVG(ep *rollout.Episode, layout env.Layout, view string) (string, error) {
	vert := 1
	switch strings.ToLower(view) {
	case "top", "":
	case "side":
		vert = 2
	default:
		return "", fmt.Errorf("unknown view %q (top, side)", view)
	}
	path := export.Path{
		Label:  fmt.Sprintf("%s view, %d steps", view, ep.Steps),
		Stroke: "#00ffff",
		X:      column(ep.Observations, layout.Position, 1/env.PositionScale),
		Y:      column(ep.Observations, layout.Position+vert, 1/env.PositionScale),
	}
	return export.TrajectoryToSVG([]export.Path{path}, svgSize, svgSize)
}

func listPresets(cmd *cobra.Command, args []string) error {
	var variants []string
	if len(args) > 0 {
		v, err := env.ParseVariant(args[0])
		if err != nil {
			return err
		}
		variants = []string{v.String()}
	} else {
		for v := range config.Presets {
			variants = append(variants, v)
		}
		sort.Strings(variants)
	}
	for _, v := range variants {
		fmt.Printf("presets for %s:\n", v)
		for _, p := range config.ListPresets(v) {
			fmt.Printf("  %s\n", p)
		}
	}
	return nil
}
