package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xshey/ionthruster-test-automation/internal/automation"
	"github.com/0xshey/ionthruster-test-automation/internal/config"
	"github.com/0xshey/ionthruster-test-automation/internal/logging"
	"github.com/0xshey/ionthruster-test-automation/internal/metrics"
	"github.com/0xshey/ionthruster-test-automation/internal/storage"
	"github.com/0xshey/ionthruster-test-automation/internal/thruster"
	"github.com/0xshey/ionthruster-test-automation/internal/tui"
)

var (
	dataDir  string
	logLevel string
	logFile  string

	configFile  string
	preset      string
	duration    float64
	tickRate    float64
	seed        uint64
	coolingRate float64
	sampleEvery float64
	setFields   map[string]string
	noOutput    bool
	record      bool

	sweepMin   float64
	sweepMax   float64
	sweepSteps int
	sweepHold  float64

	ensembleRuns int

	plotFields []string
)

// main registers the commands and runs the root command. With no subcommand the
// live dashboard is shown.
func main() {
	rootCmd := &cobra.Command{
		Use:          "thrustersim",
		Short:        "ion thruster simulator",
		SilenceUsage: true,
		RunE:         runLive,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".thrustersim", "data directory for recorded runs")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the simulator headless and print a summary",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addSimFlags(runCmd)
	runCmd.Flags().Float64Var(&duration, "time", 5.0, "run duration in seconds")
	runCmd.Flags().Float64Var(&sampleEvery, "sample", 0.1, "telemetry sampling interval in seconds")
	runCmd.Flags().BoolVar(&noOutput, "no-output", false, "keep output disabled while running")
	runCmd.Flags().BoolVar(&record, "record", false, "save the telemetry to the data directory")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run the simulator with an interactive dashboard",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addSimFlags(liveCmd)
	addSimFlags(rootCmd)

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted scenario from a yaml file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	addSimFlags(scenarioCmd)
	scenarioCmd.Flags().BoolVar(&record, "record", false, "save the telemetry to the data directory")

	sweepCmd := &cobra.Command{
		Use:   "sweep [key]",
		Short: "sweep one configuration key across a range",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	addSimFlags(sweepCmd)
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 100, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of sweep points")
	sweepCmd.Flags().Float64Var(&sweepHold, "hold", 1.0, "seconds to hold each point")
	sweepCmd.Flags().Float64Var(&sampleEvery, "sample", 0.1, "telemetry sampling interval in seconds")

	ensembleCmd := &cobra.Command{
		Use:   "ensemble",
		Short: "record the same run across several noise seeds in parallel",
		Args:  cobra.NoArgs,
		RunE:  runEnsemble,
	}
	addSimFlags(ensembleCmd)
	ensembleCmd.Flags().IntVar(&ensembleRuns, "runs", 4, "number of seeds to run")
	ensembleCmd.Flags().Float64Var(&duration, "time", 5.0, "run duration in seconds")
	ensembleCmd.Flags().Float64Var(&sampleEvery, "sample", 0.1, "telemetry sampling interval in seconds")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot recorded telemetry",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&plotFields, "field", []string{"thrust", "chamber_temperature", "power_total"},
		"series to plot")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a recorded run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available thruster presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRESET\tIONISER V\tANODE V\tCATHODE V\tFLOW")
			for _, name := range config.ListPresets() {
				p := config.Presets[name]
				fmt.Fprintf(w, "%s\t%.1f\t%.1f\t%.1f\t%.2f\n",
					name, p.IoniserVoltage, p.GridAnodeVoltage, p.GridCathodeVoltage, p.PropellantFlowRate)
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, scenarioCmd, sweepCmd, ensembleCmd, listCmd, plotCmd, exportCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use a preset thruster configuration")
	cmd.Flags().Float64Var(&tickRate, "tick", config.DefaultTickRate, "seconds between ticks")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "noise seed (0 for non-deterministic)")
	cmd.Flags().Float64Var(&coolingRate, "cooling", config.DefaultCoolingRate, "temperature drop per tick with output off")
	cmd.Flags().StringToStringVar(&setFields, "set", nil, "configuration overrides, e.g. ioniser_voltage=100")
}

// buildConfig layers defaults, preset, config file and explicit flags, in that order.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if preset != "" && loaded.Thruster == (thruster.Config{}) {
			loaded.Thruster = cfg.Thruster
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("tick") || configFile == "" {
		cfg.TickRate = tickRate
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("cooling") {
		cfg.CoolingRate = coolingRate
	}
	if flags.Changed("log-level") || configFile == "" {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("no-output") {
		cfg.Output = !noOutput
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseSet(fields map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(fields))
	for key, raw := range fields {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("--set %s: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

// newSimulator builds the simulator for cfg and applies any --set overrides.
func newSimulator(cfg *config.Config, logger *zap.Logger) (*thruster.Simulator, error) {
	sim := cfg.NewSimulator(logger)
	overrides, err := parseSet(setFields)
	if err != nil {
		return nil, err
	}
	if err := sim.UpdateConfigFields(overrides); err != nil {
		return nil, fmt.Errorf("%w (valid keys: %v)", err, thruster.ConfigKeys())
	}
	return sim, nil
}

// setup resolves the configuration, then builds the logger and simulator from it.
func setup(cmd *cobra.Command) (*config.Config, *thruster.Simulator, *zap.Logger, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, logFile)
	if err != nil {
		return nil, nil, nil, err
	}
	sim, err := newSimulator(cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, nil, nil, err
	}
	return cfg, sim, logger, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, sim, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	sampler := automation.NewSampler(sim, seconds(sampleEvery), metrics.Defaults()...)

	fmt.Printf("running thruster for %.1fs...\n", duration)
	start := time.Now()

	sim.Start()
	if !cfg.Output {
		sim.OutputOff()
	}
	err = sampler.Record(ctx, seconds(duration))
	sim.Stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Printf("completed in %v (%d ticks)\n\n", time.Since(start).Round(time.Millisecond), sim.Ticks())
	printTelemetry(sim.ReadTelemetry())
	printMetrics(sampler.Metrics())

	if record {
		return saveRun(storage.RunMetadata{
			Name:        "run",
			Seed:        cfg.Seed,
			TickRate:    cfg.TickRate,
			Duration:    duration,
			CoolingRate: cfg.CoolingRate,
			Thruster:    sim.Config(),
			Metrics:     sampler.Metrics(),
		}, sampler.Samples())
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	// The dashboard owns the terminal, so logs only go to an explicit file.
	logger := zap.NewNop()
	if logFile != "" {
		if logger, err = logging.New(cfg.LogLevel, logFile); err != nil {
			return err
		}
		defer logger.Sync()
	}

	sim, err := newSimulator(cfg, logger)
	if err != nil {
		return err
	}
	defer sim.Stop()

	return tui.Run(sim, cfg.TickDuration())
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}

	cfg, sim, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("running scenario %q (%d steps)\n", scenario.Name, len(scenario.Steps))
	result, err := automation.Run(ctx, scenario, sim, logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSAMPLES\tTHRUST\tTEMP\tPOWER\tIMPULSE")
	for _, step := range result.Steps {
		fmt.Fprintf(w, "%s\t%d\t%.3f\t%.2f\t%.2f\t%.3f\n",
			step.Name,
			step.Samples,
			step.Final.Thrust,
			step.Final.ChamberTemperature,
			step.Final.PowerDraw.Total(),
			step.Metrics["impulse_ns"],
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println()
	printMetrics(result.Metrics)

	if record {
		name := scenario.Name
		if name == "" {
			name = "scenario"
		}
		var total float64
		for _, step := range scenario.Steps {
			total += step.Hold
		}
		return saveRun(storage.RunMetadata{
			Name:        name,
			Seed:        cfg.Seed,
			TickRate:    cfg.TickRate,
			Duration:    total,
			CoolingRate: cfg.CoolingRate,
			Thruster:    sim.Config(),
			Metrics:     result.Metrics,
		}, result.Samples)
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	_, sim, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	sweep := &automation.ParameterSweep{
		Key:         args[0],
		Min:         sweepMin,
		Max:         sweepMax,
		NumSteps:    sweepSteps,
		Hold:        sweepHold,
		SampleEvery: sampleEvery,
		Base:        sim.Config(),
	}
	results, err := automation.RunSweep(ctx, sweep, sim)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tTHRUST\tMEAN THRUST\tPEAK TEMP\tENERGY J\n", args[0])
	for _, r := range results {
		fmt.Fprintf(w, "%.3f\t%.3f\t%.3f\t%.2f\t%.2f\n",
			r.Value, r.Final.Thrust, r.MeanThrust, r.PeakTemp, r.EnergyUsedJ)
	}
	return w.Flush()
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	cfg, sim, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()
	base := sim.Config()

	build := func(seed uint64) *thruster.Simulator {
		member := *cfg
		member.Seed = seed
		s := member.NewSimulator(logger.With(zap.Uint64("seed", seed)))
		s.UpdateConfig(base.Update())
		return s
	}

	start := cfg.Seed
	if start == 0 {
		start = 1
	}
	e := automation.NewEnsemble(build, ensembleRuns, start)
	e.Duration = seconds(duration)
	e.Interval = seconds(sampleEvery)

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("running %d seeds for %.1fs...\n", ensembleRuns, duration)
	results, err := e.Run(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tMEAN\tSTDDEV\tMIN\tMAX")
	names := make([]string, 0, len(results[0].Metrics))
	for name := range results[0].Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := automation.Summarize(results, name)
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%.4f\n", name, s.Mean, s.StdDev, s.Min, s.Max)
	}
	return w.Flush()
}

func saveRun(meta storage.RunMetadata, samples []storage.Sample) error {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(meta, samples)
	if err != nil {
		return err
	}
	fmt.Printf("\nrun id: %s\n", runID)
	return nil
}

func printTelemetry(tel thruster.Telemetry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	cfg := tel.ConfigMap()
	for _, key := range thruster.ConfigKeys() {
		fmt.Fprintf(w, "%s\t%.3f\n", key, cfg[key])
	}
	fmt.Fprintf(w, "thrust\t%.3f N\n", tel.Thrust)
	fmt.Fprintf(w, "chamber_temperature\t%.2f °C\n", tel.ChamberTemperature)
	fmt.Fprintf(w, "environment_pressure\t%.2f kPa\n", tel.EnvironmentPressure)
	fmt.Fprintf(w, "power_draw\tioniser=%.2f W  accelerator_grid=%.2f W  controller=%.2f W\n",
		tel.PowerDraw.Ioniser, tel.PowerDraw.AcceleratorGrid, tel.PowerDraw.Controller)
	w.Flush()
}

func printMetrics(values map[string]float64) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, values[name])
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tDURATION\tTICK\tSAMPLES\tSEED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.3fs\t%d\t%d\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.TickRate,
			run.Samples,
			run.Seed,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}

	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("samples: %d\n\n", len(samples))

	for _, field := range plotFields {
		data, ok := storage.Series(samples, field)
		if !ok {
			return fmt.Errorf("unknown field %q (available: %v)", field, storage.SeriesNames())
		}

		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(field),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}

	return storage.ExportJSON(os.Stdout, *meta, samples)
}
