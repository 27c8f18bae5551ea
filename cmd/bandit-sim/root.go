package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/n0madic/go-bernoulli-bandits/config"
	"github.com/n0madic/go-bernoulli-bandits/report"
	"github.com/n0madic/go-bernoulli-bandits/simulation"
)

type rootOptions struct {
	configPath  string
	arms        int
	maxWinRatio float64
	winRates    []float64
	trials      int
	seed        uint64
	runs        int
	workers     int
	lazy        bool

	noColor     bool
	oracle      bool
	chartPath   string
	metricsPath string
	agentPath   string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "bandit-sim",
		Short: "Simulate Thompson Sampling on Bernoulli slot machines",
		Long: `bandit-sim generates slot machines with hidden win ratios, lets a Thompson
Sampling agent play them for a number of trials and prints how often each
machine was chosen and what it paid.

Settings are resolved from built-in defaults, then the --config YAML file,
then BANDIT_* environment variables, then command line flags.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "YAML configuration file")
	f.IntVar(&o.arms, "arms", config.DefaultNumArms, "number of machines")
	f.Float64Var(&o.maxWinRatio, "max-win-ratio", config.DefaultMaxWinRatio, "upper bound for generated win ratios")
	f.Float64SliceVar(&o.winRates, "win-rates", nil, "fixed win ratios, one per machine (overrides --arms)")
	f.IntVarP(&o.trials, "trials", "n", config.DefaultNumTrials, "number of trials per run")
	f.Uint64Var(&o.seed, "seed", 0, "random seed (default: time based)")
	f.IntVar(&o.runs, "runs", config.DefaultRuns, "number of independent runs")
	f.IntVar(&o.workers, "workers", 0, "concurrent runs in a batch (0 = one per CPU)")
	f.BoolVar(&o.lazy, "lazy", false, "draw outcomes on demand instead of precomputing the table")

	f.BoolVar(&o.noColor, "no-color", false, "disable colored output")
	f.BoolVar(&o.oracle, "oracle", false, "also print the outcome table totals of every machine")
	f.StringVar(&o.chartPath, "chart", "", "write an HTML chart of cumulative plays to this file")
	f.StringVar(&o.metricsPath, "metrics-file", "", "write Prometheus metrics in text format to this file")
	f.StringVar(&o.agentPath, "save-agent", "", "save the trained agent to this file")
	f.StringVar(&o.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	return cmd
}

// resolveConfig layers explicitly set flags over the file and environment.
func (o *rootOptions) resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}

	f := cmd.Flags()
	if f.Changed("arms") {
		cfg.NumArms = o.arms
		if !f.Changed("win-rates") {
			cfg.WinRates = nil
		}
	}
	if f.Changed("max-win-ratio") {
		cfg.MaxWinRatio = o.maxWinRatio
	}
	if f.Changed("win-rates") {
		cfg.WinRates = o.winRates
	}
	if f.Changed("trials") {
		cfg.NumTrials = o.trials
	}
	if f.Changed("seed") {
		seed := o.seed
		cfg.Seed = &seed
	}
	if f.Changed("runs") {
		cfg.Runs = o.runs
	}
	if f.Changed("workers") {
		cfg.Workers = o.workers
	}
	if f.Changed("lazy") {
		cfg.LazyOutcomes = o.lazy
	}

	return cfg, cfg.Validate()
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func (o *rootOptions) run(cmd *cobra.Command) error {
	logger, err := newLogger(cmd.ErrOrStderr(), o.logLevel)
	if err != nil {
		return err
	}

	cfg, err := o.resolveConfig(cmd)
	if err != nil {
		return err
	}

	simOpts := []simulation.Option{simulation.WithLogger(logger)}
	var metrics *simulation.Metrics
	if o.metricsPath != "" {
		metrics = simulation.NewMetrics()
		simOpts = append(simOpts, simulation.WithMetrics(metrics))
	}

	sim, err := simulation.New(cfg, simOpts...)
	if err != nil {
		return err
	}
	logger.Info("configuration resolved",
		"arms", cfg.NumArms,
		"trials", cfg.NumTrials,
		"runs", cfg.Runs,
		"seed", sim.BaseSeed())

	var results []*simulation.Result
	if cfg.Runs == 1 {
		res, err := sim.Run()
		if err != nil {
			return err
		}
		results = []*simulation.Result{res}
	} else {
		results, err = sim.RunBatch(cmd.Context())
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	ropts := report.Options{NoColor: o.noColor, Oracle: o.oracle}
	if err := report.Write(out, results[0], ropts); err != nil {
		return err
	}
	if len(results) > 1 {
		if err := report.WriteBatch(out, simulation.Summarize(results), ropts); err != nil {
			return err
		}
	}

	return o.writeArtifacts(logger, results[0], metrics)
}

// writeArtifacts stores the optional files. Chart and agent describe the first run.
func (o *rootOptions) writeArtifacts(logger *slog.Logger, res *simulation.Result, metrics *simulation.Metrics) error {
	if o.chartPath != "" {
		if err := writeFile(o.chartPath, func(w io.Writer) error {
			return report.RenderChart(w, res)
		}); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
		logger.Info("chart written", "path", o.chartPath)
	}

	if o.agentPath != "" {
		if err := writeFile(o.agentPath, res.Agent.Save); err != nil {
			return fmt.Errorf("save agent: %w", err)
		}
		logger.Info("agent saved", "path", o.agentPath)
	}

	if metrics != nil {
		if err := metrics.WriteToTextfile(o.metricsPath); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		logger.Info("metrics written", "path", o.metricsPath)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
