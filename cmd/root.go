package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/market-sim/sim"
	"github.com/inference-sim/market-sim/sim/report"
	"github.com/inference-sim/market-sim/sim/trace"
	"github.com/inference-sim/market-sim/sim/workload"
)

var (
	// CLI flags shared by run, sweep and validate
	configPath string // YAML market spec
	logLevel   string // Log verbosity level
	maxTime    int64  // Safety bound on simulated time (in ticks), overrides YAML
	seed       int64  // Seed for generated consumers, overrides YAML
	tieBreak   string // Tie-break policy for equally efficient instances, overrides YAML

	// CLI flags for run
	resultsPath  string // JSON results output path
	traceLevel   string // Purchase trace verbosity
	timelinePath string // SVG timeline output path
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "market-sim",
	Short: "Discrete-event simulator for compute marketplaces",
}

// setupLogging parses and applies the --log flag.
func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadSpec reads the market spec and applies CLI overrides. YAML values win
// unless the flag was set explicitly.
func loadSpec(cmd *cobra.Command) (*workload.MarketSpec, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	spec, err := workload.LoadMarketSpec(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("max-time") {
		spec.MaxTime = maxTime
	}
	if cmd.Flags().Changed("seed") {
		spec.Seed = seed
	}
	if cmd.Flags().Changed("tie-break") {
		spec.TieBreak = tieBreak
	}
	return spec, spec.Validate()
}

// runOptions collects the outputs requested for a single run.
type runOptions struct {
	TraceLevel   string
	ResultsPath  string
	TimelinePath string
}

// runMarket builds and runs one marketplace from spec.
func runMarket(spec *workload.MarketSpec, pt *trace.PurchaseTrace) (*sim.Marketplace, error) {
	cfg, err := spec.MarketConfig(pt)
	if err != nil {
		return nil, err
	}
	m, err := sim.NewMarketplace(cfg)
	if err != nil {
		return nil, err
	}
	if err := m.Start(); err != nil {
		return nil, err
	}
	if err := m.CheckConservation(); err != nil {
		return nil, fmt.Errorf("ledger out of balance: %w", err)
	}
	return m, nil
}

// validateMarket builds the marketplace without running it, so every
// load-time check the run would apply is reported.
func validateMarket(spec *workload.MarketSpec) error {
	cfg, err := spec.MarketConfig(nil)
	if err != nil {
		return err
	}
	_, err = sim.NewMarketplace(cfg)
	return err
}

// executeRun runs spec and writes every requested output.
func executeRun(spec *workload.MarketSpec, opts runOptions, stdout io.Writer) error {
	if !trace.IsValidTraceLevel(opts.TraceLevel) {
		return fmt.Errorf("unknown trace level %q; valid: none, purchases", opts.TraceLevel)
	}
	level := trace.TraceLevel(opts.TraceLevel)
	if opts.TimelinePath != "" {
		level = trace.TraceLevelPurchases
	}
	pt := trace.NewPurchaseTrace(trace.TraceConfig{Level: level})

	m, err := runMarket(spec, pt)
	if err != nil {
		return err
	}

	metrics := sim.CollectMetrics(m)
	metrics.Print(stdout)

	if pt != nil {
		summary := trace.Summarize(pt)
		fmt.Fprintln(stdout, "\n--- Purchase Trace ---")
		fmt.Fprintf(stdout, "Purchases            : %d (%d capped by lease)\n", summary.TotalPurchases, summary.CappedPurchases)
		fmt.Fprintf(stdout, "Instances Used       : %d\n", summary.UniqueInstances)
		fmt.Fprintf(stdout, "Mean Decision Margin : %.6f\n", summary.MeanMargin)
	}

	if opts.ResultsPath != "" {
		if err := metrics.SaveResults(opts.ResultsPath); err != nil {
			return err
		}
		logrus.Infof("Results written to %s", opts.ResultsPath)
	}

	if opts.TimelinePath != "" {
		f, err := os.Create(opts.TimelinePath)
		if err != nil {
			return fmt.Errorf("creating timeline: %w", err)
		}
		defer f.Close()
		if err := report.WriteTimeline(f, m.Name, m.ConsumerResults(), pt, m.Clock()); err != nil {
			return err
		}
		logrus.Infof("Timeline written to %s", opts.TimelinePath)
	}
	return nil
}

// runCmd executes the simulation using parameters from the spec and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the marketplace simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		spec, err := loadSpec(cmd)
		if err != nil {
			logrus.Fatalf("Invalid market spec: %v", err)
		}
		logrus.Infof("Starting market %q with %d instances, max_time=%d, seed=%d",
			spec.Name, len(spec.Instances), spec.MaxTime, spec.Seed)

		opts := runOptions{TraceLevel: traceLevel, ResultsPath: resultsPath, TimelinePath: timelinePath}
		if err := executeRun(spec, opts, os.Stdout); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// validateCmd loads and validates a market spec without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a market spec",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		spec, err := loadSpec(cmd)
		if err != nil {
			logrus.Fatalf("Invalid market spec: %v", err)
		}
		if err := validateMarket(spec); err != nil {
			logrus.Fatalf("Invalid market spec: %v", err)
		}
		fmt.Printf("%s: %d instances, %d explicit consumers OK\n", configPath, len(spec.Instances), len(spec.Consumers.Work))
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addSpecFlags registers the flags every spec-driven command shares.
func addSpecFlags(c *cobra.Command) {
	c.Flags().StringVar(&configPath, "config", "", "Path to the YAML market spec")
	c.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	c.Flags().Int64Var(&maxTime, "max-time", 0, "Safety bound on simulated time in ticks (0 = unbounded)")
	c.Flags().Int64Var(&seed, "seed", 42, "Seed for generated consumers")
	c.Flags().StringVar(&tieBreak, "tie-break", "last", "Tie-break among equally efficient instances (last, first)")
}

// init sets up CLI flags and subcommands
func init() {
	addSpecFlags(runCmd)
	runCmd.Flags().StringVar(&resultsPath, "results-path", "", "Write JSON results to this file")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Purchase trace level (none, purchases)")
	runCmd.Flags().StringVar(&timelinePath, "timeline", "", "Write an SVG purchase timeline to this file (implies --trace purchases)")

	addSpecFlags(validateCmd)
	addSpecFlags(sweepCmd)
	sweepCmd.Flags().IntVar(&sweepSeeds, "seeds", 20, "Number of consecutive seeds to run")
	sweepCmd.Flags().IntVar(&sweepWorkers, "workers", 4, "Number of marketplaces simulated concurrently")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(sweepCmd)
}
