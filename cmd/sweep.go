package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"

	"code.cloudfoundry.org/workpool"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/market-sim/sim"
	"github.com/inference-sim/market-sim/sim/workload"
)

var (
	sweepSeeds   int // Number of seeds in a sweep
	sweepWorkers int // Concurrent marketplaces in a sweep
)

// SweepResult is the outcome of one seeded marketplace in a sweep.
type SweepResult struct {
	Seed       int64
	Income     float64
	MeanSpent  float64
	Unfinished int
	EndTime    int64
}

// runSweep runs one independent marketplace per seed on a work pool.
// Results are returned in seed order.
func runSweep(spec *workload.MarketSpec, seeds int, workers int) ([]SweepResult, error) {
	if seeds <= 0 {
		return nil, fmt.Errorf("--seeds must be positive, got %d", seeds)
	}
	if spec.Consumers.Generate == nil {
		logrus.Warnf("market %q has no generated consumers; every seed will produce the same run", spec.Name)
	}
	pool, err := workpool.NewWorkPool(workers)
	if err != nil {
		return nil, err
	}
	defer pool.Stop()

	results := make([]SweepResult, seeds)
	wg := &sync.WaitGroup{}
	lock := &sync.Mutex{}
	var firstErr error

	wg.Add(seeds)
	for i := 0; i < seeds; i++ {
		i := i
		seeded := *spec
		seeded.Seed = spec.Seed + int64(i)
		pool.Submit(func() {
			defer wg.Done()
			m, err := runMarket(&seeded, nil)
			if err != nil {
				lock.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("seed %d: %w", seeded.Seed, err)
				}
				lock.Unlock()
				return
			}
			metrics := sim.CollectMetrics(m)
			results[i] = SweepResult{
				Seed:       seeded.Seed,
				Income:     metrics.Income,
				MeanSpent:  metrics.Spent.Mean,
				Unfinished: metrics.Unfinished,
				EndTime:    metrics.EndTime,
			}
		})
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// printSweep writes per-seed rows and summary statistics.
func printSweep(w io.Writer, name string, results []SweepResult) {
	income := make([]float64, len(results))
	spent := make([]float64, len(results))
	end := make([]float64, len(results))
	unfinished := 0
	for i, r := range results {
		income[i] = r.Income
		spent[i] = r.MeanSpent
		end[i] = float64(r.EndTime)
		unfinished += r.Unfinished
	}

	fmt.Fprintf(w, "=== %s Sweep (%d seeds) ===\n", name, len(results))
	fmt.Fprintf(w, "%8s %12s %12s %10s %10s\n", "seed", "income", "mean spent", "end", "unfinished")
	for _, r := range results {
		fmt.Fprintf(w, "%8d %12.2f %12.2f %10d %10d\n", r.Seed, r.Income, r.MeanSpent, r.EndTime, r.Unfinished)
	}

	incomeStat, spentStat, endStat := sim.NewStat(income), sim.NewStat(spent), sim.NewStat(end)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Income     : mean %.2f, stddev %.2f, min %.2f, max %.2f\n", incomeStat.Mean, incomeStat.StdDev, incomeStat.Min, incomeStat.Max)
	fmt.Fprintf(w, "Mean Spent : mean %.2f, stddev %.2f\n", spentStat.Mean, spentStat.StdDev)
	fmt.Fprintf(w, "End Time   : mean %.2f, max %.0f\n", endStat.Mean, endStat.Max)
	fmt.Fprintf(w, "Unfinished : %d consumers across all seeds\n", unfinished)
}

// sweepCmd runs the same market over consecutive seeds
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a market spec over many seeds concurrently",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		spec, err := loadSpec(cmd)
		if err != nil {
			logrus.Fatalf("Invalid market spec: %v", err)
		}
		results, err := runSweep(spec, sweepSeeds, sweepWorkers)
		if err != nil {
			logrus.Fatalf("Sweep failed: %v", err)
		}
		printSweep(os.Stdout, spec.Name, results)
	},
}
