// Aggregates marketplace-wide and per-consumer statistics after a run.

package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/GaryBoone/GoStats/stats"
)

// Stat summarizes a series of per-consumer values.
type Stat struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Total  float64 `json:"total"`
}

// NewStat computes a Stat from raw values.
// Returns zero-value Stat for empty input.
func NewStat(data []float64) Stat {
	if len(data) == 0 {
		return Stat{}
	}
	return Stat{
		Min:    stats.StatsMin(data),
		Max:    stats.StatsMax(data),
		Mean:   stats.StatsMean(data),
		StdDev: stats.StatsPopulationStandardDeviation(data),
		Total:  stats.StatsSum(data),
	}
}

// Metrics aggregates statistics about a finished marketplace run
// for final reporting.
type Metrics struct {
	Market     string  `json:"market"`
	EndTime    int64   `json:"end_time"`
	Income     float64 `json:"income"`
	Purchases  int     `json:"purchases"`
	Consumers  int     `json:"consumers"`
	Finished   int     `json:"finished"`
	Unfinished int     `json:"unfinished"`

	Spent   Stat `json:"spent"`   // over all consumers
	Elapsed Stat `json:"elapsed"` // over finished consumers only
	Idle    Stat `json:"idle"`    // over all consumers

	Instances       []InstanceRecord `json:"instances"`
	ConsumerRecords []ConsumerRecord `json:"consumers_detail"`
}

// CollectMetrics snapshots m. Safe to call before, during or after Run.
func CollectMetrics(m *Marketplace) *Metrics {
	consumers := m.ConsumerResults()
	out := &Metrics{
		Market:          m.Name,
		EndTime:         m.Clock(),
		Income:          m.Income(),
		Purchases:       m.Ledger.Purchases,
		Consumers:       len(consumers),
		Instances:       m.InstanceResults(),
		ConsumerRecords: consumers,
	}

	spent := make([]float64, 0, len(consumers))
	idle := make([]float64, 0, len(consumers))
	var elapsed []float64
	for _, c := range consumers {
		spent = append(spent, c.TotalSpent)
		idle = append(idle, float64(c.IdleTime))
		if c.Finished {
			out.Finished++
			elapsed = append(elapsed, float64(c.ElapsedTime))
		} else {
			out.Unfinished++
		}
	}
	out.Spent = NewStat(spent)
	out.Elapsed = NewStat(elapsed)
	out.Idle = NewStat(idle)
	return out
}

// Print writes a human-readable report.
func (m *Metrics) Print(w io.Writer) {
	fmt.Fprintf(w, "=== %s Market Stats ===\n", m.Market)
	fmt.Fprintf(w, "End Time             : %d ticks\n", m.EndTime)
	fmt.Fprintf(w, "Income               : %.2f\n", m.Income)
	fmt.Fprintf(w, "Purchases            : %d\n", m.Purchases)
	fmt.Fprintf(w, "Consumers            : %d (%d finished, %d unfinished)\n", m.Consumers, m.Finished, m.Unfinished)
	if m.Consumers > 0 {
		fmt.Fprintf(w, "Average Spend        : %.2f (min %.2f, max %.2f)\n", m.Spent.Mean, m.Spent.Min, m.Spent.Max)
		fmt.Fprintf(w, "Average Idle Time    : %.2f ticks\n", m.Idle.Mean)
	}
	if m.Finished > 0 {
		fmt.Fprintf(w, "Average Elapsed Time : %.2f ticks\n", m.Elapsed.Mean)
	}

	fmt.Fprintln(w, "\n--- Instances ---")
	fmt.Fprintf(w, "%-16s %8s %10s %10s %8s %8s %8s %8s\n",
		"name", "invoked", "income", "work", "billed", "unused", "eff.cost", "lease")
	for _, r := range m.Instances {
		fmt.Fprintf(w, "%-16s %8d %10.2f %10.2f %8d %8d %8.3f %8d\n",
			r.Name, r.Invocations, r.Income, r.WorkDone, r.TimeBilled, r.UnusedTime, r.EffectiveUnitCost, r.LeaseLength)
	}

	fmt.Fprintln(w, "\n--- Consumers ---")
	fmt.Fprintf(w, "%-10s %10s %10s %8s %8s %8s %6s\n", "name", "work", "spent", "start", "finish", "elapsed", "idle")
	for _, c := range m.ConsumerRecords {
		finish, elapsed := fmt.Sprint(c.FinishTime), fmt.Sprint(c.ElapsedTime)
		if !c.Finished {
			finish, elapsed = "-", "-"
		}
		fmt.Fprintf(w, "%-10s %10.2f %10.2f %8d %8s %8s %6d\n",
			c.Name, c.TotalWork, c.TotalSpent, c.StartTime, finish, elapsed, c.IdleTime)
	}
}

// SaveResults writes the metrics as indented JSON to path, or to stdout when
// path is empty.
func (m *Metrics) SaveResults(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metrics: %w", err)
	}
	if path == "" {
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
