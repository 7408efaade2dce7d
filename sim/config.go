package sim

import (
	"fmt"
	"math"

	"github.com/inference-sim/market-sim/sim/trace"
)

// ConsumerSpecs lists the consumer population as parallel sequences:
// consumer i has Work[i] units of work and activates at StartTime[i].
type ConsumerSpecs struct {
	Work      []float64
	StartTime []int64
}

// Len returns the number of consumers described.
func (s ConsumerSpecs) Len() int {
	return len(s.Work)
}

// Validate checks lengths and values of the consumer specs.
func (s ConsumerSpecs) Validate() error {
	if len(s.Work) != len(s.StartTime) {
		return fmt.Errorf("%w: %d work amounts but %d start times", ErrConfiguration, len(s.Work), len(s.StartTime))
	}
	for i, w := range s.Work {
		if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			return fmt.Errorf("%w: consumer[%d]: work must be a positive finite number, got %f", ErrConfiguration, i, w)
		}
		if s.StartTime[i] < 0 {
			return fmt.Errorf("%w: consumer[%d]: start time must be non-negative, got %d", ErrConfiguration, i, s.StartTime[i])
		}
	}
	return nil
}

// validateAgainst checks every consumer's work against every instance in
// catalog so billed ticks and resume times stay inside int64.
func (s ConsumerSpecs) validateAgainst(catalog Catalog) error {
	for i, w := range s.Work {
		for _, inst := range catalog {
			if err := ValidateWork(w, s.StartTime[i], inst.Unit, inst.Lease); err != nil {
				return fmt.Errorf("consumer[%d] on instance %q: %w", i, inst.Name, err)
			}
		}
	}
	return nil
}

// MarketConfig groups everything needed to build a Marketplace.
type MarketConfig struct {
	Name      string
	Catalog   Catalog
	Consumers ConsumerSpecs
	MaxTime   int64                // safety bound in ticks (0 = unbounded)
	TieBreak  TieBreak             // "" defaults to TieBreakLast
	Trace     *trace.PurchaseTrace // optional decision trace
}
