// Package trace provides purchase-decision recording for marketplace analysis.
// This package has no dependencies on sim/ — it stores pure data types.
package trace

// CandidateScore captures one instance evaluated during a purchase decision.
type CandidateScore struct {
	Instance   string
	Efficiency float64
	Cost       float64
	Time       int64
	Work       float64
}

// PurchaseRecord captures a single consumer purchase decision.
type PurchaseRecord struct {
	Consumer       string
	Clock          int64
	ChosenInstance string
	Requested      float64 // work the consumer asked for
	Cost           float64
	Time           int64
	Work           float64 // work the purchase delivered
	Remainder      float64 // work left for the next cycle (lease cap)
	Efficiency     float64
	Candidates     []CandidateScore // catalog order
	Margin         float64          // chosen efficiency - best alternative; 0 with no alternative
}

// Capped reports whether the lease could not absorb the requested work.
func (r PurchaseRecord) Capped() bool {
	return r.Remainder > 0
}

// ComputeMargin returns how far the chosen instance's efficiency exceeds the
// best alternative. Ties yield 0; a single candidate yields 0.
func ComputeMargin(candidates []CandidateScore, chosen string) float64 {
	var chosenEff, bestAlt float64
	found, haveAlt := false, false
	for _, c := range candidates {
		if c.Instance == chosen && !found {
			chosenEff = c.Efficiency
			found = true
			continue
		}
		if !haveAlt || c.Efficiency > bestAlt {
			bestAlt = c.Efficiency
			haveAlt = true
		}
	}
	if !found || !haveAlt {
		return 0
	}
	return chosenEff - bestAlt
}
