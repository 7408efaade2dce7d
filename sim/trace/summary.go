package trace

// TraceSummary aggregates statistics from a PurchaseTrace.
type TraceSummary struct {
	TotalPurchases       int
	CappedPurchases      int
	TotalCost            float64
	MeanMargin           float64
	MinMargin            float64
	UniqueInstances      int
	InstanceDistribution map[string]int // instance name → purchases
}

// Summarize computes aggregate statistics from a PurchaseTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(pt *PurchaseTrace) *TraceSummary {
	summary := &TraceSummary{
		InstanceDistribution: make(map[string]int),
	}
	if pt == nil || len(pt.Purchases) == 0 {
		return summary
	}

	totalMargin := 0.0
	summary.MinMargin = pt.Purchases[0].Margin
	for _, p := range pt.Purchases {
		summary.TotalPurchases++
		summary.TotalCost += p.Cost
		summary.InstanceDistribution[p.ChosenInstance]++
		if p.Capped() {
			summary.CappedPurchases++
		}
		totalMargin += p.Margin
		if p.Margin < summary.MinMargin {
			summary.MinMargin = p.Margin
		}
	}
	summary.MeanMargin = totalMargin / float64(len(pt.Purchases))
	summary.UniqueInstances = len(summary.InstanceDistribution)

	return summary
}
