package workload

import (
	"github.com/inference-sim/market-sim/sim"
)

// GenerateConsumers draws a consumer population from g, which must have
// passed validation. Deterministic given the same spec and seed; work
// amounts and start times use isolated RNG streams.
func GenerateConsumers(g GenerateSpec, seed int64) sim.ConsumerSpecs {
	rng := sim.NewPopulationRNG(seed)

	specs := sim.ConsumerSpecs{
		Work:      make([]float64, 0, g.Count),
		StartTime: make([]int64, 0, g.Count),
	}
	for i := 0; i < g.Count; i++ {
		work := g.WorkMin + rng.Work.Float64()*(g.WorkMax-g.WorkMin)
		start := g.StartMin + rng.Start.Int63n(g.StartMax-g.StartMin+1)
		specs.Work = append(specs.Work, work)
		specs.StartTime = append(specs.StartTime, start)
	}
	return specs
}
