package sim

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/market-sim/sim/internal/testutil"
	"github.com/inference-sim/market-sim/sim/trace"
)

func goldenMarket(t *testing.T, sc testutil.GoldenScenario) *Marketplace {
	t.Helper()
	var catalog Catalog
	for _, gi := range sc.Instances {
		catalog = append(catalog, mustInstance(t, gi.Name,
			CapacityUnit{Capacity: gi.Capacity, Duration: gi.UnitDuration, BaseCost: gi.UnitBaseCost},
			LeasePlan{Length: gi.LeaseLength, DownPayment: gi.LeaseDownPayment, UnitCostFraction: gi.LeaseUnitCostFraction}))
	}
	return mustMarketplace(t, MarketConfig{
		Name:      sc.Name,
		Catalog:   catalog,
		Consumers: ConsumerSpecs{Work: sc.Consumers.Work, StartTime: sc.Consumers.StartTime},
		MaxTime:   sc.MaxTime,
		TieBreak:  TieBreak(sc.TieBreak),
	})
}

func TestMarketplace_GoldenScenarios(t *testing.T) {
	dataset := testutil.LoadGoldenDataset(t)
	require.NotEmpty(t, dataset.Tests)

	for _, sc := range dataset.Tests {
		t.Run(sc.Name, func(t *testing.T) {
			m := goldenMarket(t, sc)
			require.NoError(t, m.Start())

			testutil.AssertFloat64Equal(t, "income", sc.Expected.Income, m.Income(), 1e-9)
			assert.Equal(t, sc.Expected.EndTime, m.Clock(), "end time")

			consumers := m.ConsumerResults()
			require.Len(t, consumers, len(sc.Expected.Consumers))
			for i, want := range sc.Expected.Consumers {
				got := consumers[i]
				assert.Equal(t, want.Name, got.Name)
				testutil.AssertFloat64Equal(t, got.Name+" spent", want.TotalSpent, got.TotalSpent, 1e-9)
				assert.Equal(t, want.FinishTime, got.FinishTime, "%s finish", got.Name)
				assert.Equal(t, want.IdleTime, got.IdleTime, "%s idle", got.Name)
				assert.Equal(t, want.Purchases, got.Purchases, "%s purchases", got.Name)
				assert.Equal(t, want.Finished, got.Finished, "%s finished", got.Name)
			}

			instances := m.InstanceResults()
			require.Len(t, instances, len(sc.Expected.Instances))
			for i, want := range sc.Expected.Instances {
				got := instances[i]
				assert.Equal(t, want.Name, got.Name)
				assert.Equal(t, want.Invocations, got.Invocations, "%s invocations", got.Name)
				testutil.AssertFloat64Equal(t, got.Name+" income", want.Income, got.Income, 1e-9)
				testutil.AssertFloat64Equal(t, got.Name+" work", want.WorkDone, got.WorkDone, 1e-9)
				assert.Equal(t, want.TimeBilled, got.TimeBilled, "%s time billed", got.Name)
				assert.Equal(t, want.UnusedTime, got.UnusedTime, "%s unused", got.Name)
			}

			assert.NoError(t, m.CheckConservation())
		})
	}
}

func TestMarketplace_RandomCatalogs_TerminateAndConserve(t *testing.T) {
	// For any finite catalog of valid instances every consumer finishes,
	// remaining work reaches exactly 0 and income is conserved.
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 50; trial++ {
		var catalog Catalog
		for i := 0; i < 1+rng.Intn(5); i++ {
			unit := CapacityUnit{
				Capacity: 1 + rng.Float64()*20,
				Duration: 1 + rng.Int63n(4),
				BaseCost: 0.5 + rng.Float64()*10,
			}
			lease := LeasePlan{UnitCostFraction: 0.2 + rng.Float64()}
			if rng.Intn(2) == 0 {
				lease.Length = unit.Duration * (1 + rng.Int63n(6))
				lease.DownPayment = rng.Float64() * 5
			}
			catalog = append(catalog, mustInstance(t, string(rune('a'+i)), unit, lease))
		}
		specs := ConsumerSpecs{}
		for i := 0; i < 1+rng.Intn(8); i++ {
			specs.Work = append(specs.Work, 1+rng.Float64()*500)
			specs.StartTime = append(specs.StartTime, rng.Int63n(50))
		}

		m := mustMarketplace(t, MarketConfig{Catalog: catalog, Consumers: specs})
		require.NoError(t, m.Start())

		assert.Empty(t, m.Unfinished(), "trial %d", trial)
		for _, c := range m.Consumers {
			assert.Equal(t, 0.0, c.RemainingWork, "trial %d %s", trial, c.Name)
			assert.GreaterOrEqual(t, c.FinishTime, c.StartTime)
		}
		assert.NoError(t, m.CheckConservation(), "trial %d", trial)
		assert.Equal(t, 0, m.Pending())
	}
}

func TestMarketplace_SimultaneousConsumers_OrderIndependent(t *testing.T) {
	// GIVEN Scenario D: two identical consumers starting together on a mixed catalog
	build := func() *Marketplace {
		od := mustInstance(t, "od", testUnit, onDemand)
		reserved := mustInstance(t, "reserved", testUnit, LeasePlan{Length: 4, DownPayment: 2, UnitCostFraction: 0.5})
		return mustMarketplace(t, MarketConfig{
			Catalog:   Catalog{od, reserved},
			Consumers: ConsumerSpecs{Work: []float64{100, 100}, StartTime: []int64{5, 5}},
		})
	}
	m := build()
	require.NoError(t, m.Start())

	// THEN both consumers end with identical totals
	r := m.ConsumerResults()
	assert.Equal(t, r[0].TotalSpent, r[1].TotalSpent)
	assert.Equal(t, r[0].ElapsedTime, r[1].ElapsedTime)
	assert.Equal(t, r[0].FinishTime, r[1].FinishTime)

	// AND swapping spawn order changes nothing about the totals
	m2 := build()
	require.NoError(t, m2.SpawnConsumers(ConsumerSpecs{Work: []float64{100}, StartTime: []int64{5}}))
	require.NoError(t, m2.SpawnConsumers(ConsumerSpecs{Work: []float64{100}, StartTime: []int64{5}}))
	require.NoError(t, m2.Run())
	r2 := m2.ConsumerResults()
	assert.Equal(t, r[1].TotalSpent, r2[0].TotalSpent)
	assert.Equal(t, r[0].ElapsedTime, r2[1].ElapsedTime)
}

func TestMarketplace_SimultaneousEvents_RunInSpawnOrder(t *testing.T) {
	// GIVEN consumers spawned at the same tick with a trace attached
	pt := trace.NewPurchaseTrace(trace.TraceConfig{Level: trace.TraceLevelPurchases})
	m := mustMarketplace(t, MarketConfig{
		Catalog:   Catalog{mustInstance(t, "od", testUnit, onDemand)},
		Consumers: ConsumerSpecs{Work: []float64{10, 20, 30}, StartTime: []int64{0, 0, 0}},
		Trace:     pt,
	})
	require.NoError(t, m.Start())

	// THEN decisions at tick 0 appear in spawn order
	require.Len(t, pt.Purchases, 3)
	for i, name := range []string{"con_0", "con_1", "con_2"} {
		assert.Equal(t, name, pt.Purchases[i].Consumer)
		assert.Equal(t, int64(0), pt.Purchases[i].Clock)
	}
}

func TestMarketplace_Trace_RecordsCandidatesAndMargin(t *testing.T) {
	pt := trace.NewPurchaseTrace(trace.TraceConfig{Level: trace.TraceLevelPurchases})
	od := mustInstance(t, "od", testUnit, onDemand)
	reserved := mustInstance(t, "reserved", testUnit, LeasePlan{Length: 4, DownPayment: 2, UnitCostFraction: 0.5})
	m := mustMarketplace(t, MarketConfig{
		Catalog:   Catalog{od, reserved},
		Consumers: ConsumerSpecs{Work: []float64{25}, StartTime: []int64{0}},
		Trace:     pt,
	})
	require.NoError(t, m.Start())

	require.Len(t, pt.Purchases, 1)
	rec := pt.Purchases[0]
	assert.Equal(t, "reserved", rec.ChosenInstance)
	assert.Len(t, rec.Candidates, 2)
	assert.InDelta(t, 25.0/9.5/3-25.0/15/3, rec.Margin, 1e-12)
	assert.Equal(t, 9.5, rec.Cost)
}

func TestMarketplace_MaxTime_LeavesConsumersUnfinished(t *testing.T) {
	// GIVEN a long job on a slow instance and a short bound
	slow := mustInstance(t, "slow", CapacityUnit{Capacity: 1, Duration: 10, BaseCost: 1}, LeasePlan{Length: 10, UnitCostFraction: 1})
	m := mustMarketplace(t, MarketConfig{
		Catalog:   Catalog{slow},
		Consumers: ConsumerSpecs{Work: []float64{100, 1}, StartTime: []int64{0, 0}},
		MaxTime:   35,
	})

	// WHEN run, THEN it ends without error at the bound
	require.NoError(t, m.Start())
	assert.Equal(t, int64(30), m.Clock())
	assert.Equal(t, []string{"con_0"}, m.Unfinished())

	r := m.ConsumerResults()
	assert.False(t, r[0].Finished)
	assert.Equal(t, Unfinished, r[0].FinishTime)
	assert.Equal(t, 96.0, r[0].RemainingWork)
	assert.True(t, r[1].Finished)
	assert.Equal(t, int64(10), r[1].FinishTime)
	assert.NoError(t, m.CheckConservation())
}

func TestNewMarketplace_ConfigurationErrors(t *testing.T) {
	good := Catalog{mustInstance(t, "od", testUnit, onDemand)}
	// an instance mutated after construction must be caught again here
	bad := mustInstance(t, "bad", testUnit, onDemand)
	bad.Lease.UnitCostFraction = 0

	tests := []struct {
		name string
		cfg  MarketConfig
		want error
	}{
		{"empty catalog", MarketConfig{Consumers: ConsumerSpecs{}}, ErrConfiguration},
		{"mismatched specs", MarketConfig{Catalog: good, Consumers: ConsumerSpecs{Work: []float64{1, 2}, StartTime: []int64{0}}}, ErrConfiguration},
		{"zero work", MarketConfig{Catalog: good, Consumers: ConsumerSpecs{Work: []float64{0}, StartTime: []int64{0}}}, ErrConfiguration},
		{"negative start", MarketConfig{Catalog: good, Consumers: ConsumerSpecs{Work: []float64{1}, StartTime: []int64{-1}}}, ErrConfiguration},
		{"unknown tie-break", MarketConfig{Catalog: good, TieBreak: "random"}, ErrConfiguration},
		{"negative max time", MarketConfig{Catalog: good, MaxTime: -1}, ErrConfiguration},
		{"degenerate instance", MarketConfig{Catalog: Catalog{bad}}, ErrDegenerateBilling},
		{"work beyond tick range", MarketConfig{Catalog: good, Consumers: ConsumerSpecs{Work: []float64{1e19}, StartTime: []int64{0}}}, ErrConfiguration},
		{"start near tick limit", MarketConfig{Catalog: good, Consumers: ConsumerSpecs{Work: []float64{10}, StartTime: []int64{math.MaxInt64 - 5}}}, ErrConfiguration},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewMarketplace(tc.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestMarketplace_SpawnConsumers_RejectsPastStart(t *testing.T) {
	m := mustMarketplace(t, MarketConfig{
		Catalog:   Catalog{mustInstance(t, "od", testUnit, onDemand)},
		Consumers: ConsumerSpecs{Work: []float64{25}, StartTime: []int64{10}},
	})
	require.NoError(t, m.Start())
	require.Equal(t, int64(13), m.Clock())

	err := m.SpawnConsumers(ConsumerSpecs{Work: []float64{5}, StartTime: []int64{3}})
	assert.True(t, errors.Is(err, ErrConfiguration))

	// spawning in the future continues naming and the clock
	require.NoError(t, m.SpawnConsumers(ConsumerSpecs{Work: []float64{5}, StartTime: []int64{20}}))
	require.NoError(t, m.Run())
	assert.Equal(t, "con_1", m.Consumers[1].Name)
	assert.Equal(t, int64(21), m.Consumers[1].FinishTime)
}

func TestMarketplace_NoConsumers_EndsImmediately(t *testing.T) {
	m := mustMarketplace(t, MarketConfig{Catalog: Catalog{mustInstance(t, "od", testUnit, onDemand)}})
	require.NoError(t, m.Start())
	assert.Equal(t, int64(0), m.Clock())
	assert.Equal(t, 0.0, m.Income())
	assert.Empty(t, m.ConsumerResults())
}

func TestMarketplace_HugeWork_RejectedBeforeAnyPurchase(t *testing.T) {
	// GIVEN a cheap on-demand offer next to a lease that caps each purchase
	catalog := Catalog{
		mustInstance(t, "od", CapacityUnit{Capacity: 1, Duration: 1, BaseCost: 1}, onDemand),
		mustInstance(t, "lease", testUnit, twoTickLease),
	}
	m := mustMarketplace(t, MarketConfig{Catalog: catalog})

	// WHEN a consumer whose billing would overflow int64 ticks is spawned
	err := m.SpawnConsumers(ConsumerSpecs{Work: []float64{1e19}, StartTime: []int64{0}})

	// THEN it is a configuration error and nothing reaches the ledger
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Empty(t, m.Consumers)
	assert.Equal(t, 0, m.Pending())
	require.NoError(t, m.Run())
	assert.Equal(t, 0.0, m.Income())
	assert.Equal(t, 0, m.Ledger.Purchases)
}
