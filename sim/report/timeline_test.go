package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/market-sim/sim"
	"github.com/inference-sim/market-sim/sim/trace"
)

func runTracedMarket(t *testing.T, maxTime int64) (*sim.Marketplace, *trace.PurchaseTrace) {
	t.Helper()
	od, err := sim.NewInstance("od", "on-demand", sim.CapacityUnit{Capacity: 10, Duration: 1, BaseCost: 5}, sim.LeasePlan{UnitCostFraction: 1})
	require.NoError(t, err)
	reserved, err := sim.NewInstance("reserved", "reserved", sim.CapacityUnit{Capacity: 10, Duration: 1, BaseCost: 5},
		sim.LeasePlan{Length: 4, DownPayment: 2, UnitCostFraction: 0.5})
	require.NoError(t, err)

	pt := trace.NewPurchaseTrace(trace.TraceConfig{Level: trace.TraceLevelPurchases})
	m, err := sim.NewMarketplace(sim.MarketConfig{
		Name:      "primary",
		Catalog:   sim.Catalog{od, reserved},
		Consumers: sim.ConsumerSpecs{Work: []float64{25, 100}, StartTime: []int64{0, 1}},
		MaxTime:   maxTime,
		Trace:     pt,
	})
	require.NoError(t, err)
	require.NoError(t, m.Start())
	return m, pt
}

func TestWriteTimeline_DrawsRowsAndBars(t *testing.T) {
	// GIVEN a traced run with 4 purchases
	m, pt := runTracedMarket(t, 0)

	// WHEN the timeline is written
	var buf bytes.Buffer
	require.NoError(t, WriteTimeline(&buf, m.Name, m.ConsumerResults(), pt, m.Clock()))

	// THEN it is an SVG with a row per consumer and a bar per purchase
	out := buf.String()
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "<?xml"))
	assert.Contains(t, out, "</svg>")
	assert.Contains(t, out, "con_0")
	assert.Contains(t, out, "con_1")
	assert.Contains(t, out, "reserved")
	// 2 row backgrounds + 4 purchase bars + 1 legend swatch
	assert.Equal(t, 7, strings.Count(out, "<rect"))
	assert.NotContains(t, out, "unfinished")
}

func TestWriteTimeline_MarksUnfinished(t *testing.T) {
	m, pt := runTracedMarket(t, 6)
	var buf bytes.Buffer
	require.NoError(t, WriteTimeline(&buf, m.Name, m.ConsumerResults(), pt, m.Clock()))
	assert.Contains(t, buf.String(), "unfinished")
}

func TestWriteTimeline_RequiresTrace(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteTimeline(&buf, "x", nil, nil, 0))
}
