package sim

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/market-sim/sim/trace"
)

// Marketplace owns the catalog and the consumer population and drives the
// simulated clock. Consumers interleave deterministically by resume time,
// then by scheduling order.
type Marketplace struct {
	Name      string
	Catalog   Catalog
	Consumers []*Consumer
	Ledger    *Ledger
	MaxTime   int64

	clock    int64
	events   EventQueue
	seq      int64
	specs    ConsumerSpecs
	tieBreak TieBreak
	trace    *trace.PurchaseTrace
	err      error
}

// NewMarketplace validates cfg and returns a marketplace at tick 0.
// Configuration errors surface here, before any simulated time advances.
func NewMarketplace(cfg MarketConfig) (*Marketplace, error) {
	catalog, err := NewCatalog(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	for _, inst := range catalog {
		if err := ValidateBilling(inst.Unit, inst.Lease); err != nil {
			return nil, fmt.Errorf("instance %q: %w", inst.Name, err)
		}
	}
	if err := cfg.Consumers.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Consumers.validateAgainst(catalog); err != nil {
		return nil, err
	}
	if !IsValidTieBreak(string(cfg.TieBreak)) {
		return nil, fmt.Errorf("%w: unknown tie-break %q; valid: last, first", ErrConfiguration, cfg.TieBreak)
	}
	if cfg.MaxTime < 0 {
		return nil, fmt.Errorf("%w: max time must be non-negative, got %d", ErrConfiguration, cfg.MaxTime)
	}

	maxTime := cfg.MaxTime
	if maxTime == 0 {
		maxTime = math.MaxInt64
	}
	tieBreak := cfg.TieBreak
	if tieBreak == "" {
		tieBreak = TieBreakLast
	}

	return &Marketplace{
		Name:     cfg.Name,
		Catalog:  catalog,
		Ledger:   NewLedger(),
		MaxTime:  maxTime,
		events:   make(EventQueue, 0),
		specs:    cfg.Consumers,
		tieBreak: tieBreak,
		trace:    cfg.Trace,
	}, nil
}

// Schedule pushes an event onto the marketplace's event queue.
func (m *Marketplace) Schedule(ev Event) {
	heap.Push(&m.events, eventEntry{event: ev, seqID: m.nextSeqID()})
}

func (m *Marketplace) nextSeqID() int64 {
	id := m.seq
	m.seq++
	return id
}

// SpawnConsumers creates one consumer per spec and schedules its first
// decision cycle at its start time. Names continue the con_<i> sequence
// across calls.
func (m *Marketplace) SpawnConsumers(specs ConsumerSpecs) error {
	if err := specs.Validate(); err != nil {
		return err
	}
	if err := specs.validateAgainst(m.Catalog); err != nil {
		return err
	}
	for i, start := range specs.StartTime {
		if start < m.clock {
			return fmt.Errorf("%w: consumer[%d]: start time %d is before the current tick %d",
				ErrConfiguration, i, start, m.clock)
		}
	}
	for i := range specs.Work {
		c := NewConsumer(fmt.Sprintf("con_%d", len(m.Consumers)), specs.Work[i], specs.StartTime[i])
		m.Consumers = append(m.Consumers, c)
		m.Schedule(&DecisionEvent{time: c.StartTime, consumer: c})
	}
	return nil
}

// Start spawns the configured consumers and runs the simulation.
func (m *Marketplace) Start() error {
	logrus.Infof("[tick %07d] %s started %d consumers", m.clock, m.Name, m.specs.Len())
	if err := m.SpawnConsumers(m.specs); err != nil {
		return err
	}
	return m.Run()
}

// Run processes events until the queue drains or the next event lies past
// MaxTime. Consumers still active at that point stay unfinished.
func (m *Marketplace) Run() error {
	for len(m.events) > 0 {
		if m.events[0].event.Timestamp() > m.MaxTime {
			break
		}
		entry := heap.Pop(&m.events).(eventEntry)
		m.clock = entry.event.Timestamp()
		logrus.Debugf("[tick %07d] Executing %T", m.clock, entry.event)
		entry.event.Execute(m)
		if m.err != nil {
			return m.err
		}
	}

	if unfinished := m.Unfinished(); len(unfinished) > 0 {
		logrus.Warnf("[tick %07d] %s reached max time %d with %d unfinished consumers: %v",
			m.clock, m.Name, m.MaxTime, len(unfinished), unfinished)
	}
	logrus.Infof("[tick %07d] %s finished", m.clock, m.Name)
	return nil
}

// decide runs one decision cycle for c at tick now.
func (m *Marketplace) decide(c *Consumer, now int64) {
	cycle, done := c.Step(now, m.Catalog, m.Ledger, m.tieBreak)
	if done {
		logrus.Debugf("[tick %07d] %s finished after %d purchases", now, c.Name, c.Purchases)
		return
	}

	if m.trace != nil {
		m.trace.RecordPurchase(purchaseRecord(c.Name, now, cycle))
	}

	billed := cycle.Chosen.Analysis.BilledTime
	if billed <= 0 {
		m.err = fmt.Errorf("%w: %s bought %d ticks on %s at tick %d",
			ErrStalled, c.Name, billed, cycle.Chosen.Instance.Name, now)
		return
	}
	m.Schedule(&DecisionEvent{time: now + billed, consumer: c})
}

func purchaseRecord(consumer string, now int64, cycle Cycle) trace.PurchaseRecord {
	chosen := cycle.Chosen.Analysis
	candidates := make([]trace.CandidateScore, len(cycle.Candidates))
	for i, cand := range cycle.Candidates {
		candidates[i] = trace.CandidateScore{
			Instance:   cand.Instance.Name,
			Efficiency: cand.Analysis.Efficiency,
			Cost:       cand.Analysis.BilledCost,
			Time:       cand.Analysis.BilledTime,
			Work:       cand.Analysis.WorkCompleted,
		}
	}
	return trace.PurchaseRecord{
		Consumer:       consumer,
		Clock:          now,
		ChosenInstance: cycle.Chosen.Instance.Name,
		Requested:      cycle.Requested,
		Cost:           chosen.BilledCost,
		Time:           chosen.BilledTime,
		Work:           chosen.WorkCompleted,
		Remainder:      chosen.Remainder,
		Efficiency:     chosen.Efficiency,
		Candidates:     candidates,
		Margin:         trace.ComputeMargin(candidates, cycle.Chosen.Instance.Name),
	}
}

// Clock returns the current simulated tick.
func (m *Marketplace) Clock() int64 {
	return m.clock
}

// Income returns the marketplace-wide income.
func (m *Marketplace) Income() float64 {
	return m.Ledger.Income
}

// Pending returns the number of scheduled events not yet processed.
func (m *Marketplace) Pending() int {
	return len(m.events)
}

// Unfinished returns the names of consumers without a recorded finish time.
func (m *Marketplace) Unfinished() []string {
	var names []string
	for _, c := range m.Consumers {
		if c.State() != ConsumerFinished {
			names = append(names, c.Name)
		}
	}
	return names
}

// InstanceResults snapshots every instance in catalog order.
func (m *Marketplace) InstanceResults() []InstanceRecord {
	return m.Catalog.Records()
}

// ConsumerResults snapshots every consumer in spawn order.
func (m *Marketplace) ConsumerResults() []ConsumerRecord {
	records := make([]ConsumerRecord, len(m.Consumers))
	for i, c := range m.Consumers {
		records[i] = c.Record()
	}
	return records
}

// CheckConservation verifies income, instance income and consumer spend agree.
func (m *Marketplace) CheckConservation() error {
	return m.Ledger.CheckConservation(m.Catalog, m.Consumers)
}
