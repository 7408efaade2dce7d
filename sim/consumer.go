package sim

import (
	"github.com/sirupsen/logrus"
)

// ConsumerState is the lifecycle state of a consumer.
type ConsumerState string

const (
	ConsumerActive   ConsumerState = "active"
	ConsumerFinished ConsumerState = "finished"
)

// Unfinished is the FinishTime of a consumer that has not completed its work.
const Unfinished int64 = -1

// TieBreak decides which of several equally efficient instances wins.
type TieBreak string

const (
	// TieBreakLast lets a later catalog entry with equal efficiency replace
	// the current best. This is the default.
	TieBreakLast TieBreak = "last"
	// TieBreakFirst keeps the earliest catalog entry among equals.
	TieBreakFirst TieBreak = "first"
)

var validTieBreaks = map[TieBreak]bool{
	TieBreakLast:  true,
	TieBreakFirst: true,
	"":            true, // empty defaults to last
}

// IsValidTieBreak returns true if name is a recognized tie-break policy.
func IsValidTieBreak(name string) bool {
	return validTieBreaks[TieBreak(name)]
}

// Selection pairs an instance with the analysis of buying work on it.
type Selection struct {
	Instance *Instance
	Analysis PurchaseAnalysis
}

// Cycle describes one completed purchase decision.
type Cycle struct {
	Requested  float64
	Chosen     Selection
	Candidates []Selection // every instance evaluated, catalog order
}

// Consumer is an agent buying capacity until its work is done.
// Only its own decision cycles mutate it.
type Consumer struct {
	Name          string
	TotalWork     float64
	RemainingWork float64
	StartTime     int64
	TotalSpent    float64
	TotalIdleTime int64 // paid lease ticks the consumer could not use
	FinishTime    int64
	Purchases     int
}

// NewConsumer returns an active consumer with all of its work outstanding.
func NewConsumer(name string, work float64, start int64) *Consumer {
	return &Consumer{
		Name:          name,
		TotalWork:     work,
		RemainingWork: work,
		StartTime:     start,
		FinishTime:    Unfinished,
	}
}

// State reports Finished once completion has been recorded.
func (c *Consumer) State() ConsumerState {
	if c.FinishTime != Unfinished {
		return ConsumerFinished
	}
	return ConsumerActive
}

// ShopForBest evaluates every instance against work and returns the one with
// the highest cost efficiency, plus all evaluated candidates.
func (c *Consumer) ShopForBest(work float64, catalog Catalog, tieBreak TieBreak) (Selection, []Selection) {
	candidates := make([]Selection, 0, len(catalog))
	best := -1
	for _, inst := range catalog {
		a := inst.Analyze(work)
		logrus.Debugf("> %s: efficiency=%g lease_remaining=%d", inst.Description, a.Efficiency, a.LeaseTimeRemaining)
		candidates = append(candidates, Selection{Instance: inst, Analysis: a})
		idx := len(candidates) - 1
		if best < 0 || beats(a.Efficiency, candidates[best].Analysis.Efficiency, tieBreak) {
			best = idx
		}
	}
	if best < 0 {
		return Selection{}, candidates
	}
	return candidates[best], candidates
}

func beats(candidate, best float64, tieBreak TieBreak) bool {
	if tieBreak == TieBreakFirst {
		return candidate > best
	}
	return candidate >= best
}

// Purchase buys work on the most efficient instance and books the
// transaction on the ledger and on the consumer. RemainingWork becomes the
// work the chosen lease could not absorb (zero unless capped).
func (c *Consumer) Purchase(work float64, catalog Catalog, ledger *Ledger, tieBreak TieBreak) Cycle {
	chosen, candidates := c.ShopForBest(work, catalog, tieBreak)
	a := chosen.Analysis
	logrus.Debugf("%s PURCHASED: %s cost=%g efficiency=%g lease_remaining=%d",
		c.Name, chosen.Instance.Description, a.BilledCost, a.Efficiency, a.LeaseTimeRemaining)

	ledger.RecordPurchase(chosen.Instance, a)
	c.TotalSpent += a.BilledCost
	c.TotalIdleTime += a.LeaseTimeRemaining
	c.RemainingWork = a.Remainder
	c.Purchases++

	return Cycle{Requested: work, Chosen: chosen, Candidates: candidates}
}

// Step runs one decision cycle at now. When no work remains it records the
// finish time and returns done; otherwise it purchases and the caller must
// suspend the consumer for the chosen BilledTime.
func (c *Consumer) Step(now int64, catalog Catalog, ledger *Ledger, tieBreak TieBreak) (Cycle, bool) {
	if c.State() == ConsumerFinished {
		return Cycle{}, true
	}
	if c.RemainingWork <= 0 {
		c.RemainingWork = 0
		c.FinishTime = now
		return Cycle{}, true
	}
	return c.Purchase(c.RemainingWork, catalog, ledger, tieBreak), false
}

// ConsumerRecord is the reporting snapshot of a consumer after a run.
// ElapsedTime and FinishTime are Unfinished when the run bound was hit first.
type ConsumerRecord struct {
	Name          string  `json:"name"`
	TotalWork     float64 `json:"total_work"`
	TotalSpent    float64 `json:"total_spent"`
	ElapsedTime   int64   `json:"elapsed_time"`
	StartTime     int64   `json:"start_time"`
	FinishTime    int64   `json:"finish_time"`
	IdleTime      int64   `json:"idle_time"`
	Purchases     int     `json:"purchases"`
	RemainingWork float64 `json:"remaining_work"`
	Finished      bool    `json:"finished"`
}

// Record snapshots the consumer.
func (c *Consumer) Record() ConsumerRecord {
	elapsed := Unfinished
	finished := c.State() == ConsumerFinished
	if finished {
		elapsed = c.FinishTime - c.StartTime
	}
	return ConsumerRecord{
		Name:          c.Name,
		TotalWork:     c.TotalWork,
		TotalSpent:    c.TotalSpent,
		ElapsedTime:   elapsed,
		StartTime:     c.StartTime,
		FinishTime:    c.FinishTime,
		IdleTime:      c.TotalIdleTime,
		Purchases:     c.Purchases,
		RemainingWork: c.RemainingWork,
		Finished:      finished,
	}
}
