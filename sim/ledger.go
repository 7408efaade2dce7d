package sim

import (
	"fmt"
	"math"
)

// Ledger is the shared statistics context of a marketplace run. It owns the
// marketplace-wide income and is the only path through which instance
// statistics change, which keeps the conservation law checkable.
//
// Thread-safety: NOT thread-safe. Decision cycles are serialized by the
// event loop.
type Ledger struct {
	Income    float64 // sum of billed cost over every purchase
	Purchases int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// RecordPurchase books one purchase against the instance and the market.
func (l *Ledger) RecordPurchase(inst *Instance, a PurchaseAnalysis) {
	l.Income += a.BilledCost
	l.Purchases++
	inst.record(a)
}

// conservationTolerance bounds float drift from summing in different orders.
const conservationTolerance = 1e-9

// CheckConservation verifies that marketplace income equals the summed
// instance income and the summed consumer spend.
func (l *Ledger) CheckConservation(catalog Catalog, consumers []*Consumer) error {
	var instIncome, spent float64
	var instPurchases, consumerPurchases int
	for _, inst := range catalog {
		instIncome += inst.Stats.Income
		instPurchases += inst.Stats.Invocations
	}
	for _, c := range consumers {
		spent += c.TotalSpent
		consumerPurchases += c.Purchases
	}

	tol := conservationTolerance * math.Max(1, math.Abs(l.Income))
	if math.Abs(l.Income-instIncome) > tol {
		return fmt.Errorf("market income %f != instance income %f", l.Income, instIncome)
	}
	if math.Abs(l.Income-spent) > tol {
		return fmt.Errorf("market income %f != consumer spend %f", l.Income, spent)
	}
	if l.Purchases != instPurchases || l.Purchases != consumerPurchases {
		return fmt.Errorf("purchase counts disagree: market=%d instances=%d consumers=%d",
			l.Purchases, instPurchases, consumerPurchases)
	}
	return nil
}
