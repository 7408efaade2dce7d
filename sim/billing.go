package sim

import (
	"fmt"
	"math"
)

// CapacityUnit is the smallest billable chunk of compute: how much work it
// absorbs, how many ticks it occupies and what it costs on demand.
type CapacityUnit struct {
	Capacity float64 // work throughput per unit (must be > 0)
	Duration int64   // ticks consumed per unit (must be > 0)
	BaseCost float64 // on-demand price per unit (>= 0)
}

// LeasePlan is the billing arrangement wrapped around a CapacityUnit.
// A zero Length is on-demand: no cap on the number of units per purchase.
type LeasePlan struct {
	Length           int64   // lease length in ticks (0 = unbounded)
	DownPayment      float64 // paid once per purchase
	UnitCostFraction float64 // multiplier applied to the unit's base cost
}

// OnDemand reports whether the plan has no fixed term.
func (l LeasePlan) OnDemand() bool {
	return l.Length == 0
}

// MaxUnits returns how many units fit in one fixed-term lease.
// Meaningless for on-demand plans, which return math.MaxInt64.
func (l LeasePlan) MaxUnits(unit CapacityUnit) int64 {
	if l.OnDemand() {
		return math.MaxInt64
	}
	return l.Length / unit.Duration
}

// EffectiveUnitCost is the per-unit price after the lease multiplier.
func EffectiveUnitCost(unit CapacityUnit, lease LeasePlan) float64 {
	return unit.BaseCost * lease.UnitCostFraction
}

// PurchaseAnalysis is the outcome of pricing one hypothetical purchase.
type PurchaseAnalysis struct {
	Units              int64   // billed units, partial units rounded up
	BilledCost         float64 // down payment + units * effective unit cost
	BilledTime         int64   // units * unit duration (ticks)
	WorkCompleted      float64 // work this purchase delivers
	Remainder          float64 // work left over when the lease capped delivery
	Efficiency         float64 // work / cost / time; the ranking metric
	Rate               float64 // work / cost
	LeaseTimeRemaining int64   // paid but unused ticks on a fixed lease
}

// Capped reports whether the lease could not absorb all requested work.
func (a PurchaseAnalysis) Capped() bool {
	return a.Remainder > 0
}

// Analyze prices a purchase of work against a unit and lease.
// Callers must have passed the pair through ValidateBilling and the work
// through ValidateWork; Analyze does not guard against division by zero or
// tick overflow.
func Analyze(work float64, unit CapacityUnit, lease LeasePlan) PurchaseAnalysis {
	required := math.Ceil(work / unit.Capacity)
	completed := work
	var units int64
	var remainder float64
	var leaseLeft int64

	if lease.OnDemand() {
		units = int64(required)
	} else {
		maxUnits := lease.MaxUnits(unit)
		if required > float64(maxUnits) {
			units = maxUnits
			completed = float64(maxUnits) * unit.Capacity
			remainder = math.Max(0, work-completed)
		} else {
			units = int64(required)
		}
		leaseLeft = lease.Length - units*unit.Duration
	}

	cost := lease.DownPayment + float64(units)*EffectiveUnitCost(unit, lease)
	billed := units * unit.Duration

	return PurchaseAnalysis{
		Units:              units,
		BilledCost:         cost,
		BilledTime:         billed,
		WorkCompleted:      completed,
		Remainder:          remainder,
		Efficiency:         completed / cost / float64(billed),
		Rate:               completed / cost,
		LeaseTimeRemaining: leaseLeft,
	}
}

// ValidateUnit checks the structural constraints of a CapacityUnit.
func ValidateUnit(unit CapacityUnit) error {
	if err := validateFinite("capacity", unit.Capacity); err != nil {
		return err
	}
	if unit.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %f", ErrConfiguration, unit.Capacity)
	}
	if unit.Duration <= 0 {
		return fmt.Errorf("%w: unit duration must be positive, got %d", ErrConfiguration, unit.Duration)
	}
	if err := validateNonNegative("unit base cost", unit.BaseCost); err != nil {
		return err
	}
	return nil
}

// ValidateLease checks the structural constraints of a LeasePlan.
func ValidateLease(lease LeasePlan) error {
	if lease.Length < 0 {
		return fmt.Errorf("%w: lease length must be non-negative, got %d", ErrConfiguration, lease.Length)
	}
	if err := validateNonNegative("lease down payment", lease.DownPayment); err != nil {
		return err
	}
	return validateNonNegative("lease unit cost fraction", lease.UnitCostFraction)
}

// ValidateBilling rejects unit/lease pairs that could price work at zero
// cost or zero time. Free instances are rejected rather than treated as
// infinitely efficient.
func ValidateBilling(unit CapacityUnit, lease LeasePlan) error {
	if err := ValidateUnit(unit); err != nil {
		return err
	}
	if err := ValidateLease(lease); err != nil {
		return err
	}
	if EffectiveUnitCost(unit, lease) == 0 && lease.DownPayment == 0 {
		return fmt.Errorf("%w: effective unit cost and down payment are both zero", ErrDegenerateBilling)
	}
	if !lease.OnDemand() && lease.MaxUnits(unit) == 0 {
		return fmt.Errorf("%w: lease length %d is shorter than unit duration %d",
			ErrDegenerateBilling, lease.Length, unit.Duration)
	}
	return nil
}

// maxTicks is the exclusive float64 bound on any tick count.
const maxTicks = float64(math.MaxInt64)

// ValidateWork rejects work that unit and lease cannot deliver within an
// int64 tick count when the consumer starts at start. On-demand plans bill
// ceil(work/capacity)*duration ticks at once; fixed plans bill at most
// Length ticks per lease and must shrink the work by a representable amount
// on every purchase.
func ValidateWork(work float64, start int64, unit CapacityUnit, lease LeasePlan) error {
	required := math.Ceil(work / unit.Capacity)
	var total float64
	if lease.OnDemand() {
		total = required * float64(unit.Duration)
	} else {
		perLease := float64(lease.MaxUnits(unit)) * unit.Capacity
		if work-perLease >= work {
			return fmt.Errorf("%w: work %g is too large for a lease delivering %g per purchase",
				ErrConfiguration, work, perLease)
		}
		total = math.Ceil(work/perLease) * float64(lease.Length)
	}
	if total >= maxTicks || float64(start)+total >= maxTicks {
		return fmt.Errorf("%w: work %g starting at tick %d needs %g ticks, beyond the tick range",
			ErrConfiguration, work, start, total)
	}
	return nil
}

func validateFinite(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%w: %s must be a finite number, got %f", ErrConfiguration, name, val)
	}
	return nil
}

func validateNonNegative(name string, val float64) error {
	if err := validateFinite(name, val); err != nil {
		return err
	}
	if val < 0 {
		return fmt.Errorf("%w: %s must be non-negative, got %f", ErrConfiguration, name, val)
	}
	return nil
}
