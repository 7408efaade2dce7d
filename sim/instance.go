package sim

import (
	"fmt"
)

// InstanceStats accumulates usage of one instance over a run.
// Only the Ledger mutates it.
type InstanceStats struct {
	Invocations int
	Income      float64
	WorkDone    float64
	TimeBilled  int64
	UnusedTime  int64 // paid lease ticks left unused
}

// Instance is a marketed combination of a CapacityUnit and a LeasePlan.
type Instance struct {
	Name        string
	Description string
	Unit        CapacityUnit
	Lease       LeasePlan
	Stats       InstanceStats
}

// NewInstance validates the billing parameters and returns a ready instance.
// Parameters are immutable afterwards, so purchases are never re-validated.
func NewInstance(name, description string, unit CapacityUnit, lease LeasePlan) (*Instance, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: instance name must not be empty", ErrConfiguration)
	}
	if err := ValidateBilling(unit, lease); err != nil {
		return nil, fmt.Errorf("instance %q: %w", name, err)
	}
	return &Instance{
		Name:        name,
		Description: description,
		Unit:        unit,
		Lease:       lease,
	}, nil
}

// Analyze prices a purchase of work on this instance.
func (inst *Instance) Analyze(work float64) PurchaseAnalysis {
	return Analyze(work, inst.Unit, inst.Lease)
}

func (inst *Instance) record(a PurchaseAnalysis) {
	inst.Stats.Invocations++
	inst.Stats.Income += a.BilledCost
	inst.Stats.WorkDone += a.WorkCompleted
	inst.Stats.TimeBilled += a.BilledTime
	inst.Stats.UnusedTime += a.LeaseTimeRemaining
}

// InstanceRecord is the reporting snapshot of an instance after a run.
type InstanceRecord struct {
	Name              string  `json:"name"`
	Invocations       int     `json:"invocations"`
	Description       string  `json:"description"`
	Capacity          float64 `json:"capacity"`
	UnitDuration      int64   `json:"unit_duration"`
	UnitBaseCost      float64 `json:"unit_base_cost"`
	UnitCostFraction  float64 `json:"unit_cost_fraction"`
	EffectiveUnitCost float64 `json:"effective_unit_cost"`
	LeaseLength       int64   `json:"lease_length"`
	DownPayment       float64 `json:"down_payment"`
	Income            float64 `json:"income"`
	WorkDone          float64 `json:"work_done"`
	TimeBilled        int64   `json:"time_billed"`
	UnusedTime        int64   `json:"unused_time"`
}

// Record snapshots the instance's parameters and statistics.
func (inst *Instance) Record() InstanceRecord {
	return InstanceRecord{
		Name:              inst.Name,
		Invocations:       inst.Stats.Invocations,
		Description:       inst.Description,
		Capacity:          inst.Unit.Capacity,
		UnitDuration:      inst.Unit.Duration,
		UnitBaseCost:      inst.Unit.BaseCost,
		UnitCostFraction:  inst.Lease.UnitCostFraction,
		EffectiveUnitCost: EffectiveUnitCost(inst.Unit, inst.Lease),
		LeaseLength:       inst.Lease.Length,
		DownPayment:       inst.Lease.DownPayment,
		Income:            inst.Stats.Income,
		WorkDone:          inst.Stats.WorkDone,
		TimeBilled:        inst.Stats.TimeBilled,
		UnusedTime:        inst.Stats.UnusedTime,
	}
}

// Catalog is the ordered set of instances on offer. Order matters for
// tie-breaking during selection.
type Catalog []*Instance

// NewCatalog rejects empty catalogs and duplicate instance names.
func NewCatalog(instances []*Instance) (Catalog, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: catalog must contain at least one instance", ErrConfiguration)
	}
	seen := make(map[string]bool, len(instances))
	for i, inst := range instances {
		if inst == nil {
			return nil, fmt.Errorf("%w: catalog entry %d is nil", ErrConfiguration, i)
		}
		if seen[inst.Name] {
			return nil, fmt.Errorf("%w: duplicate instance name %q", ErrConfiguration, inst.Name)
		}
		seen[inst.Name] = true
	}
	return Catalog(instances), nil
}

// Records snapshots every instance in catalog order.
func (c Catalog) Records() []InstanceRecord {
	records := make([]InstanceRecord, len(c))
	for i, inst := range c {
		records[i] = inst.Record()
	}
	return records
}
