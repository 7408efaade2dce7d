package workload

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/market-sim/sim"
	"github.com/inference-sim/market-sim/sim/trace"
)

// MarketSpec is the top-level market configuration.
// Loaded from YAML via LoadMarketSpec(path).
type MarketSpec struct {
	Name      string         `yaml:"name"`
	MaxTime   int64          `yaml:"max_time,omitempty"` // 0 = unbounded
	Seed      int64          `yaml:"seed"`
	TieBreak  string         `yaml:"tie_break,omitempty"`
	Instances []InstanceSpec `yaml:"instances"`
	Consumers ConsumerSpec   `yaml:"consumers"`
}

// InstanceSpec describes one catalog entry.
type InstanceSpec struct {
	Name                  string  `yaml:"name"`
	Description           string  `yaml:"description"`
	Capacity              float64 `yaml:"capacity"`
	UnitDuration          int64   `yaml:"unit_duration"`
	UnitBaseCost          float64 `yaml:"unit_base_cost"`
	LeaseLength           int64   `yaml:"lease_length"`
	LeaseDownPayment      float64 `yaml:"lease_down_payment"`
	LeaseUnitCostFraction float64 `yaml:"lease_unit_cost_fraction"`
}

// ConsumerSpec lists consumers explicitly as parallel sequences and/or asks
// for a seeded random population.
type ConsumerSpec struct {
	Work      []float64     `yaml:"work,omitempty"`
	StartTime []int64       `yaml:"start_time,omitempty"`
	Generate  *GenerateSpec `yaml:"generate,omitempty"`
}

// GenerateSpec draws Count consumers with work uniform in [WorkMin, WorkMax]
// and start ticks uniform in [StartMin, StartMax].
type GenerateSpec struct {
	Count    int     `yaml:"count"`
	WorkMin  float64 `yaml:"work_min"`
	WorkMax  float64 `yaml:"work_max"`
	StartMin int64   `yaml:"start_min"`
	StartMax int64   `yaml:"start_max"`
}

// LoadMarketSpec reads and parses a YAML market specification file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadMarketSpec(path string) (*MarketSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading market spec: %w", err)
	}
	return ParseMarketSpec(data)
}

// ParseMarketSpec parses YAML market spec bytes with strict field checking.
func ParseMarketSpec(data []byte) (*MarketSpec, error) {
	var spec MarketSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("%w: parsing market spec: %w", sim.ErrConfiguration, err)
	}
	if spec.Name == "" {
		spec.Name = "market"
	}
	return &spec, nil
}

// Validate checks that all fields in the spec are valid. Billing checks are
// delegated to the sim package so the same rules apply to programmatic
// catalogs.
func (s *MarketSpec) Validate() error {
	if s.MaxTime < 0 {
		return fmt.Errorf("%w: max_time must be non-negative, got %d", sim.ErrConfiguration, s.MaxTime)
	}
	if !sim.IsValidTieBreak(s.TieBreak) {
		return fmt.Errorf("%w: unknown tie_break %q; valid: last, first", sim.ErrConfiguration, s.TieBreak)
	}
	if len(s.Instances) == 0 {
		return fmt.Errorf("%w: at least one instance required", sim.ErrConfiguration)
	}
	for i := range s.Instances {
		if err := validateInstance(&s.Instances[i], i); err != nil {
			return err
		}
	}
	return s.Consumers.validate()
}

func validateInstance(in *InstanceSpec, idx int) error {
	prefix := fmt.Sprintf("instances[%d]", idx)
	if in.Name == "" {
		return fmt.Errorf("%w: %s: name is required", sim.ErrConfiguration, prefix)
	}
	if err := sim.ValidateBilling(in.unit(), in.lease()); err != nil {
		return fmt.Errorf("%s (%s): %w", prefix, in.Name, err)
	}
	return nil
}

func (c *ConsumerSpec) validate() error {
	if len(c.Work) != len(c.StartTime) {
		return fmt.Errorf("%w: consumers: %d work amounts but %d start times",
			sim.ErrConfiguration, len(c.Work), len(c.StartTime))
	}
	if len(c.Work) == 0 && (c.Generate == nil || c.Generate.Count == 0) {
		return fmt.Errorf("%w: consumers: at least one explicit or generated consumer required", sim.ErrConfiguration)
	}
	if c.Generate != nil {
		if err := c.Generate.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (g *GenerateSpec) validate() error {
	if g.Count < 0 {
		return fmt.Errorf("%w: consumers.generate.count must be non-negative, got %d", sim.ErrConfiguration, g.Count)
	}
	if err := validateFinitePositive("consumers.generate.work_min", g.WorkMin); err != nil {
		return err
	}
	if err := validateFinitePositive("consumers.generate.work_max", g.WorkMax); err != nil {
		return err
	}
	if g.WorkMax < g.WorkMin {
		return fmt.Errorf("%w: consumers.generate.work_max %f is below work_min %f", sim.ErrConfiguration, g.WorkMax, g.WorkMin)
	}
	if g.StartMin < 0 || g.StartMax < g.StartMin {
		return fmt.Errorf("%w: consumers.generate start range [%d, %d] is invalid", sim.ErrConfiguration, g.StartMin, g.StartMax)
	}
	// the start draw spans StartMax-StartMin+1 ticks, which must fit in int64
	if g.StartMax-g.StartMin >= math.MaxInt64 {
		return fmt.Errorf("%w: consumers.generate start range [%d, %d] is too wide", sim.ErrConfiguration, g.StartMin, g.StartMax)
	}
	return nil
}

func validateFinitePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%w: %s must be a finite number, got %f", sim.ErrConfiguration, name, val)
	}
	if val <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %f", sim.ErrConfiguration, name, val)
	}
	return nil
}

func (in *InstanceSpec) unit() sim.CapacityUnit {
	return sim.CapacityUnit{Capacity: in.Capacity, Duration: in.UnitDuration, BaseCost: in.UnitBaseCost}
}

func (in *InstanceSpec) lease() sim.LeasePlan {
	return sim.LeasePlan{Length: in.LeaseLength, DownPayment: in.LeaseDownPayment, UnitCostFraction: in.LeaseUnitCostFraction}
}

// BuildCatalog constructs the validated instance catalog in spec order.
func (s *MarketSpec) BuildCatalog() (sim.Catalog, error) {
	instances := make([]*sim.Instance, 0, len(s.Instances))
	for _, in := range s.Instances {
		inst, err := sim.NewInstance(in.Name, in.Description, in.unit(), in.lease())
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return sim.NewCatalog(instances)
}

// BuildConsumers returns the explicit consumers followed by the generated ones.
func (s *MarketSpec) BuildConsumers() (sim.ConsumerSpecs, error) {
	if err := s.Consumers.validate(); err != nil {
		return sim.ConsumerSpecs{}, err
	}
	specs := sim.ConsumerSpecs{
		Work:      append([]float64{}, s.Consumers.Work...),
		StartTime: append([]int64{}, s.Consumers.StartTime...),
	}
	if g := s.Consumers.Generate; g != nil {
		gen := GenerateConsumers(*g, s.Seed)
		specs.Work = append(specs.Work, gen.Work...)
		specs.StartTime = append(specs.StartTime, gen.StartTime...)
	}
	return specs, specs.Validate()
}

// MarketConfig validates the spec and assembles a sim.MarketConfig.
// pt may be nil to disable tracing.
func (s *MarketSpec) MarketConfig(pt *trace.PurchaseTrace) (sim.MarketConfig, error) {
	if err := s.Validate(); err != nil {
		return sim.MarketConfig{}, err
	}
	catalog, err := s.BuildCatalog()
	if err != nil {
		return sim.MarketConfig{}, err
	}
	consumers, err := s.BuildConsumers()
	if err != nil {
		return sim.MarketConfig{}, err
	}
	return sim.MarketConfig{
		Name:      s.Name,
		Catalog:   catalog,
		Consumers: consumers,
		MaxTime:   s.MaxTime,
		TieBreak:  sim.TieBreak(s.TieBreak),
		Trace:     pt,
	}, nil
}
