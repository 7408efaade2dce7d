package sim

import "testing"

// mustInstance builds an instance or fails the test.
func mustInstance(t *testing.T, name string, unit CapacityUnit, lease LeasePlan) *Instance {
	t.Helper()
	inst, err := NewInstance(name, name+" instance", unit, lease)
	if err != nil {
		t.Fatalf("NewInstance(%s): %v", name, err)
	}
	return inst
}

// mustMarketplace builds a marketplace or fails the test.
func mustMarketplace(t *testing.T, cfg MarketConfig) *Marketplace {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "test"
	}
	m, err := NewMarketplace(cfg)
	if err != nil {
		t.Fatalf("NewMarketplace: %v", err)
	}
	return m
}
