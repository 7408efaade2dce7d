// Package sim provides the discrete-event engine for the compute marketplace
// simulator.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - billing.go: CapacityUnit, LeasePlan and the purchase analysis (cost, time, remainder)
//   - consumer.go: the consumer decision cycle (shop, purchase, suspend)
//   - marketplace.go: the event loop, consumer spawning and result collection
//
// # Architecture
//
// A Marketplace owns an immutable Catalog of Instances and a population of
// Consumers. Each consumer decision cycle is a DecisionEvent on a min-heap
// ordered by (tick, scheduling order). A cycle prices the consumer's
// remaining work on every instance, buys the most cost-efficient one through
// the Ledger and reschedules itself after the billed duration. Execution is
// single-threaded; no locking is needed.
//
// Sub-packages:
//   - sim/workload/: YAML market specs, validation and seeded consumer generation
//   - sim/trace/: purchase decision trace recording
//   - sim/report/: SVG timeline rendering
package sim
