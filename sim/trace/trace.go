package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelPurchases captures every consumer purchase decision.
	TraceLevelPurchases TraceLevel = "purchases"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelPurchases: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// PurchaseTrace collects decision records during a marketplace run.
type PurchaseTrace struct {
	Config    TraceConfig
	Purchases []PurchaseRecord
}

// NewPurchaseTrace creates a PurchaseTrace ready for recording.
// Returns nil when the level disables tracing.
func NewPurchaseTrace(config TraceConfig) *PurchaseTrace {
	if config.Level == "" || config.Level == TraceLevelNone {
		return nil
	}
	return &PurchaseTrace{
		Config:    config,
		Purchases: make([]PurchaseRecord, 0),
	}
}

// RecordPurchase appends a purchase decision record.
func (pt *PurchaseTrace) RecordPurchase(record PurchaseRecord) {
	pt.Purchases = append(pt.Purchases, record)
}

// ForConsumer returns the consumer's purchases in decision order.
func (pt *PurchaseTrace) ForConsumer(name string) []PurchaseRecord {
	if pt == nil {
		return nil
	}
	var out []PurchaseRecord
	for _, p := range pt.Purchases {
		if p.Consumer == name {
			out = append(out, p)
		}
	}
	return out
}
