package sim

// Event defines the interface for all marketplace events.
// Each event must have a Timestamp (in ticks) and an Execute method
// that advances simulation state when invoked.
type Event interface {
	Timestamp() int64
	Execute(*Marketplace)
}

// eventEntry wraps an Event with a sequence ID for deterministic FIFO
// tie-breaking when timestamps are equal.
type eventEntry struct {
	event Event
	seqID int64
}

// EventQueue is a min-heap ordered by (Timestamp, seqID).
// Implements heap.Interface.
type EventQueue []eventEntry

func (q EventQueue) Len() int { return len(q) }

func (q EventQueue) Less(i, j int) bool {
	if q[i].event.Timestamp() != q[j].event.Timestamp() {
		return q[i].event.Timestamp() < q[j].event.Timestamp()
	}
	return q[i].seqID < q[j].seqID
}

func (q EventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *EventQueue) Push(x any) {
	*q = append(*q, x.(eventEntry))
}

func (q *EventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// DecisionEvent resumes a consumer for one decision cycle.
type DecisionEvent struct {
	time     int64
	consumer *Consumer
}

// Timestamp returns the scheduled time of the DecisionEvent.
func (e *DecisionEvent) Timestamp() int64 {
	return e.time
}

// Execute runs the consumer's decision cycle and, if work remains, schedules
// the next one after the purchased duration.
func (e *DecisionEvent) Execute(m *Marketplace) {
	m.decide(e.consumer, e.time)
}
