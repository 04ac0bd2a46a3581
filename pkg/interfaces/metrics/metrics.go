package metrics

// Collector lets services report counters and observations without importing
// a metrics backend.
type Collector interface {
	Record(operation string, labels map[string]string)
	Observe(operation string, value float64, labels map[string]string)
}

// Nop discards everything.
type Nop struct{}

var _ Collector = (*Nop)(nil)

func (n *Nop) Record(operation string, labels map[string]string)                 {}
func (n *Nop) Observe(operation string, value float64, labels map[string]string) {}

// Operation names understood by collectors.
const (
	OpDelivery         = "delivery"
	OpDeliveryDuration = "delivery_duration"
	OpLedgerError      = "ledger_error"
	OpPendingObserved  = "pending_observed"
)
