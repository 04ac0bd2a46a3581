package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	iface "github.com/goliatone/go-catalog-notifier/pkg/interfaces/metrics"
)

// Metrics holds the Prometheus series of the notifier on a private registry.
type Metrics struct {
	DeliveriesTotal  *prometheus.CounterVec
	LedgerErrors     *prometheus.CounterVec
	DeliveryDuration *prometheus.HistogramVec
	PendingRecords   *prometheus.GaugeVec

	registry *prometheus.Registry
}

var _ iface.Collector = (*Metrics)(nil)

// New creates the series and registers them.
func New() *Metrics {
	m := &Metrics{
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_notifier_deliveries_total",
			Help: "Delivery attempts by action and outcome",
		}, []string{"action", "outcome"}),
		LedgerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_notifier_ledger_errors_total",
			Help: "Ledger storage operations that failed",
		}, []string{"operation"}),
		DeliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_notifier_delivery_duration_seconds",
			Help:    "Duration of catalog calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"action"}),
		PendingRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "catalog_notifier_pending_records",
			Help: "Pending resend records seen in the last scan of a project",
		}, []string{"project"}),
	}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		m.DeliveriesTotal,
		m.LedgerErrors,
		m.DeliveryDuration,
		m.PendingRecords,
	)
	return m
}

// Registry exposes the registry for gatherers and tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Record(operation string, labels map[string]string) {
	if m == nil {
		return
	}
	switch operation {
	case iface.OpDelivery:
		m.DeliveriesTotal.WithLabelValues(labels["action"], labels["outcome"]).Inc()
	case iface.OpLedgerError:
		m.LedgerErrors.WithLabelValues(labels["operation"]).Inc()
	}
}

func (m *Metrics) Observe(operation string, value float64, labels map[string]string) {
	if m == nil {
		return
	}
	switch operation {
	case iface.OpDeliveryDuration:
		m.DeliveryDuration.WithLabelValues(labels["action"]).Observe(value)
	case iface.OpPendingObserved:
		m.PendingRecords.WithLabelValues(labels["project"]).Set(value)
	}
}
