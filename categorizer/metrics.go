package categorizer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters a run reports. Batch jobs export them with
// prometheus.WriteToTextfile for the node exporter textfile collector.
type Metrics struct {
	Registry    *prometheus.Registry
	Resolved    *prometheus.CounterVec
	RemoteCalls *prometheus.CounterVec
	Batches     *prometheus.CounterVec
	BreakerOpen prometheus.Gauge
	LedgerSize  prometheus.Gauge
}

// NewMetrics creates and registers the run metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "custmapper",
			Name:      "resolved_total",
			Help:      "Entities resolved in this run, by provenance.",
		}, []string{"source"}),
		RemoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "custmapper",
			Name:      "remote_calls_total",
			Help:      "Remote classifier calls, by outcome.",
		}, []string{"outcome"}),
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "custmapper",
			Name:      "batches_total",
			Help:      "Batches processed, by breaker state.",
		}, []string{"breaker"}),
		BreakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "custmapper",
			Name:      "breaker_open",
			Help:      "1 when the quota breaker tripped during the run.",
		}),
		LedgerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "custmapper",
			Name:      "ledger_records",
			Help:      "Records in the ledger after the run.",
		}),
	}
	m.Registry.MustRegister(m.Resolved, m.RemoteCalls, m.Batches, m.BreakerOpen, m.LedgerSize)
	return m
}

// WriteTextfile exports the registry in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

func (m *Metrics) resolved(src Provenance, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Resolved.WithLabelValues(string(src)).Add(float64(n))
}

func (m *Metrics) remoteCall(outcome string) {
	if m == nil {
		return
	}
	m.RemoteCalls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) batch(state BreakerState) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(state.String()).Inc()
}

func (m *Metrics) breakerOpened() {
	if m == nil {
		return
	}
	m.BreakerOpen.Set(1)
}

func (m *Metrics) ledgerSize(n int) {
	if m == nil {
		return
	}
	m.LedgerSize.Set(float64(n))
}
