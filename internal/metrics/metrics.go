// Package metrics exposes StatusHub's Prometheus collectors. All helper
// methods are nil-safe so components can run without metrics wired.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Darkatse/StatusHub/internal/presence"
)

var statusValues = []presence.Status{
	presence.StatusOnline, presence.StatusIdle, presence.StatusDnd,
	presence.StatusOffline, presence.StatusInvisible, presence.StatusUnknown,
}

type Metrics struct {
	Registry *prometheus.Registry

	observations prometheus.Counter
	events       *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	enrichment   *prometheus.CounterVec
	reloads      prometheus.Counter
	status       *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		observations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statushub_observations_total",
			Help: "Presence snapshots consumed from the inbound feed.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statushub_events_total",
			Help: "Status events emitted, by kind (change or reminder).",
		}, []string{"kind"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statushub_deliveries_total",
			Help: "Delivery attempts, by outcome (ok, error, dropped).",
		}, []string{"outcome"}),
		enrichment: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statushub_enrichment_lookups_total",
			Help: "Enrichment lookups, by result (hit, fetched, missing, failed).",
		}, []string{"result"}),
		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statushub_config_reloads_total",
			Help: "Config reloads applied at runtime.",
		}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "statushub_current_status",
			Help: "Last observed status of the monitored subject (1 = current).",
		}, []string{"status"}),
	}
	m.Registry.MustRegister(m.observations, m.events, m.deliveries, m.enrichment, m.reloads, m.status)
	return m
}

func (m *Metrics) ObserveSnapshot() {
	if m == nil {
		return
	}
	m.observations.Inc()
}

func (m *Metrics) EventEmitted(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) Delivery(outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) EnrichmentLookup(result string) {
	if m == nil {
		return
	}
	m.enrichment.WithLabelValues(result).Inc()
}

func (m *Metrics) ConfigReloaded() {
	if m == nil {
		return
	}
	m.reloads.Inc()
}

func (m *Metrics) SetStatus(s presence.Status) {
	if m == nil {
		return
	}
	for _, v := range statusValues {
		val := 0.0
		if v == s {
			val = 1.0
		}
		m.status.WithLabelValues(string(v)).Set(val)
	}
}
