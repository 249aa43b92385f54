// Package metrics exposes lookup and database counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Lookups by kind ("dxcc", "wpx", "lookup") and result ("ok", "no_match", "invalid")
	Lookups *prometheus.CounterVec

	LookupLatency *prometheus.HistogramVec

	// Database loads by origin and result ("ok", "error")
	Loads *prometheus.CounterVec

	Entities prometheus.Gauge
	Entries  prometheus.Gauge

	// Unix time of the last successful load
	LoadedAt prometheus.Gauge
}

// New creates a registry with the Go and process collectors plus the
// hamtools metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hamtools_lookups_total",
			Help: "Callsign lookups by kind and result",
		}, []string{"kind", "result"}),

		LookupLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hamtools_lookup_duration_seconds",
			Help:    "Duration of callsign lookups by kind",
			Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"kind"}),

		Loads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hamtools_cty_loads_total",
			Help: "Country database loads by origin and result",
		}, []string{"origin", "result"}),

		Entities: f.NewGauge(prometheus.GaugeOpts{
			Name: "hamtools_cty_entities",
			Help: "Entities in the loaded country database",
		}),
		Entries: f.NewGauge(prometheus.GaugeOpts{
			Name: "hamtools_cty_entries",
			Help: "Prefix and callsign entries in the loaded country database",
		}),
		LoadedAt: f.NewGauge(prometheus.GaugeOpts{
			Name: "hamtools_cty_loaded_timestamp_seconds",
			Help: "Unix time the country database was last loaded",
		}),
	}
}

// ObserveLookup records one lookup.
func (m *Metrics) ObserveLookup(kind, result string, d time.Duration) {
	if m != nil {
		m.Lookups.WithLabelValues(kind, result).Inc()
		m.LookupLatency.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// ObserveLoad records a load attempt. entities and entries are only used
// when err is nil.
func (m *Metrics) ObserveLoad(origin string, entities, entries int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Loads.WithLabelValues(origin, "error").Inc()
		return
	}
	m.Loads.WithLabelValues(origin, "ok").Inc()
	m.Entities.Set(float64(entities))
	m.Entries.Set(float64(entries))
	m.LoadedAt.SetToCurrentTime()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
