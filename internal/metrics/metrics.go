// Package metrics counts reconciliation outcomes and exports them as a
// node-exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/chrissnell/pvreconcile/internal/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the run metrics. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	DaysTotal       *prometheus.CounterVec
	DecisionsTotal  *prometheus.CounterVec
	ParseErrors     *prometheus.CounterVec
	RowsWritten     *prometheus.GaugeVec
	SitesTotal      *prometheus.CounterVec
	SiteDuration    prometheus.Histogram
	LastRunFinished prometheus.Gauge
}

// New constructs metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		DaysTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvreconcile_days_total",
				Help: "Calendar days processed by site and outcome",
			},
			[]string{"site", "outcome"},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvreconcile_exclusion_decisions_total",
				Help: "Exclusion decisions by site, reason and scope",
			},
			[]string{"site", "reason", "scope"},
		),
		ParseErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvreconcile_parse_errors_total",
				Help: "Raw files skipped as unreadable by site",
			},
			[]string{"site"},
		),
		RowsWritten: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pvreconcile_rows_written",
				Help: "Rows in the last SiteTable written for each site",
			},
			[]string{"site"},
		),
		SitesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvreconcile_sites_total",
				Help: "Site runs by final status",
			},
			[]string{"status"},
		),
		SiteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pvreconcile_site_duration_seconds",
			Help:    "Wall time of one site run",
			Buckets: prometheus.DefBuckets,
		}),
		LastRunFinished: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pvreconcile_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
	m.registry.MustRegister(
		m.DaysTotal,
		m.DecisionsTotal,
		m.ParseErrors,
		m.RowsWritten,
		m.SitesTotal,
		m.SiteDuration,
		m.LastRunFinished,
	)
	return m
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordDays(site string, accepted, excluded int) {
	if m == nil {
		return
	}
	m.DaysTotal.WithLabelValues(site, "accepted").Add(float64(accepted))
	m.DaysTotal.WithLabelValues(site, "excluded").Add(float64(excluded))
}

func (m *Metrics) RecordDecisions(site string, decisions []types.ExclusionDecision) {
	if m == nil {
		return
	}
	for _, d := range decisions {
		m.DecisionsTotal.WithLabelValues(site, string(d.Reason), string(d.Scope)).Inc()
	}
}

func (m *Metrics) RecordParseErrors(site string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ParseErrors.WithLabelValues(site).Add(float64(n))
}

func (m *Metrics) RecordRows(site string, n int) {
	if m == nil {
		return
	}
	m.RowsWritten.WithLabelValues(site).Set(float64(n))
}

func (m *Metrics) RecordSite(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SitesTotal.WithLabelValues(status).Inc()
	m.SiteDuration.Observe(elapsed.Seconds())
}

// WriteTextfile stamps the finish time and writes every metric to path
// in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	m.LastRunFinished.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
