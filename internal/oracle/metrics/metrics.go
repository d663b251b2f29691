package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the NAV feed module.
// Tracks accepted and rejected reports plus the last accepted price.
type Metrics struct {
	ReportsAccepted *prometheus.CounterVec
	ReportsRejected *prometheus.CounterVec
	NavPrice        *prometheus.GaugeVec
	ReportDuration  prometheus.Histogram
}

// New creates a new Metrics instance with all NAV feed metrics registered.
func New() *Metrics {
	return &Metrics{
		ReportsAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caravel_nav_reports_accepted_total",
			Help: "Total number of accepted NAV reports per feed",
		}, []string{"feed"}),
		ReportsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caravel_nav_reports_rejected_total",
			Help: "Total number of rejected NAV reports per feed and rejection reason",
		}, []string{"feed", "reason"}),
		NavPrice: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "caravel_nav_price",
			Help: "Last accepted NAV price per feed, as a unit fraction of 1e18",
		}, []string{"feed"}),
		ReportDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "caravel_nav_report_duration_seconds",
			Help:    "Duration of NAV report processing including guards and persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// RecordReportAccepted records an accepted report and the new price.
func (m *Metrics) RecordReportAccepted(feed string, price float64) {
	m.ReportsAccepted.WithLabelValues(feed).Inc()
	m.NavPrice.WithLabelValues(feed).Set(price)
}

// RecordReportRejected records a rejected report with its guard reason.
func (m *Metrics) RecordReportRejected(feed, reason string) {
	m.ReportsRejected.WithLabelValues(feed, reason).Inc()
}

// ObserveReport records the duration of a Report operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveReport(start time.Time) {
	m.ReportDuration.Observe(time.Since(start).Seconds())
}
