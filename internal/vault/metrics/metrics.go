package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the vault module.
// Tracks flow outcomes per operation, accrued exit fees, and the open
// withdrawal queue.
type Metrics struct {
	FlowsCompleted *prometheus.CounterVec
	FlowsRejected  *prometheus.CounterVec
	ExitFees       prometheus.Counter
	QueueOpen      prometheus.Gauge
	FlowDuration   *prometheus.HistogramVec
}

// New creates a new Metrics instance with all vault metrics registered.
func New() *Metrics {
	return &Metrics{
		FlowsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caravel_vault_flows_total",
			Help: "Total number of completed vault operations per operation",
		}, []string{"op"}),
		FlowsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caravel_vault_flows_rejected_total",
			Help: "Total number of rejected vault operations per operation and reason",
		}, []string{"op", "reason"}),
		ExitFees: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caravel_vault_exit_fees_accrued_total",
			Help: "Cumulative exit fees accrued, in asset base units",
		}),
		QueueOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "caravel_vault_withdrawal_queue_open",
			Help: "Withdrawal requests currently open",
		}),
		FlowDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "caravel_vault_flow_duration_seconds",
			Help:    "Duration of vault operations including pricing and ledger moves",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
	}
}

// RecordFlow records a completed operation and its duration.
// Call with time.Now() from the start of the operation.
func (m *Metrics) RecordFlow(op string, start time.Time) {
	m.FlowsCompleted.WithLabelValues(op).Inc()
	m.FlowDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// RecordFlowRejected records a rejected operation with its reason.
func (m *Metrics) RecordFlowRejected(op, reason string) {
	m.FlowsRejected.WithLabelValues(op, reason).Inc()
}

// AddExitFees adds newly accrued fees in asset base units.
func (m *Metrics) AddExitFees(amount float64) {
	m.ExitFees.Add(amount)
}

// QueueOpened notes a new open withdrawal request.
func (m *Metrics) QueueOpened() {
	m.QueueOpen.Inc()
}

// QueueClosed notes a claimed or cancelled request.
func (m *Metrics) QueueClosed() {
	m.QueueOpen.Dec()
}
