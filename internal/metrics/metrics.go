package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics tracks account lifecycle operations, code retrieval and the
// notification feed.
type Metrics struct {
	Operations           *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec
	LockWaitDuration     prometheus.Histogram
	TOTPGenerated        prometheus.Counter
	NotificationsDerived *prometheus.CounterVec
	ExpirySweeps         prometheus.Counter

	factory promauto.Factory
}

// New registers all metrics with reg. Pass prometheus.DefaultRegisterer in
// the server and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		factory: f,
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_operations_total",
			Help: "Account lifecycle operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "accounts_operation_duration_seconds",
			Help:    "Duration of account lifecycle operations including lock wait",
			Buckets: durationBuckets,
		}, []string{"operation"}),
		LockWaitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "accounts_lock_wait_seconds",
			Help:    "Time spent waiting for the per-account write lock",
			Buckets: durationBuckets,
		}),
		TOTPGenerated: f.NewCounter(prometheus.CounterOpts{
			Name: "accounts_totp_codes_generated_total",
			Help: "Total number of one-time codes generated",
		}),
		NotificationsDerived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_notifications_derived_total",
			Help: "Expiry notifications derived by status",
		}, []string{"status"}),
		ExpirySweeps: f.NewCounter(prometheus.CounterOpts{
			Name: "accounts_expiry_sweeps_total",
			Help: "Completed runs of the expiry sweep job",
		}),
	}
}

// ObserveOperation records the outcome and duration of a lifecycle operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(op, outcome string, start time.Time) {
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveLockWait(start time.Time) {
	m.LockWaitDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementTOTP() {
	m.TOTPGenerated.Inc()
}

func (m *Metrics) AddNotifications(status string, n int) {
	m.NotificationsDerived.WithLabelValues(status).Add(float64(n))
}

func (m *Metrics) IncrementSweeps() {
	m.ExpirySweeps.Inc()
}

// TrackStreamClients exports the number of connected event-stream clients as
// reported by count. Call once per Metrics.
func (m *Metrics) TrackStreamClients(count func() int) {
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "accounts_event_stream_clients",
		Help: "Currently connected event-stream clients",
	}, func() float64 { return float64(count()) })
}
