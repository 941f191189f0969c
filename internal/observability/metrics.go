package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "firelinx"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Result label values for received alerts.
const (
	ResultDecoded   = "decoded"
	ResultMalformed = "malformed"
	ResultDuplicate = "duplicate"
)

// Metrics holds the Prometheus collectors shared by the services.
type Metrics struct {
	AlertsPublished        *prometheus.CounterVec // labels: outcome={success,error,timeout}
	PublishDuration        prometheus.Histogram
	BrokerState            prometheus.Gauge
	BrokerConnectionErrors prometheus.Counter
	AlertsReceived         *prometheus.CounterVec // labels: result={decoded,malformed,duplicate}
	RemoteRequests         *prometheus.CounterVec // labels: endpoint={sos,recognize}, outcome
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.AlertsPublished,
		m.PublishDuration,
		m.BrokerState,
		m.BrokerConnectionErrors,
		m.AlertsReceived,
		m.RemoteRequests,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as many
// as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		AlertsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_published_total",
			Help:      "Fire alerts published, by outcome.",
		}, []string{"outcome"}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time from publish request to broker acknowledgment.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		BrokerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_state",
			Help:      "Connection state: 0 uninitialized, 1 connecting, 2 connected, 3 reconnecting, 4 closed.",
		}),
		BrokerConnectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_connection_errors_total",
			Help:      "Transport errors reported by the connection manager.",
		}),
		AlertsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_received_total",
			Help:      "Messages received by the listener, by result.",
		}, []string{"result"}),
		RemoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Calls to the SOS and recognition services, by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
	}
}
