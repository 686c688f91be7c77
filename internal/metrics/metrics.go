package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sysqueryd_connections_total",
			Help: "Number of accepted client connections",
		},
	)
	Requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sysqueryd_requests_total",
			Help: "Responses written, by endpoint and status code",
		},
		[]string{"endpoint", "status"},
	)
	ConnectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sysqueryd_connection_errors_total",
			Help: "Per-connection failures, by stage (accept, receive, send, close)",
		},
		[]string{"stage"},
	)
	CommandDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sysqueryd_command_duration_seconds",
			Help:    "Wall time of external commands run by the executor",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)
	LoadPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sysqueryd_cpu_load_percent",
			Help: "Most recent CPU load measurement",
		},
	)
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
