// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsAdmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_admitted_total",
			Help: "Total number of notifications admitted to the store",
		},
		[]string{"type"},
	)

	NotificationsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_deduplicated_total",
			Help: "Total number of notifications dropped by the dedup window",
		},
	)

	NotificationsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_evicted_total",
			Help: "Total number of notifications evicted by the store cap",
		},
	)

	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_persistence_failures_total",
			Help: "Total number of failed persistence sync calls",
		},
		[]string{"operation"},
	)

	SinkFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_sink_failures_total",
			Help: "Total number of presentation sink delivery failures",
		},
		[]string{"sink"},
	)

	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transport_reconnect_attempts_total",
			Help: "Total number of transport reconnection attempts",
		},
	)

	ConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transport_connection_status",
			Help: "Current connection status (0=disconnected, 1=connecting, 2=connected, 3=error)",
		},
	)
)
