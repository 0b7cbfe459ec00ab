// Package metrics provides Prometheus metrics for the biosync service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRunsTotal tracks sync runs by operation and status
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "biosync",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of sync runs by operation and status",
		},
		[]string{"operation", "status"},
	)

	// SyncRunDuration tracks sync run duration in seconds
	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "biosync",
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Duration of sync runs in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"operation"},
	)

	// DeviceRequestsTotal tracks outbound requests to the device service
	DeviceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "biosync",
			Subsystem: "device",
			Name:      "requests_total",
			Help:      "Total number of outbound requests to the device service",
		},
		[]string{"method", "status_code"},
	)

	// DeviceRequestDuration tracks outbound device request duration
	DeviceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "biosync",
			Subsystem: "device",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound device requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	// CheckinsIngested tracks checkin ingestion outcomes
	CheckinsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "biosync",
			Subsystem: "ingest",
			Name:      "checkins_total",
			Help:      "Total number of punch events processed by outcome",
		},
		[]string{"outcome"},
	)

	// DiscoveryRecordsStaged tracks discovery records staged per run
	DiscoveryRecordsStaged = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "biosync",
			Subsystem: "discovery",
			Name:      "records_staged",
			Help:      "Number of unlinked device employees staged by the last discovery run",
		},
	)

	// EmployeesPublished tracks HR employees pushed to the device service
	EmployeesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "biosync",
			Subsystem: "publish",
			Name:      "employees_total",
			Help:      "Total number of employees published to the device service by status",
		},
		[]string{"status"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "biosync",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

// RecordSyncRun records a sync run outcome
func RecordSyncRun(operation, status string, durationSeconds float64) {
	SyncRunsTotal.WithLabelValues(operation, status).Inc()
	SyncRunDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordDeviceRequest records an outbound device service request
func RecordDeviceRequest(method, statusCode string, durationSeconds float64) {
	DeviceRequestsTotal.WithLabelValues(method, statusCode).Inc()
	DeviceRequestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordCheckin records a punch event ingestion outcome
func RecordCheckin(outcome string) {
	CheckinsIngested.WithLabelValues(outcome).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}
