package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "receptionsuite"

	metricLabelRoute  = "route"
	metricLabelStatus = "status"
	metricLabelResult = "result"
)

// Server metrics
var (
	// ServiceRequestCounter count the number of requests for each route
	ServiceRequestCounter = newCounterVec(
		"service_request_count",
		"Count of requests for each route",
		metricLabelRoute, metricLabelStatus,
	)
	// ServiceRequestDuration observe the duration of requests for each route
	ServiceRequestDuration = newSummaryVec(
		"service_request_duration_seconds",
		"Seconds to read a request, execute it and write its response",
		metricLabelRoute, metricLabelStatus,
	)
	// StorageWriteFailedCounter count the number of documents that could not be stored
	StorageWriteFailedCounter = newCounterVec(
		"storage_write_failed_count",
		"Number of failures to write a resource document",
	)
	// HistoryPersistFailedCounter count the number of failed attempts to back up a previous version
	HistoryPersistFailedCounter = newCounterVec(
		"history_persist_failed_count",
		"Number of failures to store a resource backup",
	)
)

// Offline write queue metrics
var (
	// QueueLengthGauge tracks the number of pending queue entries
	QueueLengthGauge = newGaugeVec(
		"queue_length",
		"Number of pending writes in the offline queue",
	)
	// QueueDeliveryCounter counts delivery attempts by result
	QueueDeliveryCounter = newCounterVec(
		"queue_delivery_count",
		"Number of delivery attempts by result",
		metricLabelResult,
	)
	// QueueDrainDuration observe the duration of each drain pass
	QueueDrainDuration = newSummaryVec(
		"queue_drain_duration_seconds",
		"Duration in seconds of a drain pass",
	)
	// QueuePersistFailedCounter counts failures to persist the queue locally
	QueuePersistFailedCounter = newCounterVec(
		"queue_persist_failed_count",
		"Number of failures to persist the offline queue",
	)
	// ConnectivityOnlineGauge is 1 while the storage server answers heartbeats
	ConnectivityOnlineGauge = newGaugeVec(
		"connectivity_online",
		"Whether the storage server is reachable",
	)
)

func newSummaryVec(name, help string, labels ...string) *prometheus.SummaryVec {
	vec := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}

func newCounterVec(name, help string, labels ...string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}

func newGaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	vec := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}
