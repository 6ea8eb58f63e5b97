// Package metrics provides Prometheus metrics for the Fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal tracks resolver invocations by flow and outcome
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Total number of resolver invocations by flow, status and error kind",
		},
		[]string{"flow", "status", "error_kind"},
	)

	// DirectoryLookupsTotal tracks directory searches by outcome
	DirectoryLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "directory",
			Name:      "lookups_total",
			Help:      "Total number of directory lookups by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// DirectoryLookupDuration tracks directory search latency
	DirectoryLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "directory",
			Name:      "lookup_duration_seconds",
			Help:      "Duration of directory lookups in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"provider"},
	)

	// RecordsCreatedTotal tracks records written to the record store
	RecordsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "recordstore",
			Name:      "records_created_total",
			Help:      "Total number of business and competitor records created",
		},
		[]string{"kind"},
	)

	// EventsPublishedTotal tracks onboarding events published to Kafka
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of onboarding events published by type and status",
		},
		[]string{"event_type", "status"},
	)

	// GraphProjectionsTotal tracks competitor graph writes
	GraphProjectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "graph",
			Name:      "projections_total",
			Help:      "Total number of graph projections by kind and status",
		},
		[]string{"kind", "status"},
	)
)

// RecordResolution records one resolver step
func RecordResolution(flow, status, errorKind string) {
	ResolutionsTotal.WithLabelValues(flow, status, errorKind).Inc()
}

// RecordDirectoryLookup records a directory search and its latency
func RecordDirectoryLookup(provider, outcome string, durationSeconds float64) {
	DirectoryLookupsTotal.WithLabelValues(provider, outcome).Inc()
	DirectoryLookupDuration.WithLabelValues(provider).Observe(durationSeconds)
}

// RecordCreated records a created business or competitor
func RecordCreated(kind string) {
	RecordsCreatedTotal.WithLabelValues(kind).Inc()
}

// RecordEventPublished records an event publish attempt
func RecordEventPublished(eventType, status string) {
	EventsPublishedTotal.WithLabelValues(eventType, status).Inc()
}

// RecordGraphProjection records a graph write
func RecordGraphProjection(kind, status string) {
	GraphProjectionsTotal.WithLabelValues(kind, status).Inc()
}
