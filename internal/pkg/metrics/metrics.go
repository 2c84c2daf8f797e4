// Package metrics exposes the pipeline's Prometheus instrumentation. Device
// protocols hide failures behind success acknowledgments, so the counters
// here are often the only visible signal that payloads are being dropped.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "punch_events_received_total",
		Help: "Raw punch payload rows received, before parsing.",
	}, []string{"transport"})

	EventsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "punch_events_stored_total",
		Help: "Raw punch events stored as new rows.",
	}, []string{"transport"})

	EventsDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "punch_events_duplicate_total",
		Help: "Re-delivered punch events matched to an existing row.",
	}, []string{"transport"})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "punch_events_dropped_total",
		Help: "Punch payload rows dropped as malformed or filtered.",
	}, []string{"transport", "reason"})

	SummariesUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_summaries_upserted_total",
		Help: "Attendance summaries written by the aggregator.",
	}, []string{"op"})

	JoinDateViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_join_date_violations_total",
		Help: "Grouped days skipped because they precede the employee join date.",
	})

	PlaceholdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "identity_placeholders_created_total",
		Help: "Auto-generated identities created for unresolved tokens.",
	})
)

// Transport label values.
const (
	TransportPush       = "push"
	TransportDirectPush = "direct_push"
	TransportLegacy     = "legacy"
	TransportImport     = "import"
)
