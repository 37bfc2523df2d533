package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query kinds used as the "kind" label of QueryFailures.
const (
	QueryDiscovery = "discovery"
	QueryBootstrap = "bootstrap"
	QueryFetch     = "fetch"
)

var (
	// Cycle metrics
	CyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "podtrail_cycles_total",
			Help: "Total number of completed poll cycles",
		},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "podtrail_cycle_duration_seconds",
			Help:    "Duration of a poll cycle from discovery to aggregation",
			Buckets: prometheus.DefBuckets,
		},
	)

	ActiveSources = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "podtrail_active_sources",
			Help: "Number of sources polled in the latest cycle",
		},
	)

	SourceByteShare = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "podtrail_source_byte_share",
			Help: "Per-source byte limit used in the latest cycle",
		},
	)

	// Entry metrics
	EntriesCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "podtrail_entries_collected_total",
			Help: "Entries accepted past the watermark, including empty anchors",
		},
		[]string{"namespace", "pod"},
	)

	BatchEntries = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "podtrail_batch_entries",
			Help:    "Number of deliverable entries per batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	WatermarkSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "podtrail_watermark_timestamp_seconds",
			Help: "Latest accepted log timestamp per source",
		},
		[]string{"namespace", "pod", "container"},
	)

	// Error metrics
	QueryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "podtrail_query_failures_total",
			Help: "Failed external queries by kind",
		},
		[]string{"kind"},
	)

	// Delivery metrics
	DeliveryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "podtrail_delivery_total",
			Help: "Batch delivery attempts by sink and status",
		},
		[]string{"sink", "status"},
	)

	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "podtrail_delivery_duration_seconds",
			Help:    "Duration of batch delivery in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CheckpointErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "podtrail_checkpoint_errors_total",
			Help: "Total number of failed watermark checkpoint writes",
		},
	)
)
