package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SyncMetrics exposes sync engine counters to Prometheus. Labels stay at
// provider granularity; tenant ids are deliberately kept out of label sets.
type SyncMetrics struct {
	ExecutionsTotal    *prometheus.CounterVec
	RecordsFetched     *prometheus.CounterVec
	RecordsPersisted   *prometheus.CounterVec
	RecordsPushed      *prometheus.CounterVec
	ConflictsDetected  *prometheus.CounterVec
	ConflictsResolved  *prometheus.CounterVec
	ExecutionDuration  *prometheus.HistogramVec
	WebhooksReceived   *prometheus.CounterVec
	WebhooksDropped    *prometheus.CounterVec
	DedupAmbiguities   *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metric family on the given registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	factory := promauto.With(reg)

	return &SyncMetrics{
		ExecutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_executions_total",
			Help: "Total number of sync executions by terminal status",
		}, []string{"provider", "status"}),
		RecordsFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_records_fetched_total",
			Help: "Total number of records fetched from providers",
		}, []string{"provider"}),
		RecordsPersisted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_records_persisted_total",
			Help: "Total number of records written to the internal store",
		}, []string{"provider", "action"}),
		RecordsPushed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_records_pushed_total",
			Help: "Total number of records pushed to providers",
		}, []string{"provider", "outcome"}),
		ConflictsDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_conflicts_detected_total",
			Help: "Total number of field conflicts detected",
		}, []string{"provider"}),
		ConflictsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_conflicts_resolved_total",
			Help: "Total number of conflicts resolved",
		}, []string{"provider", "resolution"}),
		ExecutionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sync_execution_duration_seconds",
			Help:    "Duration of sync executions",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"provider"}),
		WebhooksReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_webhooks_received_total",
			Help: "Total number of inbound webhook deliveries",
		}, []string{"provider"}),
		WebhooksDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_webhooks_dropped_total",
			Help: "Total number of inbound webhook deliveries dropped",
		}, []string{"provider", "reason"}),
		DedupAmbiguities: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_dedup_ambiguities_total",
			Help: "Total number of ambiguous exact-match resolutions",
		}, []string{"provider"}),
	}
}
