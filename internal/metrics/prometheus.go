package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the ingestion service

var (
	// API Call metrics
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fgcrank_api_calls_total",
			Help: "Total number of start.gg API calls",
		},
		[]string{"operation", "status"},
	)

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fgcrank_api_call_duration_seconds",
			Help:    "Duration of start.gg API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fgcrank_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "table", "status"},
	)

	// Sync metrics
	TournamentsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fgcrank_tournaments_fetched_total",
			Help: "Total number of tournaments returned by search pages",
		},
	)

	TournamentsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fgcrank_tournaments_processed_total",
			Help: "Total number of tournaments processed",
		},
	)

	TournamentsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fgcrank_tournaments_skipped_total",
			Help: "Total number of tournaments skipped",
		},
		[]string{"reason"},
	)

	SetsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fgcrank_sets_recorded_total",
			Help: "Total number of set outcomes recorded into history",
		},
	)

	PlayersEnriched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fgcrank_players_enriched_total",
			Help: "Total number of player discriminators resolved",
		},
	)

	PlayersRated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fgcrank_players_rated",
			Help: "Number of players saved in the last ranking write",
		},
	)

	CheckpointTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fgcrank_checkpoint_timestamp",
			Help: "Current last_updated checkpoint value by key",
		},
		[]string{"key"},
	)

	SyncOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fgcrank_sync_operations_total",
			Help: "Total number of sync operations",
		},
		[]string{"type", "status"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fgcrank_sync_duration_seconds",
			Help:    "Duration of sync operations in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fgcrank_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fgcrank_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)

	LastSuccessfulSync = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fgcrank_last_successful_sync_timestamp",
			Help: "Timestamp of last successful sync operation",
		},
	)
)

// RecordAPICall records an API call metric
func RecordAPICall(operation, status string, duration float64) {
	APICallsTotal.WithLabelValues(operation, status).Inc()
	APICallDuration.WithLabelValues(operation).Observe(duration)
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table, status string) {
	DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
}

// RecordSync records a sync operation
func RecordSync(syncType, status string, duration float64) {
	SyncOperationsTotal.WithLabelValues(syncType, status).Inc()
	SyncDuration.WithLabelValues(syncType).Observe(duration)

	if status == "success" {
		LastSuccessfulSync.SetToCurrentTime()
	}
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// SetCheckpoint records the current checkpoint value for a key
func SetCheckpoint(key string, ts int64) {
	CheckpointTimestamp.WithLabelValues(key).Set(float64(ts))
}
