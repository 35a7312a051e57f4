// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Decode metrics
	TransactionsProcessed prometheus.Counter
	DecodeTasks           *prometheus.CounterVec
	DecodeFailures        *prometheus.CounterVec
	DecodeTaskLatency     *prometheus.HistogramVec
	EventsStored          *prometheus.CounterVec

	// Reconciliation metrics
	SyncRunsTotal    *prometheus.CounterVec
	SyncDuration     *prometheus.HistogramVec
	PositionsSynced  *prometheus.CounterVec
	PositionsSkipped *prometheus.CounterVec
	PriceUnknown     *prometheus.CounterVec
	PersistFailures  *prometheus.CounterVec
	MintCacheHits    prometheus.Counter
	MintCacheMisses  prometheus.Counter

	// Transport metrics
	RPCCallLatency   *prometheus.HistogramVec
	WSMessageLatency prometheus.Histogram
	OracleLatency    prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSync   prometheus.Gauge
	LastSuccessfulIngest prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "lp_sync"
	}

	return &Metrics{
		// Decode metrics
		TransactionsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "transactions_processed_total",
			Help:      "Total number of transactions passed through the decode pipeline",
		}),
		DecodeTasks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "tasks_total",
			Help:      "Total number of processor tasks by kind and status",
		}, []string{"processor", "status"}),
		DecodeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "decode_failures_total",
			Help:      "Total number of matched payloads that failed to decode",
		}, []string{"program", "kind"}),
		DecodeTaskLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "task_latency_seconds",
			Help:      "Processor task latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"processor"}),
		EventsStored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "events_stored_total",
			Help:      "Total number of decoded protocol events stored",
		}, []string{"program"}),

		// Reconciliation metrics
		SyncRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Total number of wallet sync runs by status",
		}, []string{"dex", "status"}),
		SyncDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Wallet sync duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"dex"}),
		PositionsSynced: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "positions_synced_total",
			Help:      "Total number of positions that produced a PnL snapshot",
		}, []string{"dex"}),
		PositionsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "positions_skipped_total",
			Help:      "Total number of positions skipped for missing on-chain context",
		}, []string{"dex", "reason"}),
		PriceUnknown: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "price_unknown_total",
			Help:      "Total number of mints valued at zero because the oracle had no quote",
		}, []string{"dex"}),
		PersistFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "persist_failures_total",
			Help:      "Total number of failed persist statements by kind",
		}, []string{"dex", "statement"}),
		MintCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "mint_cache_hits_total",
			Help:      "Total number of mint lookups served from the process cache",
		}),
		MintCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "mint_cache_misses_total",
			Help:      "Total number of mint lookups that went to the store or chain",
		}),

		// Transport metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WSMessageLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_message_latency_seconds",
			Help:      "Latency from log notification to decoded transaction in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		OracleLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "oracle_latency_seconds",
			Help:      "Price oracle request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulSync: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sync_timestamp",
			Help:      "Unix timestamp of last sync cycle without errors",
		}),
		LastSuccessfulIngest: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingest_timestamp",
			Help:      "Unix timestamp of last ingested batch",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTransactions increments the processed transaction counter.
func RecordTransactions(n int) {
	DefaultMetrics.TransactionsProcessed.Add(float64(n))
}

// RecordDecodeTask records one processor task outcome.
func RecordDecodeTask(processor string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.DecodeTasks.WithLabelValues(processor, status).Inc()
	DefaultMetrics.DecodeTaskLatency.WithLabelValues(processor).Observe(seconds)
}

// RecordDecodeFailure increments the decode failure counter.
func RecordDecodeFailure(program, kind string) {
	DefaultMetrics.DecodeFailures.WithLabelValues(program, kind).Inc()
}

// RecordEventsStored adds stored protocol events.
func RecordEventsStored(program string, n int) {
	DefaultMetrics.EventsStored.WithLabelValues(program).Add(float64(n))
}

// RecordSyncRun records a wallet sync run.
func RecordSyncRun(dex, status string, durationSeconds float64) {
	DefaultMetrics.SyncRunsTotal.WithLabelValues(dex, status).Inc()
	DefaultMetrics.SyncDuration.WithLabelValues(dex).Observe(durationSeconds)
}

// RecordPositionsSynced adds positions that produced a snapshot.
func RecordPositionsSynced(dex string, n int) {
	DefaultMetrics.PositionsSynced.WithLabelValues(dex).Add(float64(n))
}

// RecordPositionSkipped increments the skip counter for a reason.
func RecordPositionSkipped(dex, reason string) {
	DefaultMetrics.PositionsSkipped.WithLabelValues(dex, reason).Inc()
}

// RecordPriceUnknown increments the unknown price counter.
func RecordPriceUnknown(dex string) {
	DefaultMetrics.PriceUnknown.WithLabelValues(dex).Inc()
}

// RecordPersistFailure increments the persist failure counter.
func RecordPersistFailure(dex, statement string) {
	DefaultMetrics.PersistFailures.WithLabelValues(dex, statement).Inc()
}

// RecordMintCache records a mint cache lookup.
func RecordMintCache(hit bool) {
	if hit {
		DefaultMetrics.MintCacheHits.Inc()
		return
	}
	DefaultMetrics.MintCacheMisses.Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordWSLatency records notification-to-decode latency.
func RecordWSLatency(seconds float64) {
	DefaultMetrics.WSMessageLatency.Observe(seconds)
}

// RecordOracleLatency records price oracle latency.
func RecordOracleLatency(seconds float64) {
	DefaultMetrics.OracleLatency.Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// MarkSyncSuccess sets the last successful sync timestamp.
func MarkSyncSuccess(unix int64) {
	DefaultMetrics.LastSuccessfulSync.Set(float64(unix))
}

// MarkIngestSuccess sets the last successful ingest timestamp.
func MarkIngestSuccess(unix int64) {
	DefaultMetrics.LastSuccessfulIngest.Set(float64(unix))
}
