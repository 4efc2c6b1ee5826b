package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for LendLedger.
type Metrics struct {
	// --- Operations ---
	OperationsCommitted *prometheus.CounterVec
	OperationsRejected  *prometheus.CounterVec
	OperationDuration   *prometheus.HistogramVec
	GuardContention     prometheus.Counter

	// --- Pool state ---
	PoolTotalLiquidity  *prometheus.GaugeVec
	PoolCurrentBalance  *prometheus.GaugeVec
	PoolTotalBorrow     *prometheus.GaugeVec
	PoolTotalReserve    *prometheus.GaugeVec
	PoolTotalShares     *prometheus.GaugeVec
	ReserveShortfall    *prometheus.CounterVec
	LoansOpened         *prometheus.CounterVec
	LoansRepaid         *prometheus.CounterVec
	LoansLiquidated     *prometheus.CounterVec

	// --- Oracle ---
	OracleRate        prometheus.Gauge
	OracleUpdates     prometheus.Counter
	OracleStaleErrors prometheus.Counter

	// --- Channel & Backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	NotifyDrops         prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Persistence ---
	PersistRowsWritten prometheus.Counter
	PersistBatchSize   prometheus.Histogram
	PersistBatchDur    prometheus.Histogram
	PersistErrors      *prometheus.CounterVec
	PersistRetry       prometheus.Counter
	SnapshotTaken      prometheus.Counter
	SnapshotDuration   prometheus.Histogram
	SnapshotSizeBytes  prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		// Operations
		OperationsCommitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_operations_committed_total",
			Help: "Operations applied successfully",
		}, []string{"operation"}),

		OperationsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_operations_rejected_total",
			Help: "Operations rejected (validation, funds, guard)",
		}, []string{"operation", "reason"}),

		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lend_operation_duration_seconds",
			Help:    "Time to execute a single operation",
			Buckets: opBuckets,
		}, []string{"operation"}),

		GuardContention: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lend_guard_contention_total",
			Help: "Operations rejected because another was in flight",
		}),

		// Pool state
		PoolTotalLiquidity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lend_pool_total_liquidity",
			Help: "Share-conversion basis per pool",
		}, []string{"pool_id"}),

		PoolCurrentBalance: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lend_pool_current_balance",
			Help: "Liquid deposit-asset balance per pool",
		}, []string{"pool_id"}),

		PoolTotalBorrow: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lend_pool_total_borrow",
			Help: "Outstanding debt per pool",
		}, []string{"pool_id"}),

		PoolTotalReserve: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lend_pool_total_reserve",
			Help: "Accumulated reserve per pool",
		}, []string{"pool_id"}),

		PoolTotalShares: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lend_pool_total_shares",
			Help: "Shares outstanding per pool",
		}, []string{"pool_id"}),

		ReserveShortfall: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_reserve_shortfall_total",
			Help: "Amount by which reserve deductions were clamped at zero",
		}, []string{"pool_id"}),

		LoansOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_loans_opened_total",
			Help: "Loans originated",
		}, []string{"pool_id"}),

		LoansRepaid: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_loans_repaid_total",
			Help: "Loans fully repaid",
		}, []string{"pool_id"}),

		LoansLiquidated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_loans_liquidated_total",
			Help: "Loans liquidated",
		}, []string{"pool_id"}),

		// Oracle
		OracleRate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lend_oracle_rate",
			Help: "Last exchange rate received (fixed-point)",
		}),

		OracleUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lend_oracle_updates_total",
			Help: "Rate updates accepted",
		}),

		OracleStaleErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lend_oracle_stale_errors_total",
			Help: "Operations rejected for a stale rate",
		}),

		// Channel & Backpressure
		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lend_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lend_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lend_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		NotifyDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lend_notify_drops_total",
			Help: "Events dropped due to full notify channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lend_persist_backpressure_total",
			Help: "Times core blocked on persist channel",
		}),

		// Persistence
		PersistRowsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lend_persist_rows_written_total",
			Help: "Operation rows written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lend_persist_batch_size",
			Help:    "Rows per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lend_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lend_persist_retry_total",
			Help: "Persistence retries",
		}),

		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lend_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lend_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lend_snapshot_size_bytes",
			Help: "Last snapshot size",
		}),

		// Query API
		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lend_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
