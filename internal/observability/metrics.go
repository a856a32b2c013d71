package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the settlement service.
type Metrics struct {
	// --- Settlement cycle ---
	CyclesSettled   prometheus.Counter
	CycleSeq        prometheus.Gauge
	PassDuration    *prometheus.HistogramVec
	ReferencePrice  prometheus.Gauge
	ActiveAccounts  prometheus.Gauge
	NettingResidual prometheus.Gauge

	// --- Liquidation ---
	LiquidationActions *prometheus.CounterVec

	// --- Participant requests ---
	AdjustRequests   *prometheus.CounterVec
	AdjustDuration   prometheus.Histogram
	RequestDedupHits *prometheus.CounterVec

	// --- Escrow ---
	EscrowBalance prometheus.Gauge
	TotalMargin   prometheus.Gauge

	// --- Channels & drops ---
	ChannelSize        *prometheus.GaugeVec
	ChannelCapacity    *prometheus.GaugeVec
	ChannelUtilization *prometheus.GaugeVec
	PublishDrops       prometheus.Counter

	// --- Persistence ---
	PersistRowsWritten prometheus.Counter
	PersistBatchSize   prometheus.Histogram
	PersistBatchDur    prometheus.Histogram
	PersistErrors      *prometheus.CounterVec
	PersistRetry       prometheus.Counter
	SnapshotTaken      prometheus.Counter
	SnapshotDuration   prometheus.Histogram
	SnapshotLastSeq    prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	passBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		// Settlement cycle
		CyclesSettled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_cycles_settled_total",
			Help: "Settlement cycles completed",
		}),

		CycleSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synth_cycle_sequence",
			Help: "Current settlement cycle sequence",
		}),

		PassDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "synth_pass_duration_seconds",
			Help:    "Duration of one engine pass (revalue/liquidate/net)",
			Buckets: passBuckets,
		}, []string{"pass"}),

		ReferencePrice: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synth_reference_price",
			Help: "Stored reference price (fixed-point, 1e6 scale)",
		}),

		ActiveAccounts: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synth_active_accounts",
			Help: "Accounts with posted margin",
		}),

		NettingResidual: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synth_netting_residual",
			Help: "Haircut rounding residual of the last netting pass",
		}),

		// Liquidation
		LiquidationActions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_liquidation_actions_total",
			Help: "Liquidation actions by outcome (wipe/collapse/shrink)",
		}, []string{"outcome"}),

		// Participant requests
		AdjustRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_adjust_requests_total",
			Help: "Position-entry calls by outcome",
		}, []string{"op", "outcome"}),

		AdjustDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "synth_adjust_duration_seconds",
			Help:    "Serialized adjust call latency",
			Buckets: passBuckets,
		}),

		RequestDedupHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_request_dedup_hits_total",
			Help: "Duplicate requests caught (lru/postgres)",
		}, []string{"request_type", "tier"}),

		// Escrow
		EscrowBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synth_escrow_balance",
			Help: "Transfer-ledger balance of the pool escrow account",
		}),

		TotalMargin: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synth_total_margin",
			Help: "Sum of all posted margins",
		}),

		// Channels & drops
		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "synth_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "synth_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "synth_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_publish_drops_total",
			Help: "Outbound events dropped due to full publish channel",
		}),

		// Persistence
		PersistRowsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_persist_rows_written_total",
			Help: "Audit rows written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "synth_persist_batch_size",
			Help:    "Audit rows per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "synth_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_persist_retry_total",
			Help: "Persistence retries",
		}),

		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "synth_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synth_snapshot_last_cycle",
			Help: "Cycle sequence of last snapshot",
		}),

		// Query API
		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "synth_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),
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
