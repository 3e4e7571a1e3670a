package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

var (
	walletTransactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_transactions_total",
			Help: "Ledger append attempts by transaction type and outcome",
		},
		[]string{"type", "status"},
	)

	walletCASRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_cas_retries_total",
			Help: "Wallet appends retried after a concurrent modification",
		},
	)

	distributions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revenue_distributions_total",
			Help: "Distribution attempts by outcome",
		},
		[]string{"status"},
	)

	distributedAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revenue_distributed_amount_total",
			Help: "Money split out of finished events by party",
		},
		[]string{"party"},
	)

	refunds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_refunds_total",
			Help: "Ticket cancellations by outcome",
		},
		[]string{"status"},
	)

	inventoryAdjustments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_adjustments_total",
			Help: "Ticket inventory deltas applied",
		},
		[]string{"direction", "status"},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "distribution_sweep_duration_seconds",
			Help:    "Duration of distribution sweeps",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	sweepEvents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "distribution_sweep_events",
			Help: "Per-outcome event counts of the last sweep",
		},
		[]string{"outcome"},
	)
)

// Monitor is the single entry point services use to record metrics.
type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) TrackWalletTransaction(txType, status string) {
	walletTransactions.WithLabelValues(txType, status).Inc()
}

func (m *Monitor) TrackWalletRetry() {
	walletCASRetries.Inc()
}

func (m *Monitor) TrackDistribution(status string) {
	distributions.WithLabelValues(status).Inc()
}

func (m *Monitor) TrackDistributedAmount(admin, organizer decimal.Decimal) {
	distributedAmount.WithLabelValues("admin").Add(admin.InexactFloat64())
	distributedAmount.WithLabelValues("organizer").Add(organizer.InexactFloat64())
}

func (m *Monitor) TrackRefund(status string) {
	refunds.WithLabelValues(status).Inc()
}

func (m *Monitor) TrackInventory(direction, status string) {
	inventoryAdjustments.WithLabelValues(direction, status).Inc()
}

func (m *Monitor) TrackSweep(duration time.Duration, eligible, processed, skipped, failures int) {
	sweepDuration.Observe(duration.Seconds())
	sweepEvents.WithLabelValues("eligible").Set(float64(eligible))
	sweepEvents.WithLabelValues("processed").Set(float64(processed))
	sweepEvents.WithLabelValues("skipped").Set(float64(skipped))
	sweepEvents.WithLabelValues("failed").Set(float64(failures))
}
