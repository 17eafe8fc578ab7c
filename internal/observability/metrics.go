package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	creditsAwardedTotal *prometheus.CounterVec
	ledgerOpsTotal      *prometheus.CounterVec
	redemptionsTotal    *prometheus.CounterVec
	verificationsTotal  *prometheus.CounterVec
	walletCacheTotal    *prometheus.CounterVec
	reconcileMismatches prometheus.Counter
	reconcileRuns       *prometheus.CounterVec
	walletStreamClients prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors exposed by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "green_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "green_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		creditsAwardedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "green_credits_awarded_total",
			Help: "Credits awarded for approved activities, by activity type.",
		}, []string{"activity_type"})

		ledgerOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "green_ledger_operations_total",
			Help: "Ledger mutations by operation and outcome.",
		}, []string{"operation", "outcome"})

		redemptionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "green_redemptions_total",
			Help: "Reward redemption attempts and transitions by outcome.",
		}, []string{"outcome"})

		verificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "green_verifications_total",
			Help: "Verification verdicts by activity type and result.",
		}, []string{"activity_type", "result"})

		walletCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "green_wallet_cache_total",
			Help: "Wallet summary cache lookups by result.",
		}, []string{"result"})

		reconcileMismatches = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "green_reconcile_mismatches_total",
			Help: "Wallets whose totals disagree with their ledger.",
		})

		reconcileRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "green_reconcile_runs_total",
			Help: "Ledger reconciliation runs by outcome.",
		}, []string{"outcome"})

		walletStreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "green_wallet_stream_clients",
			Help: "Open wallet event websocket connections.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			creditsAwardedTotal,
			ledgerOpsTotal,
			redemptionsTotal,
			verificationsTotal,
			walletCacheTotal,
			reconcileMismatches,
			reconcileRuns,
			walletStreamClients,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// CreditsAwarded counts credits, not awards.
func CreditsAwarded() *prometheus.CounterVec {
	RegisterMetrics()
	return creditsAwardedTotal
}

func LedgerOperations() *prometheus.CounterVec {
	RegisterMetrics()
	return ledgerOpsTotal
}

func Redemptions() *prometheus.CounterVec {
	RegisterMetrics()
	return redemptionsTotal
}

func Verifications() *prometheus.CounterVec {
	RegisterMetrics()
	return verificationsTotal
}

func WalletCache() *prometheus.CounterVec {
	RegisterMetrics()
	return walletCacheTotal
}

func ReconcileMismatches() prometheus.Counter {
	RegisterMetrics()
	return reconcileMismatches
}

func ReconcileRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return reconcileRuns
}

func WalletStreamClients() prometheus.Gauge {
	RegisterMetrics()
	return walletStreamClients
}
