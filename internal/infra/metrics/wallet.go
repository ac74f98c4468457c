package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		walletTransactionsTotal,
		walletRejectionsTotal,
	)
}

var (
	walletTransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_transactions_total",
			Help: "Applied wallet ledger entries by direction and status.",
		},
		[]string{"direction", "status"},
	)

	walletRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_rejections_total",
			Help: "Wallet mutations rejected before any change, by reason.",
		},
		[]string{"reason"},
	)
)

func IncWalletTransaction(direction, status string) {
	walletTransactionsTotal.WithLabelValues(norm(direction), norm(status)).Inc()
}

func IncWalletRejection(reason string) {
	walletRejectionsTotal.WithLabelValues(norm(reason)).Inc()
}
