package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		sessionsTotal,
		paymentsRevenueTotal,
		submissionsTotal,
	)
}

var (
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_sessions_total",
			Help: "Payment session transitions by status (initiated/confirmed/failed/expired).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of confirmed payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_submissions_total",
			Help: "Listing submissions by result (activated/payment_required/awaiting_confirmation).",
		},
		[]string{"result"},
	)
)

func IncSession(status string) {
	sessionsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncSubmission(result string) {
	submissionsTotal.WithLabelValues(norm(result)).Inc()
}
