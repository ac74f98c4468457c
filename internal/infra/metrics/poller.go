package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		pollerActiveWatches,
		pollerPollsTotal,
		pollerWatchDuration,
	)
}

var (
	pollerActiveWatches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "confirm_poller_active_watches",
			Help: "References currently being polled for confirmation.",
		},
	)

	// result: pending|confirmed|failed|not_found|transient_error
	pollerPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confirm_poller_polls_total",
			Help: "Individual gateway status queries by observed result.",
		},
		[]string{"result"},
	)

	pollerWatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "confirm_poller_watch_duration_seconds",
			Help:    "Time from watch start to terminal outcome, by outcome.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 180, 300},
		},
		[]string{"outcome"},
	)
)

func IncActiveWatches() { pollerActiveWatches.Inc() }
func DecActiveWatches() { pollerActiveWatches.Dec() }
func IncPoll(result string) {
	pollerPollsTotal.WithLabelValues(norm(result)).Inc()
}
func ObserveWatchDuration(outcome string, seconds float64) {
	pollerWatchDuration.WithLabelValues(norm(outcome)).Observe(seconds)
}
