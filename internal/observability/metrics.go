package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "infected",
			Subsystem: "contagion",
			Name:      "transitions_total",
			Help:      "Applied infection and cure transitions.",
		},
		[]string{"kind", "cause"},
	)
	rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "infected",
			Subsystem: "contagion",
			Name:      "infection_rejections_total",
			Help:      "Infection requests stopped by a policy check or a cancelling subscriber.",
		},
		[]string{"cause", "reason"},
	)
	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "infected",
			Subsystem: "contagion",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one sweep pass.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)
	tracked = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "infected",
			Subsystem: "contagion",
			Name:      "tracked_entries",
			Help:      "Timer entries held after the last sweep.",
		},
		[]string{"map"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "infected",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "infected",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(transitions, rejections, sweepDuration, tracked, httpRequests, httpDuration)
	})
}

func RecordTransition(kind, cause string) {
	RegisterMetrics()
	transitions.WithLabelValues(kind, cause).Inc()
}

func RecordInfectionRejected(cause, reason string) {
	RegisterMetrics()
	rejections.WithLabelValues(cause, reason).Inc()
}

func RecordSweep(duration time.Duration, infected, protected int) {
	RegisterMetrics()
	sweepDuration.Observe(duration.Seconds())
	tracked.WithLabelValues("infected").Set(float64(infected))
	tracked.WithLabelValues("protected").Set(float64(protected))
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
