package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linkhub"

var (
	redirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Total number of short link requests by outcome",
		},
		[]string{"outcome"}, // redirect, interstitial, not_found
	)

	lookupErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_errors_total",
			Help:      "Short link lookups that failed with a backend error",
		},
	)

	bioPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bio_pages_total",
			Help:      "Total number of bio page requests by status",
		},
		[]string{"status"},
	)

	clickLogsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "click_logs_total",
			Help:      "Click log rows by status",
		},
		[]string{"status"}, // recorded, failed, dropped
	)

	clickQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "click_queue_depth",
			Help:      "Number of click log rows waiting to be written",
		},
	)

	cacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_cache_requests_total",
			Help:      "Short link cache lookups by result",
		},
		[]string{"result"}, // hit, miss, error
	)
)

func RecordRedirect(outcome string) {
	redirectsTotal.WithLabelValues(outcome).Inc()
}

func RecordLookupError() {
	lookupErrorsTotal.Inc()
}

func RecordBioPage(status string) {
	bioPagesTotal.WithLabelValues(status).Inc()
}

func RecordClickLog(status string) {
	clickLogsTotal.WithLabelValues(status).Inc()
}

func SetClickQueueDepth(n int) {
	clickQueueDepth.Set(float64(n))
}

func RecordCache(result string) {
	cacheRequestsTotal.WithLabelValues(result).Inc()
}

// Handler returns the Prometheus metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}
