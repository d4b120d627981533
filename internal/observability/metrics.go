package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfscale_http_requests_total",
			Help: "Total API requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "surfscale_http_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "surfscale_http_in_flight",
		Help: "In-flight HTTP requests",
	})

	ProviderFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfscale_provider_fetches_total",
			Help: "Provider fetches by source and outcome",
		}, []string{"source", "outcome"},
	)
	ProviderLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "surfscale_provider_fetch_duration_seconds",
		Help:    "Provider fetch latency including retries",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"source"})
	MergeMatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfscale_reconcile_matches_total",
			Help: "Cross-source campaign matches by method",
		}, []string{"method"},
	)

	CycleRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfscale_cycles_total",
			Help: "Surf cycles by outcome",
		}, []string{"outcome"},
	)
	RuleFires = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfscale_rule_fires_total",
			Help: "Budget changes by rule and action",
		}, []string{"rule", "action"},
	)
	MonitoredCampaigns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "surfscale_monitored_campaigns",
		Help: "Campaigns flagged for surf-scaling in the last cycle",
	})
)

func init() {
	prometheus.MustRegister(
		RequestsTotal, Latency, InFlight,
		ProviderFetches, ProviderLatency, MergeMatches,
		CycleRuns, RuleFires, MonitoredCampaigns,
	)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
	})
}
