// Package metrics exposes Prometheus collectors for the trading loop.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "polytrend_cycles_total", Help: "Loop cycles by result"},
		[]string{"result"},
	)
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "polytrend_decisions_total", Help: "Trade decisions emitted"},
		[]string{"asset", "action"},
	)
	IndexValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "polytrend_index_value", Help: "Latest trend index per asset side"},
		[]string{"asset", "side"},
	)
	MissingQuotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "polytrend_missing_quotes_total", Help: "Quotes that could not be fetched"},
		[]string{"asset", "field"},
	)
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "polytrend_cycle_duration_seconds",
			Help:    "Wall time of one loop cycle",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 8),
		},
	)
)

func init() {
	prometheus.MustRegister(CyclesTotal, DecisionsTotal, IndexValue, MissingQuotesTotal, CycleDuration)
}

// Serve starts the /metrics endpoint in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
