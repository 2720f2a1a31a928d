package exchange

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kalshi_arb_exchange_requests_total",
		Help: "Requests issued to the exchange REST API by path and outcome.",
	}, []string{"path", "outcome"})

	RequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kalshi_arb_exchange_request_duration_seconds",
		Help:    "Latency of exchange REST requests, including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	RateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_arb_exchange_rate_limit_wait_seconds",
		Help:    "Time spent blocked on the shared token bucket before a request is sent.",
		Buckets: []float64{0, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
	})

	RetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_exchange_retries_total",
		Help: "Retried exchange requests, across all causes (429, 5xx, network error).",
	})
)
