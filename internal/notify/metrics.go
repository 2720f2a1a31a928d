package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kalshi_arb_notify_alerts_sent_total",
		Help: "Total number of webhook alerts sent, by kind.",
	}, []string{"kind"})

	AlertsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_notify_alerts_skipped_total",
		Help: "Total number of webhook alerts dropped by the client-side rate limiter.",
	})

	AlertsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_notify_alerts_failed_total",
		Help: "Total number of webhook alert deliveries that errored or returned a non-2xx status.",
	})
)
