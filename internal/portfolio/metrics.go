package portfolio

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PortfolioBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_arb_portfolio_balance_dollars",
		Help: "Last synced exchange account balance, in dollars.",
	})

	PortfolioDailyPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_arb_portfolio_daily_pnl_dollars",
		Help: "Running daily profit and loss, reset at the UTC midnight boundary.",
	})

	PortfolioOpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_arb_portfolio_open_positions",
		Help: "Current count of open positions.",
	})

	KillSwitchActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_arb_portfolio_kill_switch_active",
		Help: "1 if the kill switch is tripped, 0 otherwise.",
	})

	KillSwitchTripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kalshi_arb_portfolio_kill_switch_trips_total",
		Help: "Kill switch trips, by triggering reason.",
	}, []string{"reason"})
)
