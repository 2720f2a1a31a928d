package types

import "time"

// PortfolioState is the singleton risk/accounting record the portfolio
// guard owns exclusively (§3). Mutated with last-writer-wins semantics
// under the guard's single writer.
type PortfolioState struct {
	Balance       float64   `json:"balance"`
	DailyPnL      float64   `json:"daily_pnl"`
	OpenPositions int       `json:"open_positions"`
	KillSwitch    bool      `json:"kill_switch"`
	LastUpdated   time.Time `json:"last_updated"`
}
