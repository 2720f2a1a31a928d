package types

// This file holds the wire shapes of the exchange's signed REST API (§6):
// request/response bodies for order placement, portfolio balance and
// positions, and the fills feed. Prices on the wire are integer cents;
// conversion to dollars happens once, in the exchange client.

// OrderRequest is the body of POST /portfolio/orders.
type OrderRequest struct {
	Ticker        string `json:"ticker"`
	Action        Action `json:"action"`
	Side          Side   `json:"side"`
	Type          string `json:"type"` // "limit" or "market"
	Count         int    `json:"count"`
	YesPriceCents *int   `json:"yes_price,omitempty"`
	ExpirationTS  *int64 `json:"expiration_ts,omitempty"`
}

// OrderResponse is the body of POST /portfolio/orders and
// GET /portfolio/orders/{id}.
type OrderResponse struct {
	OrderID     string `json:"order_id"`
	Ticker      string `json:"ticker"`
	Status      string `json:"status"` // resting, canceled, executed
	Action      Action `json:"action"`
	Side        Side   `json:"side"`
	Count       int    `json:"count"`
	FilledCount int    `json:"filled_count"`
}

// BalanceResponse is the body of GET /portfolio/balance.
type BalanceResponse struct {
	BalanceCents int64 `json:"balance"`
}

// Position is one row of GET /portfolio/positions.
type Position struct {
	Ticker   string `json:"ticker"`
	Side     Side   `json:"side"`
	Quantity int    `json:"quantity"`
}

// PositionsResponse is the body of GET /portfolio/positions.
type PositionsResponse struct {
	Positions []Position `json:"positions"`
	Cursor    string     `json:"cursor"`
}

// Fill is one row of GET /portfolio/fills, and also the shape pushed over
// the exchange's fills websocket channel.
type Fill struct {
	OrderID    string `json:"order_id"`
	Ticker     string `json:"ticker"`
	Action     Action `json:"action"`
	Side       Side   `json:"side"`
	Count      int    `json:"count"`
	PriceCents int    `json:"price"`
}

// FillsResponse is the body of GET /portfolio/fills.
type FillsResponse struct {
	Fills  []Fill `json:"fills"`
	Cursor string `json:"cursor"`
}

// CentsToYesPrice converts a desired NO-side cents price into the
// yes_price field an order body must carry: buying NO at p requires
// submitting yes_price = 100 - p on a side=no order (§9). Encoded in
// exactly one place to prevent drift.
func CentsToYesPrice(side Side, priceCents int) int {
	if side == SideNo {
		return 100 - priceCents
	}
	return priceCents
}
