// Package exchange is the signed, rate-limited, retrying request
// pipeline to the exchange's trade-api/v2 (§6). Adapted from the
// teacher's plain net/http Gamma client (internal/discovery/client.go):
// same http.Client + context + zap logging shape, generalized with RSA
// signing, a shared token bucket, and exponential-backoff retry.
package exchange

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/pkg/types"
)

const (
	maxRetries  = 3
	maxPageSize = 200
)

// Client is the authenticated REST client for the exchange's
// trade-api/v2 surface.
type Client struct {
	baseURL    string
	signer     *Signer
	httpClient *http.Client
	limiter    *tokenBucket
	logger     *zap.Logger
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Signer  *Signer
	Logger  *zap.Logger
	Timeout time.Duration
}

// New constructs a Client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		signer:     cfg.Signer,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newTokenBucket(10.0),
		logger:     cfg.Logger,
	}
}

// SignHeaders exposes the Client's signer, satisfying websocket.Signer
// so the fills feed reuses the same credentials.
func (c *Client) SignHeaders(method, path string) (map[string]string, error) {
	return c.signer.SignHeaders(method, path)
}

// do executes one signed, rate-limited, retried request. path must not
// include the query string (query params are passed separately so the
// signature covers only the path, per §6).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var bodyBytes []byte
	var err error
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return types.NewError(types.KindDomain, "exchange.do", fmt.Errorf("marshal body: %w", err))
		}
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	start := time.Now()
	defer func() {
		RequestDurationSeconds.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}()

	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			RetriesTotal.Inc()
		}
		c.limiter.acquire()

		headers, err := c.signer.SignHeaders(method, path)
		if err != nil {
			return types.NewError(types.KindFatal, "exchange.do", fmt.Errorf("sign headers: %w", err))
		}

		var reqBody io.Reader
		if bodyBytes != nil {
			reqBody = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return types.NewError(types.KindDomain, "exchange.do", fmt.Errorf("build request: %w", err))
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("exchange-request-error", zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
			time.Sleep(backoff)
			backoff *= 2
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			time.Sleep(backoff)
			backoff *= 2
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := backoff
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					retryAfter = time.Duration(secs) * time.Second
				}
			}
			c.logger.Warn("exchange-rate-limited", zap.Duration("retry_after", retryAfter), zap.Int("attempt", attempt))
			time.Sleep(retryAfter)
			backoff *= 2
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
			time.Sleep(backoff)
			backoff *= 2
			continue
		}

		if resp.StatusCode >= 400 {
			RequestsTotal.WithLabelValues(path, "client_error").Inc()
			return types.NewError(types.KindDomain, "exchange.do", fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)))
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				RequestsTotal.WithLabelValues(path, "decode_error").Inc()
				return types.NewError(types.KindDomain, "exchange.do", fmt.Errorf("unmarshal response: %w", err))
			}
		}
		RequestsTotal.WithLabelValues(path, "ok").Inc()
		return nil
	}

	RequestsTotal.WithLabelValues(path, "exhausted").Inc()
	return types.NewError(types.KindTransient, "exchange.do", fmt.Errorf("exhausted %d retries: %w", maxRetries, lastErr))
}

// --- market data ---

type marketsPage struct {
	Markets []kalshiMarket `json:"markets"`
	Cursor  string         `json:"cursor"`
}

// kalshiMarket is the wire shape returned by GET /markets, prices in
// integer cents.
type kalshiMarket struct {
	Ticker          string  `json:"ticker"`
	EventTicker     string  `json:"event_ticker"`
	Title           string  `json:"title"`
	Category        string  `json:"category"`
	Status          string  `json:"status"`
	YesAsk          int     `json:"yes_ask"`
	YesBid          int     `json:"yes_bid"`
	NoAsk           int     `json:"no_ask"`
	NoBid           int     `json:"no_bid"`
	Volume          float64 `json:"volume"`
	OpenInterest    float64 `json:"open_interest"`
	CloseTime       string  `json:"close_time"`
	SettlementRules string  `json:"rules_primary"`
}

func centsToDollars(c int) float64 { return float64(c) / 100.0 }

func (m kalshiMarket) toDomain() types.Market {
	closeTime, _ := time.Parse(time.RFC3339, m.CloseTime)
	return types.Market{
		Ticker:          m.Ticker,
		EventTicker:     m.EventTicker,
		Title:           m.Title,
		Category:        m.Category,
		Status:          types.MarketStatus(m.Status),
		YesAsk:          centsToDollars(m.YesAsk),
		YesBid:          centsToDollars(m.YesBid),
		NoAsk:           centsToDollars(m.NoAsk),
		NoBid:           centsToDollars(m.NoBid),
		Volume:          m.Volume,
		OpenInterest:    m.OpenInterest,
		CloseTime:       closeTime,
		SettlementRules: m.SettlementRules,
		LastUpdated:     time.Now(),
	}
}

// GetMarkets fetches one page of markets (§6).
func (c *Client) GetMarkets(ctx context.Context, status, cursor string) (types.MarketPage, error) {
	q := url.Values{"status": {status}, "limit": {strconv.Itoa(maxPageSize)}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var page marketsPage
	if err := c.do(ctx, http.MethodGet, "/markets", q, nil, &page); err != nil {
		return types.MarketPage{}, err
	}
	out := types.MarketPage{Cursor: page.Cursor, Markets: make([]types.Market, len(page.Markets))}
	for i, m := range page.Markets {
		out.Markets[i] = m.toDomain()
	}
	return out, nil
}

// GetMarket fetches a single market by ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (types.Market, error) {
	var wrapper struct {
		Market kalshiMarket `json:"market"`
	}
	if err := c.do(ctx, http.MethodGet, "/markets/"+ticker, nil, nil, &wrapper); err != nil {
		return types.Market{}, err
	}
	return wrapper.Market.toDomain(), nil
}

type eventsPage struct {
	Events []kalshiEvent `json:"events"`
	Cursor string        `json:"cursor"`
}

type kalshiEvent struct {
	EventTicker string   `json:"event_ticker"`
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	MarketTicks []string `json:"market_tickers"`
}

// GetEvents fetches one page of events.
func (c *Client) GetEvents(ctx context.Context, status, cursor string) (types.EventPage, error) {
	q := url.Values{"status": {status}, "limit": {strconv.Itoa(maxPageSize)}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var page eventsPage
	if err := c.do(ctx, http.MethodGet, "/events", q, nil, &page); err != nil {
		return types.EventPage{}, err
	}
	out := types.EventPage{Cursor: page.Cursor, Events: make([]types.Event, len(page.Events))}
	for i, e := range page.Events {
		out.Events[i] = types.Event{
			EventTicker:   e.EventTicker,
			Title:         e.Title,
			Category:      e.Category,
			MarketTickers: e.MarketTicks,
			LastUpdated:   time.Now(),
		}
	}
	return out, nil
}

// --- portfolio / trading ---

// GetBalance fetches the account balance, in dollars.
func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	var resp types.BalanceResponse
	if err := c.do(ctx, http.MethodGet, "/portfolio/balance", nil, nil, &resp); err != nil {
		return 0, err
	}
	return centsToDollars(int(resp.BalanceCents)), nil
}

// GetPositions fetches one page of open positions.
func (c *Client) GetPositions(ctx context.Context, cursor string) (types.PositionsResponse, error) {
	q := url.Values{"limit": {strconv.Itoa(maxPageSize)}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp types.PositionsResponse
	err := c.do(ctx, http.MethodGet, "/portfolio/positions", q, nil, &resp)
	return resp, err
}

// PlaceOrder submits an order.
func (c *Client) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResponse, error) {
	var resp types.OrderResponse
	err := c.do(ctx, http.MethodPost, "/portfolio/orders", nil, req, &resp)
	return resp, err
}

// GetOrder fetches an order's current status.
func (c *Client) GetOrder(ctx context.Context, orderID string) (types.OrderResponse, error) {
	var resp types.OrderResponse
	err := c.do(ctx, http.MethodGet, "/portfolio/orders/"+orderID, nil, nil, &resp)
	return resp, err
}

// CancelOrder cancels a resting order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	return c.do(ctx, http.MethodDelete, "/portfolio/orders/"+orderID, nil, nil, nil)
}

// GetFills fetches one page of recent fills.
func (c *Client) GetFills(ctx context.Context, cursor string) (types.FillsResponse, error) {
	q := url.Values{"limit": {strconv.Itoa(maxPageSize)}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp types.FillsResponse
	err := c.do(ctx, http.MethodGet, "/portfolio/fills", q, nil, &resp)
	return resp, err
}
