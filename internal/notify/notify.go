// Package notify is the best-effort JSON webhook sink (§6 "Notification
// sink"): client-side rate limited, with startup/shutdown/error messages
// bypassing the limit. Grounded on
// original_source/src/alerts.py (a Discord-webhook alerter with the same
// alert catalogue and force/bypass split), generalized from a
// Discord-embed payload to a plain JSON body since spec.md describes a
// generic webhook, not a Discord-specific one.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/internal/detector"
	"github.com/kalshi-arb/engine/pkg/types"
)

// Level names the severity of an alert, carried in the payload for the
// receiving webhook to route or color on.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Payload is the JSON body posted to the configured webhook.
type Payload struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Level       Level     `json:"level"`
	Timestamp   time.Time `json:"timestamp"`
}

// Config configures a Notifier.
type Config struct {
	WebhookURL   string
	MaxPerMinute int
	Logger       *zap.Logger
}

// Notifier posts best-effort alerts to a webhook, rate limited to
// MaxPerMinute except for the force-sent startup/shutdown/error classes
// (§6) and the daily summary, which is force-sent as well.
type Notifier struct {
	webhookURL   string
	maxPerMinute int
	httpClient   *http.Client
	logger       *zap.Logger

	mu   sync.Mutex
	sent []time.Time
}

// New constructs a Notifier. A blank WebhookURL is valid: every send
// becomes a no-op, the same as the original bot running with no
// DISCORD_WEBHOOK_URL set.
func New(cfg Config) *Notifier {
	maxPerMinute := cfg.MaxPerMinute
	if maxPerMinute <= 0 {
		maxPerMinute = 10
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		webhookURL:   cfg.WebhookURL,
		maxPerMinute: maxPerMinute,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
	}
}

// rateLimited purges send timestamps older than 60s and reports whether
// the per-minute budget is already exhausted.
func (n *Notifier) rateLimited() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	cutoff := time.Now().Add(-time.Minute)
	i := 0
	for i < len(n.sent) && n.sent[i].Before(cutoff) {
		i++
	}
	n.sent = n.sent[i:]

	return len(n.sent) >= n.maxPerMinute
}

func (n *Notifier) recordSend() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, time.Now())
}

// send posts payload to the webhook. force bypasses the rate limiter,
// for the startup/shutdown/error classes (§6). A 429 response triggers a
// bounded sleep (up to 3s) honoring Retry-After, same as the original.
func (n *Notifier) send(ctx context.Context, kind string, payload Payload, force bool) {
	if n.webhookURL == "" {
		return
	}

	if !force && n.rateLimited() {
		AlertsSkippedTotal.Inc()
		n.logger.Debug("notify-rate-limited", zap.String("kind", kind))
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		AlertsFailedTotal.Inc()
		n.logger.Warn("notify-marshal-failed", zap.String("kind", kind), zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		AlertsFailedTotal.Inc()
		n.logger.Warn("notify-request-build-failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	n.recordSend()
	if err != nil {
		AlertsFailedTotal.Inc()
		n.logger.Warn("notify-send-failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := retryAfterDuration(resp.Header.Get("Retry-After"))
		if retryAfter > 3*time.Second {
			retryAfter = 3 * time.Second
		}
		n.logger.Debug("notify-rate-limited-by-sink", zap.Duration("backoff", retryAfter))
		time.Sleep(retryAfter)
	case resp.StatusCode >= 300:
		AlertsFailedTotal.Inc()
		n.logger.Warn("notify-non-2xx", zap.String("kind", kind), zap.Int("status", resp.StatusCode))
	default:
		AlertsSentTotal.WithLabelValues(kind).Inc()
	}
}

func retryAfterDuration(header string) time.Duration {
	if header == "" {
		return time.Second
	}
	if secs, err := time.ParseDuration(header + "s"); err == nil {
		return secs
	}
	return time.Second
}

// NotifyOpportunity alerts on a newly detected opportunity.
func (n *Notifier) NotifyOpportunity(ctx context.Context, opp *detector.Opportunity) {
	n.send(ctx, "opportunity", Payload{
		Title: fmt.Sprintf("Opportunity: %s", opp.Signal),
		Description: fmt.Sprintf("magnitude=%.4f confidence=%.2f score=%.4f legs=%d",
			opp.Magnitude, opp.Confidence, opp.Score, len(opp.Legs)),
		Level:     LevelInfo,
		Timestamp: opp.DetectedAt,
	}, false)
}

// NotifyTrade alerts on an executed (or dry-run) trade.
func (n *Notifier) NotifyTrade(ctx context.Context, trade *types.Trade, dryRun bool) {
	prefix := ""
	if dryRun {
		prefix = "DRY RUN "
	}
	n.send(ctx, "trade", Payload{
		Title: fmt.Sprintf("%sTrade: %s %s", prefix, trade.Action, trade.Ticker),
		Description: fmt.Sprintf("side=%s count=%d price=%.2f fees=%.2f order=%s status=%s",
			trade.Side, trade.Count, trade.Price, trade.Fees, trade.ExchangeOrder, trade.Status),
		Level:     LevelInfo,
		Timestamp: trade.UpdatedAt,
	}, false)
}

// NotifyError always sends, bypassing the rate limit (§6, §7 Fatal
// classification).
func (n *Notifier) NotifyError(ctx context.Context, title, errMsg string) {
	n.send(ctx, "error", Payload{
		Title:       fmt.Sprintf("Error: %s", title),
		Description: errMsg,
		Level:       LevelError,
		Timestamp:   time.Now(),
	}, true)
}

// NotifyDailySummary always sends the end-of-day portfolio summary.
func (n *Notifier) NotifyDailySummary(ctx context.Context, state types.PortfolioState, opportunitiesToday, tradesToday int) {
	n.send(ctx, "daily-summary", Payload{
		Title: "Daily Summary",
		Description: fmt.Sprintf("balance=$%.2f daily_pnl=$%+.2f open_positions=%d kill_switch=%v opportunities=%d trades=%d",
			state.Balance, state.DailyPnL, state.OpenPositions, state.KillSwitch, opportunitiesToday, tradesToday),
		Level:     LevelInfo,
		Timestamp: time.Now(),
	}, true)
}

// NotifyStartup always sends, marking the engine coming online.
func (n *Notifier) NotifyStartup(ctx context.Context) {
	n.send(ctx, "startup", Payload{
		Title:       "Engine Started",
		Description: "The arbitrage engine is online and scanning markets.",
		Level:       LevelInfo,
		Timestamp:   time.Now(),
	}, true)
}

// NotifyShutdown always sends, marking the engine going offline.
func (n *Notifier) NotifyShutdown(ctx context.Context, reason string) {
	n.send(ctx, "shutdown", Payload{
		Title:       "Engine Shutting Down",
		Description: fmt.Sprintf("reason: %s", reason),
		Level:       LevelWarning,
		Timestamp:   time.Now(),
	}, true)
}
