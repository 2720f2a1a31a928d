// Package websocket maintains a single reconnecting connection to the
// exchange's fills-push channel and delivers the parsed fills on Fills().
// The executor's REST fill poll (§4.5) does not read this channel. It
// carries none of the order-book depth state spec.md's Non-goals
// exclude.
package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/pkg/types"
)

// Signer produces the three auth headers the exchange requires on every
// authenticated request, including the websocket upgrade (§6).
type Signer interface {
	SignHeaders(method, path string) (map[string]string, error)
}

// Config holds fills-feed connection configuration.
type Config struct {
	URL                   string
	Signer                Signer
	DialTimeout           time.Duration
	PongTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	MessageBufferSize     int
	Logger                *zap.Logger
}

// Manager owns the single websocket connection carrying fill events.
type Manager struct {
	cfg          Config
	conn         *websocket.Conn
	logger       *zap.Logger
	reconnectMgr *ReconnectManager
	fillChan     chan *types.Fill
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.RWMutex
	connected    atomic.Bool
	lastPong     atomic.Int64
}

// New constructs a fills-feed Manager.
func New(cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		cfg: cfg,
		reconnectMgr: NewReconnectManager(ReconnectConfig{
			InitialDelay:      cfg.ReconnectInitialDelay,
			MaxDelay:          cfg.ReconnectMaxDelay,
			BackoffMultiplier: cfg.ReconnectBackoffMult,
			JitterPercent:     0.2,
		}, cfg.Logger),
		logger:   cfg.Logger,
		fillChan: make(chan *types.Fill, cfg.MessageBufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start dials the feed and begins reading. Failure to dial is not fatal
// to the caller — the fills feed is a latency optimization, so Start
// logs and schedules a reconnect rather than returning an error that
// would abort startup.
func (m *Manager) Start() {
	m.logger.Info("fills-feed-starting", zap.String("url", m.cfg.URL))
	if err := m.connect(m.ctx); err != nil {
		m.logger.Warn("fills-feed-initial-connect-failed", zap.Error(err))
	}

	m.wg.Add(2)
	go m.readLoop()
	go m.reconnectLoop()
}

func (m *Manager) connect(ctx context.Context) error {
	headers, err := m.cfg.Signer.SignHeaders("GET", "/trade-api/ws/v2")
	if err != nil {
		return fmt.Errorf("sign headers: %w", err)
	}
	httpHeader := make(map[string][]string, len(headers))
	for k, v := range headers {
		httpHeader[k] = []string{v}
	}

	dialer := &websocket.Dialer{HandshakeTimeout: m.cfg.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, m.cfg.URL, httpHeader)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	m.connected.Store(true)
	m.lastPong.Store(time.Now().Unix())
	ActiveConnections.Set(1)
	return nil
}

func (m *Manager) readLoop() {
	defer m.wg.Done()
	for {
		m.mu.RLock()
		conn := m.conn
		m.mu.RUnlock()
		if conn == nil {
			select {
			case <-m.ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.connected.Store(false)
			ActiveConnections.Set(0)
			if m.ctx.Err() != nil {
				return
			}
			m.logger.Warn("fills-feed-read-error", zap.Error(err))
			continue
		}

		var fill types.Fill
		if err := json.Unmarshal(raw, &fill); err != nil {
			m.logger.Debug("fills-feed-unparseable-message", zap.Error(err))
			continue
		}
		FillsReceivedTotal.Inc()

		select {
		case m.fillChan <- &fill:
		default:
			MessagesDroppedTotal.WithLabelValues("channel_full").Inc()
		}
	}
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if m.connected.Load() {
				continue
			}
			if err := m.reconnectMgr.Reconnect(m.ctx, m.connect); err != nil {
				if m.ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// Fills returns the channel of incoming fill events.
func (m *Manager) Fills() <-chan *types.Fill {
	return m.fillChan
}

// Close shuts the feed down.
func (m *Manager) Close() error {
	m.cancel()
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()
	if conn != nil {
		_ = conn.Close()
	}
	m.wg.Wait()
	close(m.fillChan)
	return nil
}
