// Package ingestion pulls markets and events from the exchange and
// publishes them into storage and the live market cache (§4.1).
package ingestion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/internal/exchange"
	"github.com/kalshi-arb/engine/internal/marketcache"
	"github.com/kalshi-arb/engine/internal/storage"
	"github.com/kalshi-arb/engine/pkg/types"
)

// Store is the subset of storage.Storage ingestion depends on.
type Store interface {
	UpsertMarkets(ctx context.Context, markets []types.Market) error
	UpsertEvents(ctx context.Context, events []types.Event) error
	InsertPriceSnapshot(ctx context.Context, snap types.PriceSnapshot) error
}

var _ Store = storage.Storage(nil)

// ExchangeClient is the subset of exchange.Client ingestion depends on.
type ExchangeClient interface {
	GetMarkets(ctx context.Context, status, cursor string) (types.MarketPage, error)
	GetEvents(ctx context.Context, status, cursor string) (types.EventPage, error)
}

var _ ExchangeClient = (*exchange.Client)(nil)

// Service periodically pages through the exchange's open markets and
// events, upserting them into storage and swapping a fresh snapshot
// into the market cache every cycle.
type Service struct {
	client       ExchangeClient
	store        Store
	cache        *marketcache.Cache
	pollInterval time.Duration
	logger       *zap.Logger
}

// Config holds ingestion service configuration.
type Config struct {
	Client       ExchangeClient
	Store        Store
	Cache        *marketcache.Cache
	PollInterval time.Duration
	Logger       *zap.Logger
}

// New creates a new ingestion service.
func New(cfg Config) *Service {
	return &Service{
		client:       cfg.Client,
		store:        cfg.Store,
		cache:        cfg.Cache,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
	}
}

// Run drives the ingestion poll loop until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("ingestion-service-starting", zap.Duration("poll-interval", s.pollInterval))

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	if _, err := s.IngestAll(ctx); err != nil {
		s.logger.Error("initial-ingest-failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ingestion-service-stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.IngestAll(ctx); err != nil {
				s.logger.Error("ingest-failed", zap.Error(err))
			}
		}
	}
}

// Summary reports how many rows one IngestAll cycle touched.
type Summary struct {
	Markets int
	Events  int
}

// IngestAll fetches every open market and event, upserts them, swaps
// the market cache, and records a price snapshot for each market with
// a full quote. Grounded on original_source/src/ingestion.py's
// ingest_all().
func (s *Service) IngestAll(ctx context.Context) (Summary, error) {
	start := time.Now()
	defer func() {
		IngestDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	markets, err := s.fetchAllMarkets(ctx)
	if err != nil {
		IngestErrorsTotal.Inc()
		return Summary{}, fmt.Errorf("fetch markets: %w", err)
	}

	events, err := s.fetchAllEvents(ctx)
	if err != nil {
		IngestErrorsTotal.Inc()
		return Summary{}, fmt.Errorf("fetch events: %w", err)
	}

	if err := s.store.UpsertMarkets(ctx, markets); err != nil {
		IngestErrorsTotal.Inc()
		return Summary{}, fmt.Errorf("upsert markets: %w", err)
	}
	if err := s.store.UpsertEvents(ctx, events); err != nil {
		IngestErrorsTotal.Inc()
		return Summary{}, fmt.Errorf("upsert events: %w", err)
	}

	s.cache.Swap(markets)

	for _, m := range markets {
		if m.YesAsk <= 0 || m.YesBid <= 0 {
			continue
		}
		snap := types.PriceSnapshot{
			MarketTicker: m.Ticker,
			YesAsk:       m.YesAsk,
			YesBid:       m.YesBid,
			Timestamp:    time.Now(),
		}
		if err := s.store.InsertPriceSnapshot(ctx, snap); err != nil {
			s.logger.Warn("price-snapshot-failed", zap.String("ticker", m.Ticker), zap.Error(err))
		}
	}

	MarketsIngestedTotal.Add(float64(len(markets)))
	EventsIngestedTotal.Add(float64(len(events)))

	s.logger.Debug("ingest-cycle-complete",
		zap.Int("markets", len(markets)),
		zap.Int("events", len(events)),
		zap.Duration("duration", time.Since(start)))

	return Summary{Markets: len(markets), Events: len(events)}, nil
}

// fetchAllMarkets pages through every open market (§6: cursor pagination).
func (s *Service) fetchAllMarkets(ctx context.Context) ([]types.Market, error) {
	var out []types.Market
	cursor := ""
	for {
		page, err := s.client.GetMarkets(ctx, "open", cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Markets...)
		if page.Cursor == "" || len(page.Markets) == 0 {
			break
		}
		cursor = page.Cursor
	}
	return out, nil
}

// fetchAllEvents pages through every open event.
func (s *Service) fetchAllEvents(ctx context.Context) ([]types.Event, error) {
	var out []types.Event
	cursor := ""
	for {
		page, err := s.client.GetEvents(ctx, "open", cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Events...)
		if page.Cursor == "" || len(page.Events) == 0 {
			break
		}
		cursor = page.Cursor
	}
	return out, nil
}
