// Package app wires every component from §4 into the engine's single
// orchestrator process: a 1-second-resolution scheduler that drives
// ingestion, relationship discovery, detection, and execution on the
// cadences config.Scanning describes (§4.7), plus the read-only HTTP
// surface and graceful shutdown.
package app

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/internal/detector"
	"github.com/kalshi-arb/engine/internal/exchange"
	"github.com/kalshi-arb/engine/internal/execution"
	"github.com/kalshi-arb/engine/internal/ingestion"
	"github.com/kalshi-arb/engine/internal/marketcache"
	"github.com/kalshi-arb/engine/internal/notify"
	"github.com/kalshi-arb/engine/internal/portfolio"
	"github.com/kalshi-arb/engine/internal/relationship"
	"github.com/kalshi-arb/engine/internal/storage"
	"github.com/kalshi-arb/engine/pkg/config"
	"github.com/kalshi-arb/engine/pkg/healthprobe"
	"github.com/kalshi-arb/engine/pkg/httpserver"
	"github.com/kalshi-arb/engine/pkg/types"
	"github.com/kalshi-arb/engine/pkg/websocket"
)

// App is the main application orchestrator.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server

	exchangeClient *exchange.Client
	marketCache    *marketcache.Cache
	storage        storage.Storage

	ingestionSvc    *ingestion.Service
	relationshipSvc *relationship.Service
	detector        *detector.Detector
	guard           *portfolio.Guard
	executor        *execution.Executor
	fills           *websocket.Manager

	opportunities *opportunityHolder
	notifier      *notify.Notifier
	scheduler     *scheduler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options holds application options.
type Options struct{}

// opportunityHolder publishes the most recent detection cycle's result
// for the read-only /opportunities endpoint (httpserver.OpportunitiesProvider).
// There is no storage.Storage method to list opportunities back out
// (§3 treats Opportunity rows as write-mostly audit trail), so the
// orchestrator keeps the live view in memory instead of expanding that
// interface for a single read-only endpoint.
type opportunityHolder struct {
	latest atomic.Pointer[[]*detector.Opportunity]
}

func newOpportunityHolder() *opportunityHolder {
	h := &opportunityHolder{}
	empty := []*detector.Opportunity{}
	h.latest.Store(&empty)
	return h
}

func (h *opportunityHolder) set(opps []*detector.Opportunity) {
	h.latest.Store(&opps)
}

// Opportunities implements httpserver.OpportunitiesProvider.
func (h *opportunityHolder) Opportunities() []*detector.Opportunity {
	return *h.latest.Load()
}

// cacheMarketSource adapts marketcache.Cache's pointer-slice return to
// the relationship.MarketSource interface's value-slice shape.
type cacheMarketSource struct {
	cache *marketcache.Cache
}

func (c cacheMarketSource) AllOpenMarkets(ctx context.Context) ([]types.Market, error) {
	all := c.cache.All()
	out := make([]types.Market, 0, len(all))
	for _, m := range all {
		if m.IsOpen() {
			out = append(out, *m)
		}
	}
	return out, nil
}
