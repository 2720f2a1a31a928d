package app

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/internal/detector"
	"github.com/kalshi-arb/engine/internal/exchange"
	"github.com/kalshi-arb/engine/internal/execution"
	"github.com/kalshi-arb/engine/internal/ingestion"
	"github.com/kalshi-arb/engine/internal/marketcache"
	"github.com/kalshi-arb/engine/internal/markets"
	"github.com/kalshi-arb/engine/internal/notify"
	"github.com/kalshi-arb/engine/internal/portfolio"
	"github.com/kalshi-arb/engine/internal/relationship"
	"github.com/kalshi-arb/engine/internal/storage"
	"github.com/kalshi-arb/engine/pkg/cache"
	"github.com/kalshi-arb/engine/pkg/config"
	"github.com/kalshi-arb/engine/pkg/healthprobe"
	"github.com/kalshi-arb/engine/pkg/httpserver"
	"github.com/kalshi-arb/engine/pkg/websocket"
)

// New creates a new application instance, wiring every component
// described by §4 against cfg.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	signer, err := setupSigner(cfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup signer: %w", err)
	}

	exchangeClient := exchange.New(exchange.Config{
		BaseURL: cfg.Exchange.BaseURL,
		Signer:  signer,
		Logger:  logger,
	})

	marketCache := marketcache.New()

	store, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	appCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 100000,
		MaxCost:     10000,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	ingestionSvc := ingestion.New(ingestion.Config{
		Client:       exchangeClient,
		Store:        store,
		Cache:        marketCache,
		PollInterval: cfg.ScanInterval(),
		Logger:       logger,
	})

	oracle := relationship.NewHTTPOracle(cfg.Oracle.Endpoint, cfg.Oracle.APIKey, logger)
	oracleCache := markets.NewOracleCache(appCache, 10*time.Minute)
	relationshipSvc := relationship.New(relationship.Config{
		Oracle:              oracle,
		Markets:             cacheMarketSource{cache: marketCache},
		Store:               store,
		BatchCache:          oracleCache,
		ScanModel:           cfg.Oracle.ScanModel,
		ValidateModel:       cfg.Oracle.ValidateModel,
		HighValueCategories: cfg.Scanning.RelationshipCategories,
		Logger:              logger,
	})

	det := detector.New(marketCache, store, detector.Config{
		MinScoreThreshold: cfg.Trading.MinScoreThreshold,
		SafetyMultiplier:  cfg.Trading.FeeSafetyMultiplier,
	}, logger)

	guard := portfolio.New(portfolio.Config{
		Exchange:             exchangeClient,
		Store:                store,
		Logger:               logger,
		MaxRiskPct:           cfg.Trading.MaxRiskPerTradePct,
		MaxDailyLoss:         cfg.Trading.MaxDailyLoss,
		MaxOpenPositions:     cfg.Trading.MaxOpenPositions,
		MaxContractsPerTrade: cfg.Trading.MaxContractsPerTrade,
	})

	executor := execution.New(execution.Config{
		Exchange: exchangeClient,
		Store:    store,
		Guard:    guard,
		Logger:   logger,
		DryRun:   cfg.Trading.DryRun,
	})

	var fills *websocket.Manager
	if !cfg.Trading.DryRun && cfg.Exchange.WSURL != "" {
		fills = websocket.New(websocket.Config{
			URL:                   cfg.Exchange.WSURL,
			Signer:                exchangeClient,
			DialTimeout:           10 * time.Second,
			PongTimeout:           30 * time.Second,
			PingInterval:          15 * time.Second,
			ReconnectInitialDelay: time.Second,
			ReconnectMaxDelay:     30 * time.Second,
			ReconnectBackoffMult:  2.0,
			MessageBufferSize:     256,
			Logger:                logger,
		})
	}

	opportunities := newOpportunityHolder()

	notifier := notify.New(notify.Config{
		WebhookURL:   cfg.Notify.WebhookURL,
		MaxPerMinute: cfg.Notify.MaxPerMinute,
		Logger:       logger,
	})

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Opportunities: opportunities,
		Portfolio:     guard,
	})

	app := &App{
		cfg:             cfg,
		logger:          logger,
		healthChecker:   healthChecker,
		httpServer:      httpServer,
		exchangeClient:  exchangeClient,
		marketCache:     marketCache,
		storage:         store,
		ingestionSvc:    ingestionSvc,
		relationshipSvc: relationshipSvc,
		detector:        det,
		guard:           guard,
		executor:        executor,
		fills:           fills,
		opportunities:   opportunities,
		notifier:        notifier,
		ctx:             ctx,
		cancel:          cancel,
	}
	app.scheduler = app.buildScheduler()

	return app, nil
}

// setupSigner builds the RSA-PSS signer used for every exchange request
// (§6). Outside dry-run mode the private key is mandatory (enforced by
// config.Validate); in dry-run mode with no key configured, an ephemeral
// in-memory key is generated instead, since the client signs every
// request including the market-data reads ingestion needs even when no
// order will ever be placed.
func setupSigner(cfg *config.Config) (*exchange.Signer, error) {
	if cfg.Exchange.PrivateKeyPath == "" {
		return ephemeralSigner()
	}

	pemBytes, err := os.ReadFile(cfg.Exchange.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	return exchange.NewSigner(cfg.Exchange.KeyID, pemBytes)
}

func ephemeralSigner() (*exchange.Signer, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral signing key: %w", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return exchange.NewSigner("dry-run", pemBytes)
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.Storage.Mode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:        cfg.Storage.Host,
			Port:        cfg.Storage.Port,
			User:        cfg.Storage.User,
			Password:    cfg.Storage.Password,
			Database:    cfg.Storage.Database,
			SSLMode:     cfg.Storage.SSLMode,
			MaxOpenConn: cfg.Storage.MaxOpenConn,
			MaxIdleConn: cfg.Storage.MaxIdleConn,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}
