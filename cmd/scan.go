package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalshi-arb/engine/internal/ingestion"
	"github.com/kalshi-arb/engine/internal/marketcache"
	"github.com/kalshi-arb/engine/internal/markets"
	"github.com/kalshi-arb/engine/internal/relationship"
	"github.com/kalshi-arb/engine/pkg/cache"
	"github.com/kalshi-arb/engine/pkg/types"
)

// cliMarketSource adapts a marketcache.Cache to relationship.MarketSource
// for the one-shot CLI verbs, the same way internal/app's
// cacheMarketSource does for the long-running orchestrator.
type cliMarketSource struct {
	cache *marketcache.Cache
}

func (c cliMarketSource) AllOpenMarkets(ctx context.Context) ([]types.Market, error) {
	all := c.cache.All()
	out := make([]types.Market, 0, len(all))
	for _, m := range all {
		if m.IsOpen() {
			out = append(out, *m)
		}
	}
	return out, nil
}

//nolint:gochecknoglobals // Cobra boilerplate
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single relationship-discovery pass",
	Long: `Ingests the current market/event universe, then runs one
relationship-discovery pass. --pass selects which: event (markets
within the same event), category (markets in the same high-value
category), or cross (across categories).`,
	RunE: runScan,
}

//nolint:gochecknoglobals // Cobra boilerplate
var scanPass string

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVar(&scanPass, "pass", "event", "discovery pass: event, category, or cross")
}

func parsePass(s string) (relationship.Pass, error) {
	switch s {
	case "event":
		return relationship.PassWithinEvent, nil
	case "category":
		return relationship.PassWithinCategory, nil
	case "cross":
		return relationship.PassCrossCategory, nil
	default:
		return "", fmt.Errorf("unknown pass %q (want event, category, or cross)", s)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	pass, err := parsePass(scanPass)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := newExchangeClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("setup exchange client: %w", err)
	}

	store, err := newStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("setup storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	marketCache := marketcache.New()
	ingestSvc := ingestion.New(ingestion.Config{
		Client:       client,
		Store:        store,
		Cache:        marketCache,
		PollInterval: cfg.ScanInterval(),
		Logger:       logger,
	})
	if _, err := ingestSvc.IngestAll(context.Background()); err != nil {
		return fmt.Errorf("ingest before scan: %w", err)
	}

	appCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 100000,
		MaxCost:     10000,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("setup cache: %w", err)
	}

	oracle := relationship.NewHTTPOracle(cfg.Oracle.Endpoint, cfg.Oracle.APIKey, logger)
	svc := relationship.New(relationship.Config{
		Oracle:              oracle,
		Markets:             cliMarketSource{cache: marketCache},
		Store:               store,
		BatchCache:          markets.NewOracleCache(appCache, 10*time.Minute),
		ScanModel:           cfg.Oracle.ScanModel,
		ValidateModel:       cfg.Oracle.ValidateModel,
		HighValueCategories: cfg.Scanning.RelationshipCategories,
		Logger:              logger,
	})

	n, err := svc.Discover(context.Background(), pass)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}

	fmt.Printf("discovered %d relationships (pass=%s)\n", n, pass)
	return nil
}
