package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kalshi-arb/engine/internal/detector"
	"github.com/kalshi-arb/engine/internal/ingestion"
	"github.com/kalshi-arb/engine/internal/marketcache"
)

//nolint:gochecknoglobals // Cobra boilerplate
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Ingest, then run a single detection pass and print opportunities",
	Long: `Ingests the current market universe and runs the detector against
every active relationship already stored. This never executes trades,
even outside dry-run mode: it's a read-only inspection verb for
checking what the engine currently sees.`,
	RunE: runDetect,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("ingest before detect: %w", err)
	}

	det := detector.New(marketCache, store, detector.Config{
		MinScoreThreshold: cfg.Trading.MinScoreThreshold,
		SafetyMultiplier:  cfg.Trading.FeeSafetyMultiplier,
	}, logger)

	opps, err := det.Detect(context.Background())
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}

	if len(opps) == 0 {
		fmt.Println("no opportunities found")
		return nil
	}
	for _, opp := range opps {
		fmt.Printf("%s signal=%s magnitude=%.4f confidence=%.2f legs=%d\n",
			opp.ID, opp.Signal, opp.Magnitude, opp.Confidence, len(opp.Legs))
	}
	fmt.Printf("%d opportunities\n", len(opps))
	return nil
}
