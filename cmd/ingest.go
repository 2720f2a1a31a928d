package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kalshi-arb/engine/internal/ingestion"
	"github.com/kalshi-arb/engine/internal/marketcache"
)

//nolint:gochecknoglobals // Cobra boilerplate
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run a single market/event ingestion cycle",
	RunE:  runIngest,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
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

	svc := ingestion.New(ingestion.Config{
		Client:       client,
		Store:        store,
		Cache:        marketcache.New(),
		PollInterval: cfg.ScanInterval(),
		Logger:       logger,
	})

	summary, err := svc.IngestAll(context.Background())
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	fmt.Printf("ingested %d markets, %d events\n", summary.Markets, summary.Events)
	return nil
}
