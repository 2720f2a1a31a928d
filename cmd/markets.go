package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "List markets from the exchange",
	RunE:  runMarkets,
}

//nolint:gochecknoglobals // Cobra boilerplate
var marketsStatus string

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(marketsCmd)
	marketsCmd.Flags().StringVar(&marketsStatus, "status", "open", "market status filter (open, closed, settled)")
}

func runMarkets(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := newExchangeClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("setup exchange client: %w", err)
	}

	ctx := context.Background()
	cursor := ""
	total := 0
	for {
		page, err := client.GetMarkets(ctx, marketsStatus, cursor)
		if err != nil {
			return fmt.Errorf("get markets: %w", err)
		}
		for _, m := range page.Markets {
			fmt.Printf("%-20s %-10s yes_bid=%.2f yes_ask=%.2f vol=%.0f %s\n",
				m.Ticker, m.Category, m.YesBid, m.YesAsk, m.Volume, m.Status)
		}
		total += len(page.Markets)
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}
	fmt.Printf("%d markets\n", total)
	return nil
}
