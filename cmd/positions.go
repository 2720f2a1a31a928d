package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List open exchange positions",
	RunE:  runPositions,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(positionsCmd)
}

func runPositions(cmd *cobra.Command, args []string) error {
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
		page, err := client.GetPositions(ctx, cursor)
		if err != nil {
			return fmt.Errorf("get positions: %w", err)
		}
		for _, p := range page.Positions {
			fmt.Printf("%-20s %-4s qty=%d\n", p.Ticker, p.Side, p.Quantity)
		}
		total += len(page.Positions)
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}
	fmt.Printf("%d positions\n", total)
	return nil
}
