package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the exchange account balance",
	RunE:  runBalance,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := newExchangeClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("setup exchange client: %w", err)
	}

	balance, err := client.GetBalance(context.Background())
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}

	fmt.Printf("balance: $%.2f\n", balance)
	return nil
}
