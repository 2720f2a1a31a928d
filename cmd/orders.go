package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Inspect and cancel exchange orders",
}

//nolint:gochecknoglobals // Cobra boilerplate
var ordersGetCmd = &cobra.Command{
	Use:   "get <order-id>",
	Short: "Print the current state of an order",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrdersGet,
}

//nolint:gochecknoglobals // Cobra boilerplate
var ordersCancelCmd = &cobra.Command{
	Use:   "cancel <order-id>",
	Short: "Cancel a resting order",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrdersCancel,
}

//nolint:gochecknoglobals // Cobra boilerplate
var ordersFillsCmd = &cobra.Command{
	Use:   "fills",
	Short: "List recent fills",
	RunE:  runOrdersFills,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(ordersCmd)
	ordersCmd.AddCommand(ordersGetCmd, ordersCancelCmd, ordersFillsCmd)
}

func runOrdersGet(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := newExchangeClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("setup exchange client: %w", err)
	}

	order, err := client.GetOrder(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}

	fmt.Printf("%s %-10s %-4s %-4s count=%d filled=%d status=%s\n",
		order.OrderID, order.Ticker, order.Action, order.Side, order.Count, order.FilledCount, order.Status)
	return nil
}

func runOrdersCancel(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := newExchangeClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("setup exchange client: %w", err)
	}

	if err := client.CancelOrder(context.Background(), args[0]); err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}

	fmt.Printf("order %s canceled\n", args[0])
	return nil
}

func runOrdersFills(cmd *cobra.Command, args []string) error {
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
		page, err := client.GetFills(ctx, cursor)
		if err != nil {
			return fmt.Errorf("get fills: %w", err)
		}
		for _, f := range page.Fills {
			fmt.Printf("%s %-20s %-4s %-4s count=%d price=%d\n",
				f.OrderID, f.Ticker, f.Action, f.Side, f.Count, f.PriceCents)
		}
		total += len(page.Fills)
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}
	fmt.Printf("%d fills\n", total)
	return nil
}
