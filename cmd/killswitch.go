package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kalshi-arb/engine/internal/portfolio"
)

//nolint:gochecknoglobals // Cobra boilerplate
var killswitchCmd = &cobra.Command{
	Use:   "killswitch",
	Short: "Inspect and control the portfolio kill switch",
}

//nolint:gochecknoglobals // Cobra boilerplate
var killswitchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current kill-switch and portfolio state",
	RunE:  runKillswitchStatus,
}

//nolint:gochecknoglobals // Cobra boilerplate
var killswitchTripCmd = &cobra.Command{
	Use:   "trip <reason>",
	Short: "Trip the kill switch, halting all future trading",
	Args:  cobra.ExactArgs(1),
	RunE:  runKillswitchTrip,
}

//nolint:gochecknoglobals // Cobra boilerplate
var killswitchClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Deactivate the kill switch",
	RunE:  runKillswitchClear,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(killswitchCmd)
	killswitchCmd.AddCommand(killswitchStatusCmd, killswitchTripCmd, killswitchClearCmd)
}

// guardCLI builds the minimal portfolio.Guard the killswitch verb needs:
// real storage (the system of record for kill-switch state) and a real
// exchange client (Sync needs it), but none of the detector/executor
// wiring `run` assembles.
func guardCLI(cmd *cobra.Command) (*portfolio.Guard, func(), error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	client, err := newExchangeClient(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("setup exchange client: %w", err)
	}

	store, err := newStorage(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("setup storage: %w", err)
	}

	guard := portfolio.New(portfolio.Config{
		Exchange:             client,
		Store:                store,
		Logger:               logger,
		MaxRiskPct:           cfg.Trading.MaxRiskPerTradePct,
		MaxDailyLoss:         cfg.Trading.MaxDailyLoss,
		MaxOpenPositions:     cfg.Trading.MaxOpenPositions,
		MaxContractsPerTrade: cfg.Trading.MaxContractsPerTrade,
	})

	cleanup := func() {
		_ = store.Close()
		_ = logger.Sync()
	}
	return guard, cleanup, nil
}

func runKillswitchStatus(cmd *cobra.Command, args []string) error {
	guard, cleanup, err := guardCLI(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := guard.Sync(context.Background()); err != nil {
		fmt.Printf("warning: portfolio sync failed: %v\n", err)
	}

	state := guard.State()
	fmt.Printf("kill_switch=%v balance=$%.2f daily_pnl=$%.2f open_positions=%d\n",
		state.KillSwitch, state.Balance, state.DailyPnL, state.OpenPositions)
	return nil
}

func runKillswitchTrip(cmd *cobra.Command, args []string) error {
	guard, cleanup, err := guardCLI(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := guard.TripKillSwitch(context.Background(), args[0]); err != nil {
		return fmt.Errorf("trip kill switch: %w", err)
	}
	fmt.Println("kill switch tripped")
	return nil
}

func runKillswitchClear(cmd *cobra.Command, args []string) error {
	guard, cleanup, err := guardCLI(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := guard.DeactivateKillSwitch(context.Background()); err != nil {
		return fmt.Errorf("deactivate kill switch: %w", err)
	}
	fmt.Println("kill switch cleared")
	return nil
}
