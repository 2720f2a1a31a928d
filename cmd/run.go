package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kalshi-arb/engine/internal/app"
	"github.com/kalshi-arb/engine/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the arbitrage engine",
	Long: `Starts the arbitrage engine, which will:
1. Poll the exchange for markets and events
2. Discover logical relationships between markets (subset, threshold,
   partition, implication)
3. Detect price violations against those relationships
4. Size and execute the offsetting legs within configured risk limits

Runs until interrupted (SIGINT/SIGTERM).`,
	RunE: runEngine,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runEngine(cmd *cobra.Command, args []string) error {
	loadEnv()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger, &app.Options{})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	if err := application.Run(); err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
