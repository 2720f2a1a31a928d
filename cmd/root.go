package cmd

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/internal/exchange"
	"github.com/kalshi-arb/engine/internal/storage"
	"github.com/kalshi-arb/engine/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "kalshi-arb",
	Short: "Kalshi binary-market arbitrage engine",
	Long: `An automated arbitrage engine for Kalshi's binary (YES/NO) prediction
markets. It discovers logical relationships between markets (subset,
threshold, partition, implication), watches them for price violations,
and executes the offsetting legs within configured risk limits.`,
}

//nolint:gochecknoglobals // Cobra boilerplate
var configPath string

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file, merged over defaults")
}

// loadEnv loads a .env file into the process environment if one is
// present, tolerating its absence.
func loadEnv() {
	_ = godotenv.Load()
}

// loadConfig loads the merged engine configuration and a console-style
// logger suited to a one-shot CLI verb (the production JSON logger is
// reserved for the long-running `run` command).
func loadConfig() (*config.Config, *zap.Logger, error) {
	loadEnv()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewDevelopmentLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	return cfg, logger, nil
}

// newSigner builds the request signer the same way the application does
// (internal/app/setup.go): the configured private key outside dry-run,
// or an ephemeral in-memory key so read-only verbs work without
// credentials.
func newSigner(cfg *config.Config) (*exchange.Signer, error) {
	if cfg.Exchange.PrivateKeyPath == "" {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral signing key: %w", err)
		}
		pemBytes := pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})
		return exchange.NewSigner("cli", pemBytes)
	}

	pemBytes, err := os.ReadFile(cfg.Exchange.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	return exchange.NewSigner(cfg.Exchange.KeyID, pemBytes)
}

// newExchangeClient builds a signed exchange.Client from cfg for verbs
// that talk to the exchange directly.
func newExchangeClient(cfg *config.Config, logger *zap.Logger) (*exchange.Client, error) {
	signer, err := newSigner(cfg)
	if err != nil {
		return nil, fmt.Errorf("setup signer: %w", err)
	}

	return exchange.New(exchange.Config{
		BaseURL: cfg.Exchange.BaseURL,
		Signer:  signer,
		Logger:  logger,
	}), nil
}

// newStorage builds the configured persistence backend, the same switch
// internal/app/setup.go uses.
func newStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
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
