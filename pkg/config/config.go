// Package config loads the engine's configuration the way the teacher's
// pkg/config does (a flat-ish struct built by typed default-getters with
// a Validate() returning descriptive errors), extended with the
// two-layer merge spec.md §6 requires: DefaultConfig() builds the
// struct the teacher's way, then LoadYAML unmarshals a YAML document
// over it before env-var overrides and Validate() run.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// TradingConfig is spec.md §6's "trading" YAML section.
type TradingConfig struct {
	DryRun                bool    `yaml:"dry_run"`
	MaxRiskPerTradePct    float64 `yaml:"max_risk_per_trade_pct"`
	MaxDailyLoss          float64 `yaml:"max_daily_loss"`
	MaxOpenPositions      int     `yaml:"max_open_positions"`
	MaxContractsPerTrade  int     `yaml:"max_contracts_per_trade"`
	MinScoreThreshold     float64 `yaml:"min_score_threshold"`
	FeeSafetyMultiplier   float64 `yaml:"fee_safety_multiplier"`
}

// ScanningConfig is spec.md §6's "scanning" YAML section, extended with
// the data-driven category allow-list (Open Question decision 3) and
// the optional revalidation cadence (SUPPLEMENTED FEATURES).
type ScanningConfig struct {
	FullScanIntervalSeconds      int      `yaml:"full_scan_interval_seconds"`
	OpportunityRecheckSeconds    int      `yaml:"opportunity_recheck_seconds"`
	RelationshipRescanHours      int      `yaml:"relationship_rescan_hours"`
	RelationshipCrossScanHours   int      `yaml:"relationship_cross_scan_hours"`
	RelationshipRevalidateHours  int      `yaml:"relationship_revalidate_hours"` // 0 disables the pass
	RelationshipCategories       []string `yaml:"relationship_categories"`
}

// LoggingConfig is spec.md §6's "logging" YAML section.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ExchangeConfig holds the credentials and endpoint for the signed REST
// client (§6). PrivateKeyPath, not the key material itself, is what
// config carries; the key is read and parsed at startup (a missing or
// unreadable key is a Fatal-kind error per §7).
type ExchangeConfig struct {
	BaseURL        string `yaml:"base_url"`
	KeyID          string `yaml:"key_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
	WSURL          string `yaml:"ws_url"`
}

// OracleConfig points at the external relationship-inference completion
// service (§6 external interfaces); it is an interface the engine calls,
// never implements.
type OracleConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	ScanModel     string `yaml:"scan_model"`
	ValidateModel string `yaml:"validate_model"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Mode        string `yaml:"mode"` // "postgres" or "console"
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Database    string `yaml:"database"`
	SSLMode     string `yaml:"sslmode"`
	MaxOpenConn int    `yaml:"max_open_conn"`
	MaxIdleConn int    `yaml:"max_idle_conn"`
}

// NotifyConfig is the best-effort webhook notification sink (§6).
type NotifyConfig struct {
	WebhookURL        string `yaml:"webhook_url"`
	MaxPerMinute      int    `yaml:"max_per_minute"`
}

// Config is the engine's full, merged configuration.
type Config struct {
	HTTPPort string `yaml:"http_port"`

	Trading  TradingConfig  `yaml:"trading"`
	Scanning ScanningConfig `yaml:"scanning"`
	Logging  LoggingConfig  `yaml:"logging"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Storage  StorageConfig  `yaml:"storage"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// defaultHighValueCategories is the original bot's compiled-in
// HIGH_VALUE_CATEGORIES allow-list, carried forward as the zero-value
// default for Scanning.RelationshipCategories now that it is
// config-driven (Open Question decision 3).
var defaultHighValueCategories = []string{
	"Economics",
	"Politics",
	"Elections",
	"Financials",
	"Climate and Weather",
	"World",
	"Companies",
	"Science and Technology",
	"Health",
}

// DefaultConfig builds a Config from the same kind of typed defaults the
// teacher's LoadFromEnv used, before any YAML or env override is
// applied.
func DefaultConfig() *Config {
	return &Config{
		HTTPPort: "8080",
		Trading: TradingConfig{
			DryRun:               true,
			MaxRiskPerTradePct:   0.02,
			MaxDailyLoss:         100.0,
			MaxOpenPositions:     10,
			MaxContractsPerTrade: 500,
			MinScoreThreshold:    0.05,
			FeeSafetyMultiplier:  2.0,
		},
		Scanning: ScanningConfig{
			FullScanIntervalSeconds:     60,
			OpportunityRecheckSeconds:   15,
			RelationshipRescanHours:     24,
			RelationshipCrossScanHours:  72,
			RelationshipRevalidateHours: 0,
			RelationshipCategories:      defaultHighValueCategories,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Exchange: ExchangeConfig{
			BaseURL: "https://trading-api.example-exchange.com/trade-api/v2",
			WSURL:   "wss://trading-api.example-exchange.com/trade-api/ws/v2",
		},
		Oracle: OracleConfig{
			ScanModel:     "relationship-scan",
			ValidateModel: "relationship-validate",
		},
		Storage: StorageConfig{
			Mode:        "console",
			Host:        "localhost",
			Port:        "5432",
			User:        "kalshi_arb",
			Password:    "kalshi_arb",
			Database:    "kalshi_arb",
			SSLMode:     "disable",
			MaxOpenConn: 10,
			MaxIdleConn: 2,
		},
		Notify: NotifyConfig{
			MaxPerMinute: 10,
		},
	}
}

// Load builds the default config, merges a YAML file over it if path is
// non-empty (spec.md §6: "merged over defaults"), applies environment
// overrides for the handful of values operators most often need to
// override per-deploy without editing the file, then validates.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides layers environment variables over the YAML-merged
// config, the same getEnvOrDefault idiom the teacher's LoadFromEnv used,
// now applied selectively to credentials and deploy-time knobs rather
// than every field.
func applyEnvOverrides(cfg *Config) {
	cfg.HTTPPort = getEnvOrDefault("HTTP_PORT", cfg.HTTPPort)
	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)

	cfg.Exchange.BaseURL = getEnvOrDefault("EXCHANGE_BASE_URL", cfg.Exchange.BaseURL)
	cfg.Exchange.WSURL = getEnvOrDefault("EXCHANGE_WS_URL", cfg.Exchange.WSURL)
	cfg.Exchange.KeyID = getEnvOrDefault("EXCHANGE_KEY_ID", cfg.Exchange.KeyID)
	cfg.Exchange.PrivateKeyPath = getEnvOrDefault("EXCHANGE_PRIVATE_KEY_PATH", cfg.Exchange.PrivateKeyPath)

	cfg.Oracle.Endpoint = getEnvOrDefault("ORACLE_ENDPOINT", cfg.Oracle.Endpoint)
	cfg.Oracle.APIKey = getEnvOrDefault("ORACLE_API_KEY", cfg.Oracle.APIKey)

	cfg.Storage.Mode = getEnvOrDefault("STORAGE_MODE", cfg.Storage.Mode)
	cfg.Storage.Host = getEnvOrDefault("POSTGRES_HOST", cfg.Storage.Host)
	cfg.Storage.Port = getEnvOrDefault("POSTGRES_PORT", cfg.Storage.Port)
	cfg.Storage.User = getEnvOrDefault("POSTGRES_USER", cfg.Storage.User)
	cfg.Storage.Password = getEnvOrDefault("POSTGRES_PASSWORD", cfg.Storage.Password)
	cfg.Storage.Database = getEnvOrDefault("POSTGRES_DB", cfg.Storage.Database)
	cfg.Storage.SSLMode = getEnvOrDefault("POSTGRES_SSLMODE", cfg.Storage.SSLMode)

	cfg.Notify.WebhookURL = getEnvOrDefault("NOTIFY_WEBHOOK_URL", cfg.Notify.WebhookURL)

	if v := os.Getenv("TRADING_DRY_RUN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Trading.DryRun = b
		}
	}
}

// Validate checks that configuration values are coherent, mirroring the
// teacher's descriptive-error Validate() idiom.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return errors.New("http_port cannot be empty")
	}
	if c.Exchange.BaseURL == "" {
		return errors.New("exchange.base_url cannot be empty")
	}
	if c.Storage.Mode != "postgres" && c.Storage.Mode != "console" {
		return fmt.Errorf("storage.mode must be 'postgres' or 'console', got %q", c.Storage.Mode)
	}
	if c.Trading.MaxRiskPerTradePct <= 0 || c.Trading.MaxRiskPerTradePct >= 1.0 {
		return fmt.Errorf("trading.max_risk_per_trade_pct must be between 0 and 1.0, got %f", c.Trading.MaxRiskPerTradePct)
	}
	if c.Trading.MaxDailyLoss <= 0 {
		return fmt.Errorf("trading.max_daily_loss must be positive, got %f", c.Trading.MaxDailyLoss)
	}
	if c.Trading.MaxOpenPositions <= 0 {
		return fmt.Errorf("trading.max_open_positions must be positive, got %d", c.Trading.MaxOpenPositions)
	}
	if c.Trading.MaxContractsPerTrade <= 0 {
		return fmt.Errorf("trading.max_contracts_per_trade must be positive, got %d", c.Trading.MaxContractsPerTrade)
	}
	if c.Trading.FeeSafetyMultiplier <= 0 {
		return fmt.Errorf("trading.fee_safety_multiplier must be positive, got %f", c.Trading.FeeSafetyMultiplier)
	}
	if c.Scanning.FullScanIntervalSeconds <= 0 {
		return fmt.Errorf("scanning.full_scan_interval_seconds must be positive, got %d", c.Scanning.FullScanIntervalSeconds)
	}
	if c.Scanning.OpportunityRecheckSeconds <= 0 {
		return fmt.Errorf("scanning.opportunity_recheck_seconds must be positive, got %d", c.Scanning.OpportunityRecheckSeconds)
	}
	if c.Scanning.RelationshipRescanHours <= 0 {
		return fmt.Errorf("scanning.relationship_rescan_hours must be positive, got %d", c.Scanning.RelationshipRescanHours)
	}
	if c.Scanning.RelationshipRevalidateHours < 0 {
		return fmt.Errorf("scanning.relationship_revalidate_hours must be non-negative (0 disables the pass), got %d", c.Scanning.RelationshipRevalidateHours)
	}
	if !c.Trading.DryRun {
		if c.Exchange.KeyID == "" || c.Exchange.PrivateKeyPath == "" {
			return errors.New("exchange.key_id and exchange.private_key_path are required outside dry-run mode")
		}
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ScanInterval is a convenience conversion for the orchestrator's timing
// wheel (§4.7).
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Scanning.FullScanIntervalSeconds) * time.Second
}

// DetectionInterval is a convenience conversion for the orchestrator.
func (c *Config) DetectionInterval() time.Duration {
	return time.Duration(c.Scanning.OpportunityRecheckSeconds) * time.Second
}
