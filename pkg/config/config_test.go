package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Trading.DryRun)
	assert.Equal(t, "console", cfg.Storage.Mode)
	assert.NotEmpty(t, cfg.Scanning.RelationshipCategories)
}

func TestLoad_MergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := `
trading:
  dry_run: false
  max_risk_per_trade_pct: 0.05
  max_daily_loss: 50
  max_open_positions: 3
  max_contracts_per_trade: 100
  min_score_threshold: 0.1
  fee_safety_multiplier: 3.0
scanning:
  full_scan_interval_seconds: 120
exchange:
  key_id: test-key
  private_key_path: /tmp/key.pem
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Trading.DryRun)
	assert.Equal(t, 0.05, cfg.Trading.MaxRiskPerTradePct)
	assert.Equal(t, 120, cfg.Scanning.FullScanIntervalSeconds)
	// Untouched sections keep their defaults (the "merged over defaults" requirement).
	assert.Equal(t, 15, cfg.Scanning.OpportunityRecheckSeconds)
	assert.Equal(t, "console", cfg.Storage.Mode)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("STORAGE_MODE", "postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.HTTPPort)
	assert.Equal(t, "postgres", cfg.Storage.Mode)
	assert.Equal(t, "db.internal", cfg.Storage.Host)
}

func TestValidate_RejectsBadStorageMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Mode = "sqlite"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsOutOfRangeRiskPct(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trading.MaxRiskPerTradePct = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidate_RequiresCredentialsOutsideDryRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trading.DryRun = false
	assert.Error(t, cfg.Validate())

	cfg.Exchange.KeyID = "k"
	cfg.Exchange.PrivateKeyPath = "/tmp/key.pem"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
