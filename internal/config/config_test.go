package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solsweep/sweepbot/internal/domain"
)

func TestDefaults_AreValidForMonitorMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"

	require.NoError(t, cfg.Validate())
}

func TestValidate_TradeModeRequiresAccountAndKey(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account must be set")
	assert.Contains(t, err.Error(), "private_key or keypair_path")
}

func TestValidate_WalletSourcesAreMutuallyExclusive(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Engine.Account = "acct"
	cfg.Wallet.PrivateKey = "abc"
	cfg.Wallet.KeypairPath = "/tmp/keypair.json"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "nonsense"
	cfg.Engine.Pairs = []string{"SOLUSDC"}
	cfg.Risk.BaseSlippageBps = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "malformed pair")
	assert.Contains(t, err.Error(), "base_slippage_bps")
}

func TestValidate_ThresholdMustLieInsideLedgerBand(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"
	cfg.Detector.InitialThresholdPct = 0.9 // ledger band tops out at 0.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial_threshold_pct must lie within")
}

func TestDuration_UnmarshalsHumanReadableStrings(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	require.Error(t, d.UnmarshalText([]byte("ninety seconds")))
}

func TestAssetClass_ResolvesBaseAndFallsBackToVolatile(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, domain.AssetClassBase, cfg.AssetClass("SOL"))
	assert.Equal(t, domain.AssetClassStable, cfg.AssetClass("USDC"))
	assert.Equal(t, domain.AssetClassNew, cfg.AssetClass("BONK"))
	assert.Equal(t, domain.AssetClassVolatile, cfg.AssetClass("WIF"))
}

func TestApplyEnvOverrides_PrefersEnvironment(t *testing.T) {
	t.Setenv("SWEEPBOT_MODE", "monitor")
	t.Setenv("SWEEPBOT_ENGINE_BASE_ASSET", "ETH")
	t.Setenv("SWEEPBOT_ENGINE_PAIRS", "ETH/USDC, ARB/ETH")
	t.Setenv("SWEEPBOT_ENGINE_MAX_ACTIVE_TRADES", "5")
	t.Setenv("SWEEPBOT_EXECUTOR_RETRY_BASE_DELAY", "250ms")
	t.Setenv("SWEEPBOT_LEDGER_PERSIST", "false")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "ETH", cfg.Engine.BaseAsset)
	assert.Equal(t, []string{"ETH/USDC", "ARB/ETH"}, cfg.Engine.Pairs)
	assert.Equal(t, 5, cfg.Engine.MaxActiveTrades)
	assert.Equal(t, 250*time.Millisecond, cfg.Executor.RetryBaseDelay.Duration)
	assert.False(t, cfg.Ledger.Persist)
}
