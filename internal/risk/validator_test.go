package risk

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solsweep/sweepbot/internal/config"
	"github.com/solsweep/sweepbot/internal/domain"
)

func testValidator() *Validator {
	cfg := config.Defaults()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg.Risk, cfg.AssetClass, logger)
}

func TestValidate_RejectsWhenProfitBelowSlippageFraction(t *testing.T) {
	v := testValidator()
	opp := domain.Opportunity{
		PercentChange:   0.5,
		EstimatedFeePct: 0.01,
	}
	// 500 bps tolerance at fraction 0.75 requires 3.75% net profit; the
	// opportunity nets roughly 0.44%.
	budget := domain.SlippageBudget{ToleranceBps: 500, RequiredProfitFraction: 0.75}

	assert.InDelta(t, 0.435, NetProfitPct(opp), 1e-9)
	assert.False(t, v.Validate(opp, budget))
}

func TestValidate_PassesWhenProfitCoversSlippage(t *testing.T) {
	v := testValidator()
	opp := domain.Opportunity{
		PercentChange:   0.5,
		EstimatedFeePct: 0.01,
	}
	// 50 bps at fraction 0.75 requires 0.375% net profit.
	budget := domain.SlippageBudget{ToleranceBps: 50, RequiredProfitFraction: 0.75}

	assert.True(t, v.Validate(opp, budget))
}

func TestValidate_NegativeMovementUsesMagnitude(t *testing.T) {
	v := testValidator()
	opp := domain.Opportunity{
		PercentChange:   -0.5,
		EstimatedFeePct: 0.01,
	}
	budget := domain.SlippageBudget{ToleranceBps: 50, RequiredProfitFraction: 0.75}

	assert.True(t, v.Validate(opp, budget))
}

func TestBudget_ScalesToleranceByConfidenceTier(t *testing.T) {
	v := testValidator()
	base := domain.Opportunity{OutputAsset: "RAY"} // volatile: 50 bps x 1.5 = 75

	low := base
	low.Confidence = 60
	assert.Equal(t, 53, v.Budget(low).ToleranceBps) // x0.7, rounded

	mid := base
	mid.Confidence = 80
	assert.Equal(t, 68, v.Budget(mid).ToleranceBps) // x0.9, rounded

	high := base
	high.Confidence = 90
	assert.Equal(t, 75, v.Budget(high).ToleranceBps)
}

func TestBudget_UsesAssetClassTables(t *testing.T) {
	v := testValidator()

	stable := v.Budget(domain.Opportunity{OutputAsset: "USDC", Confidence: 90})
	assert.Equal(t, 40, stable.ToleranceBps) // 50 bps x 0.8
	assert.Equal(t, 0.70, stable.RequiredProfitFraction)

	newer := v.Budget(domain.Opportunity{OutputAsset: "BONK", Confidence: 90})
	assert.Equal(t, 100, newer.ToleranceBps) // 50 bps x 2.0
	assert.Equal(t, 0.90, newer.RequiredProfitFraction)

	baseAsset := v.Budget(domain.Opportunity{OutputAsset: "SOL", Confidence: 90})
	assert.Equal(t, 50, baseAsset.ToleranceBps)
	assert.Equal(t, 0.75, baseAsset.RequiredProfitFraction)

	unknown := v.Budget(domain.Opportunity{OutputAsset: "WIF", Confidence: 90})
	assert.Equal(t, 75, unknown.ToleranceBps, "unlisted assets are treated as volatile")
	assert.Equal(t, 0.85, unknown.RequiredProfitFraction)
}
