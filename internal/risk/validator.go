// Package risk gates candidate trades on whether their expected net profit
// justifies the slippage tolerance about to be requested from the venue.
package risk

import (
	"log/slog"
	"math"

	"github.com/solsweep/sweepbot/internal/config"
	"github.com/solsweep/sweepbot/internal/domain"
)

// Classifier resolves an asset symbol to its risk class.
type Classifier func(asset string) domain.AssetClass

// Haircuts applied when estimating net profit: gross movement is discounted
// by 10% and the network fee estimate is padded by 50%.
const (
	grossHaircut = 0.9
	feeBuffer    = 1.5
)

// Confidence tiers for slippage tolerance scaling.
const (
	lowConfidenceCeil   = 70.0
	highConfidenceFloor = 85.0
	lowConfidenceScale  = 0.7
	midConfidenceScale  = 0.9
)

// Validator is a pure, side-effect-free profit-to-slippage gate. A false
// result is a normal "no trade" outcome, not an error.
type Validator struct {
	cfg      config.RiskConfig
	classify Classifier
	logger   *slog.Logger
}

// New creates a Validator using the given asset classifier.
func New(cfg config.RiskConfig, classify Classifier, logger *slog.Logger) *Validator {
	return &Validator{
		cfg:      cfg,
		classify: classify,
		logger:   logger.With(slog.String("component", "risk")),
	}
}

// Budget derives the slippage budget for an opportunity: the base tolerance
// times the output asset's class modifier, scaled by confidence tier, paired
// with the class's required profit fraction.
func (v *Validator) Budget(opp domain.Opportunity) domain.SlippageBudget {
	class := v.classify(opp.OutputAsset)

	mod := 1.0
	if m, ok := v.cfg.SlippageModifiers[string(class)]; ok {
		mod = m
	}
	tolerance := float64(v.cfg.BaseSlippageBps) * mod

	switch {
	case opp.Confidence < lowConfidenceCeil:
		tolerance *= lowConfidenceScale
	case opp.Confidence < highConfidenceFloor:
		tolerance *= midConfidenceScale
	}

	frac := 0.85
	if f, ok := v.cfg.ProfitFractions[string(class)]; ok {
		frac = f
	}

	return domain.SlippageBudget{
		ToleranceBps:           int(math.Round(tolerance)),
		RequiredProfitFraction: frac,
	}
}

// Validate returns true only when the estimated net profit reaches the
// required fraction of the slippage tolerance that will be requested.
func (v *Validator) Validate(opp domain.Opportunity, budget domain.SlippageBudget) bool {
	minRequired := budget.SlippagePct() * budget.RequiredProfitFraction
	netProfit := NetProfitPct(opp)

	ok := netProfit >= minRequired
	if !ok {
		v.logger.Debug("opportunity rejected by profit-to-slippage gate",
			slog.String("pair", opp.Pair.Symbol()),
			slog.Float64("net_profit_pct", netProfit),
			slog.Float64("min_required_pct", minRequired),
			slog.Int("tolerance_bps", budget.ToleranceBps),
		)
	}
	return ok
}

// NetProfitPct estimates the net profit percentage for an opportunity after
// the gross haircut and fee buffer.
func NetProfitPct(opp domain.Opportunity) float64 {
	return math.Abs(opp.PercentChange)*grossHaircut - opp.EstimatedFeePct*feeBuffer
}
