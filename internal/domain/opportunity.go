package domain

import "time"

// Opportunity is a detected, sized, scored candidate trade awaiting risk
// validation. Opportunities are created fresh each detection cycle and either
// consumed immediately or discarded; they are never persisted.
type Opportunity struct {
	ID              string
	Pair            TradingPair
	InputAsset      string
	OutputAsset     string
	ObservedPrice   float64
	PercentChange   float64 // short-term movement, percent
	SuggestedAmount float64 // input-asset units
	EstimatedFeePct float64
	PotentialProfit float64 // base-asset units
	Confidence      float64 // always clamped to [10, 95]
	DetectedAt      time.Time
}

// Score is the ranking key used when selecting the best opportunities of a
// cycle: confidence weighted by expected profit.
func (o Opportunity) Score() float64 {
	return o.Confidence * o.PotentialProfit
}

// SlippageBudget is derived per opportunity from the asset-class table and the
// confidence tier. ToleranceBps is what will be requested from the venue;
// RequiredProfitFraction is the fraction of that tolerance the expected net
// profit must clear for the trade to be worth taking.
type SlippageBudget struct {
	ToleranceBps           int
	RequiredProfitFraction float64
}

// SlippagePct returns the tolerance as a percentage (100 bps = 1%).
func (b SlippageBudget) SlippagePct() float64 {
	return float64(b.ToleranceBps) / 100
}
