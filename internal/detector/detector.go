// Package detector scans tracked pairs for short-term price dislocations,
// sizes candidate trades, and scores them with a bounded confidence value.
package detector

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solsweep/sweepbot/internal/config"
	"github.com/solsweep/sweepbot/internal/domain"
	"github.com/solsweep/sweepbot/internal/tracker"
)

// ThresholdSource supplies the current adaptive movement threshold, in
// percent. Implemented by the PnL ledger.
type ThresholdSource interface {
	Threshold() float64
}

// confidence bounds and scoring weights.
const (
	confidenceMin        = 10.0
	confidenceMax        = 95.0
	movementWeight       = 15.0
	movementScoreCap     = 40.0
	accelerationBonus    = 15.0
	successRateWeight    = 30.0
	contradictionPenalty = 15.0
	contradictionMinPct  = 0.1
)

// Detector evaluates all configured pairs against the adaptive threshold once
// per throttle interval and returns the best-scoring opportunities.
type Detector struct {
	cfg       config.DetectorConfig
	sizing    config.SizingConfig
	baseAsset string
	pairs     []domain.TradingPair
	highValue map[string]bool

	tracker   *tracker.Tracker
	rates     *SuccessRates
	threshold ThresholdSource
	logger    *slog.Logger

	mu       sync.Mutex
	lastScan time.Time
}

// New creates a Detector over the given pairs. baseAsset is the asset all
// profit is denominated in; threshold supplies the adaptive movement floor.
func New(
	cfg config.DetectorConfig,
	sizing config.SizingConfig,
	baseAsset string,
	pairs []domain.TradingPair,
	tr *tracker.Tracker,
	rates *SuccessRates,
	threshold ThresholdSource,
	logger *slog.Logger,
) *Detector {
	hv := make(map[string]bool, len(cfg.HighValuePairs))
	for _, sym := range cfg.HighValuePairs {
		hv[sym] = true
	}
	return &Detector{
		cfg:       cfg,
		sizing:    sizing,
		baseAsset: baseAsset,
		pairs:     pairs,
		highValue: hv,
		tracker:   tr,
		rates:     rates,
		threshold: threshold,
		logger:    logger.With(slog.String("component", "detector")),
	}
}

// Rates exposes the success-rate table so the engine can record trade
// outcomes.
func (d *Detector) Rates() *SuccessRates {
	return d.rates
}

// Scan updates the price windows from the given live prices, evaluates every
// pair, and returns at most MaxOpportunities candidates ranked by
// confidence x potential profit. Calls within the throttle interval return
// nil with no side effects. balances holds available amounts per asset.
func (d *Detector) Scan(prices, balances map[string]float64, now time.Time) []domain.Opportunity {
	d.mu.Lock()
	if now.Sub(d.lastScan) < d.cfg.ThrottleInterval.Duration {
		d.mu.Unlock()
		return nil
	}
	d.lastScan = now
	d.mu.Unlock()

	adaptive := d.threshold.Threshold()
	baseFalling := d.baseDowntrend(prices)

	var candidates []domain.Opportunity
	for _, pair := range d.pairs {
		sym := pair.Symbol()
		price, ok := prices[sym]
		if !ok || price <= 0 {
			continue
		}

		shortTerm := d.tracker.Update(sym, price, now)
		if d.tracker.SampleCount(sym) < 2 {
			continue
		}
		mediumTerm := d.tracker.MovementOver(sym, 5)
		longTerm := d.tracker.MovementOver(sym, 15)

		absShort := math.Abs(shortTerm)
		significant := absShort >= adaptive
		accelerating := absShort > math.Abs(mediumTerm)/d.cfg.AccelerationDivisor
		isHighValue := d.highValue[sym]

		if !significant && !(accelerating && isHighValue) {
			continue
		}

		// Debounce: one sustained move should not fire every cycle.
		sinceSignal := now.Sub(d.tracker.LastSignal(sym))
		if sinceSignal <= d.cfg.SignalDebounce.Duration && absShort <= d.cfg.DebounceOverridePct {
			continue
		}

		inputAsset, outputAsset := pair.Quote, pair.Base
		if shortTerm < 0 {
			inputAsset, outputAsset = pair.Base, pair.Quote
		}

		// Do not buy the base asset into a falling market on a weak signal.
		if outputAsset == d.baseAsset && baseFalling && absShort < d.cfg.BaseDowntrendOverridePct {
			d.logger.Debug("signal suppressed by base downtrend",
				slog.String("pair", sym),
				slog.Float64("short_term", shortTerm),
			)
			continue
		}

		amount := d.sizeTrade(inputAsset, absShort, balances)
		if amount < d.sizing.MinTradeSize {
			continue
		}

		valueBase := d.valueInBase(pair, inputAsset, amount, price)
		if valueBase <= 0 {
			continue
		}
		feePct := d.cfg.NetworkFee / valueBase * 100

		profitPct := absShort
		if accelerating {
			profitPct *= d.cfg.AccelerationFactor
		}
		if isHighValue {
			profitPct *= d.cfg.HighValueFactor
		}
		profitPct -= feePct
		potentialProfit := valueBase * profitPct / 100
		if potentialProfit <= d.cfg.ProfitDustFloor {
			continue
		}

		confidence := d.scoreConfidence(sym, shortTerm, mediumTerm, absShort, accelerating)

		candidates = append(candidates, domain.Opportunity{
			ID:              uuid.New().String(),
			Pair:            pair,
			InputAsset:      inputAsset,
			OutputAsset:     outputAsset,
			ObservedPrice:   price,
			PercentChange:   shortTerm,
			SuggestedAmount: amount,
			EstimatedFeePct: feePct,
			PotentialProfit: potentialProfit,
			Confidence:      confidence,
			DetectedAt:      now,
		})

		d.logger.Debug("candidate flagged",
			slog.String("pair", sym),
			slog.Float64("short_term", shortTerm),
			slog.Float64("medium_term", mediumTerm),
			slog.Float64("long_term", longTerm),
			slog.Float64("confidence", confidence),
			slog.Float64("potential_profit", potentialProfit),
		)
	}

	// Only emitted opportunities start a debounce window; a candidate cut by
	// the confidence or profit floors must not mute a stronger one next cycle.
	opps := d.filter(candidates)
	for _, opp := range opps {
		d.tracker.MarkSignal(opp.Pair.Symbol(), now)
	}
	return opps
}

// baseDowntrend reports whether enough reference pairs (those pricing the
// base asset directly) are trending down past the configured floor.
func (d *Detector) baseDowntrend(prices map[string]float64) bool {
	falling := 0
	for _, pair := range d.pairs {
		if pair.Base != d.baseAsset {
			continue
		}
		if _, ok := prices[pair.Symbol()]; !ok {
			continue
		}
		if d.tracker.ShortTerm(pair.Symbol()) < d.cfg.BaseDowntrendMovePct {
			falling++
		}
	}
	return falling >= d.cfg.BaseDowntrendMinPairs
}

// sizeTrade computes the suggested input amount from the available balance,
// a volatility-stepped multiplier, and the per-asset-class position cap.
func (d *Detector) sizeTrade(inputAsset string, absShort float64, balances map[string]float64) float64 {
	balance := balances[inputAsset]
	if balance <= 0 {
		return 0
	}

	volMult := 1.0
	switch {
	case absShort >= d.cfg.VolStepTwoPct:
		volMult = 2.0
	case absShort >= d.cfg.VolStepOnePct:
		volMult = 1.5
	}

	frac := d.sizing.PositionFractionOther
	if inputAsset == d.baseAsset {
		frac = d.sizing.PositionFractionBase
	}

	amount := balance * frac * volMult
	if amount > balance {
		amount = balance
	}
	return amount
}

// valueInBase converts an input amount to base-asset units using the pair's
// observed price. Amounts in assets unrelated to the base are taken at face
// value; such pairs only occur in test configurations.
func (d *Detector) valueInBase(pair domain.TradingPair, inputAsset string, amount, price float64) float64 {
	switch {
	case inputAsset == d.baseAsset:
		return amount
	case pair.Base == d.baseAsset && inputAsset == pair.Quote:
		// Quote units priced per base unit.
		if price == 0 {
			return 0
		}
		return amount / price
	case pair.Quote == d.baseAsset && inputAsset == pair.Base:
		return amount * price
	default:
		return amount
	}
}

// scoreConfidence combines movement magnitude, momentum, and historical pair
// success rate into a score clamped to [10, 95].
func (d *Detector) scoreConfidence(sym string, shortTerm, mediumTerm, absShort float64, accelerating bool) float64 {
	score := math.Min(absShort*movementWeight, movementScoreCap)
	if score < 0 {
		score = 0
	}
	if accelerating {
		score += accelerationBonus
	}
	score += d.rates.Rate(sym) * successRateWeight

	contradicts := (shortTerm > 0 && mediumTerm < 0) || (shortTerm < 0 && mediumTerm > 0)
	if contradicts && math.Abs(mediumTerm) > contradictionMinPct {
		score -= contradictionPenalty
	}

	return math.Min(math.Max(score, confidenceMin), confidenceMax)
}

// filter applies the confidence and profit floors and keeps the top
// MaxOpportunities ranked by confidence x potential profit.
func (d *Detector) filter(candidates []domain.Opportunity) []domain.Opportunity {
	kept := candidates[:0]
	for _, opp := range candidates {
		minConf := d.cfg.MinConfidence
		if opp.InputAsset == d.baseAsset {
			minConf = d.cfg.MinConfidenceBaseInput
		}
		if opp.Confidence < minConf {
			continue
		}
		if opp.PotentialProfit < d.cfg.MinPotentialProfit {
			continue
		}
		kept = append(kept, opp)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score() > kept[j].Score()
	})
	if len(kept) > d.cfg.MaxOpportunities {
		kept = kept[:d.cfg.MaxOpportunities]
	}
	return kept
}
