// Package engine runs the detect, validate, execute, consolidate, adapt loop
// on two cooperative timers: a fast price tick feeding the history windows and
// a slower trade tick driving detection and execution.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/solsweep/sweepbot/internal/config"
	"github.com/solsweep/sweepbot/internal/detector"
	"github.com/solsweep/sweepbot/internal/domain"
	"github.com/solsweep/sweepbot/internal/ledger"
	"github.com/solsweep/sweepbot/internal/risk"
	"github.com/solsweep/sweepbot/internal/tracker"
)

// PriceSource supplies the latest observed price per pair symbol.
type PriceSource interface {
	Snapshot() map[string]float64
}

// Trader executes one validated opportunity and returns the settlement result
// plus a fresh balance read.
type Trader interface {
	Execute(ctx context.Context, opp domain.Opportunity, toleranceBps int) (domain.TradeResult, map[string]float64, error)
}

// Sweeper consolidates stray non-base balances back into the base asset and
// returns the net value recovered, after transaction fees.
type Sweeper interface {
	Sweep(ctx context.Context, balances map[string]float64) (float64, error)
}

// Engine wires the components together and owns the timer loop.
type Engine struct {
	cfg      config.EngineConfig
	session  *Session
	prices   PriceSource
	tracker  *tracker.Tracker
	detector *detector.Detector
	risk     *risk.Validator
	trader   Trader
	sweeper  Sweeper
	ledger   *ledger.Ledger
	balances domain.BalanceSource
	sink     domain.EventSink
	logger   *slog.Logger

	wg sync.WaitGroup
}

// New creates an Engine. trader, sweeper, and balances may be nil in monitor
// mode; the loop then only tracks prices and logs detections.
func New(
	cfg config.EngineConfig,
	session *Session,
	prices PriceSource,
	tr *tracker.Tracker,
	det *detector.Detector,
	validator *risk.Validator,
	trader Trader,
	sweeper Sweeper,
	led *ledger.Ledger,
	balances domain.BalanceSource,
	sink domain.EventSink,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:      cfg,
		session:  session,
		prices:   prices,
		tracker:  tr,
		detector: det,
		risk:     validator,
		trader:   trader,
		sweeper:  sweeper,
		ledger:   led,
		balances: balances,
		sink:     sink,
		logger:   logger.With(slog.String("component", "engine")),
	}
}

// Run drives both timers until the context is cancelled. In-flight trades are
// allowed to finish; no new trades start after cancellation.
func (e *Engine) Run(ctx context.Context) error {
	if e.balances != nil {
		fresh, err := e.balances.GetBalances(ctx, e.session.Account())
		if err != nil {
			return err
		}
		e.session.SetBalances(fresh)
	}

	priceTicker := time.NewTicker(e.cfg.PriceTickInterval.Duration)
	defer priceTicker.Stop()
	tradeTicker := time.NewTicker(e.cfg.TradeTickInterval.Duration)
	defer tradeTicker.Stop()

	e.logger.Info("engine started",
		slog.Int("pairs", len(e.cfg.Pairs)),
		slog.Bool("trading", e.session.TradingEnabled()),
	)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping, waiting for in-flight trades")
			e.wg.Wait()
			return ctx.Err()
		case <-priceTicker.C:
			e.priceTick(time.Now())
		case <-tradeTicker.C:
			e.tradeTick(ctx, time.Now())
		}
	}
}

// priceTick feeds the latest prices into the history windows.
func (e *Engine) priceTick(now time.Time) {
	for sym, price := range e.prices.Snapshot() {
		if price > 0 {
			e.tracker.Update(sym, price, now)
		}
	}
}

// tradeTick runs one detection cycle and dispatches validated opportunities.
func (e *Engine) tradeTick(ctx context.Context, now time.Time) {
	opps := e.detector.Scan(e.prices.Snapshot(), e.session.Balances(), now)
	for i := range opps {
		opp := opps[i]
		e.sink.Emit(domain.Event{
			Type:        domain.EventOpportunityDetected,
			At:          now,
			Opportunity: &opp,
		})

		if !e.session.TradingEnabled() || e.trader == nil {
			e.logger.Info("opportunity detected (trading disabled)",
				slog.String("pair", opp.Pair.Symbol()),
				slog.Float64("change_pct", opp.PercentChange),
				slog.Float64("confidence", opp.Confidence),
			)
			continue
		}

		budget := e.risk.Budget(opp)
		if !e.risk.Validate(opp, budget) {
			continue
		}

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.executeAndSettle(ctx, opp, budget)
		}()
	}
}

// executeAndSettle runs one trade end to end: execution, outcome recording,
// the consolidation sweep, and threshold adaptation.
func (e *Engine) executeAndSettle(ctx context.Context, opp domain.Opportunity, budget domain.SlippageBudget) {
	sym := opp.Pair.Symbol()
	result, fresh, err := e.trader.Execute(ctx, opp, budget.ToleranceBps)
	if err != nil {
		if errors.Is(err, domain.ErrTradeLimit) || errors.Is(err, domain.ErrTradeTooSoon) {
			e.logger.Debug("trade deferred", slog.String("reason", err.Error()))
			return
		}
		e.logger.Warn("trade failed",
			slog.String("pair", sym),
			slog.String("error", err.Error()),
		)
		e.detector.Rates().Record(sym, false)
		return
	}

	e.detector.Rates().Record(sym, result.Success)
	prev := e.session.Balances()
	e.session.SetBalances(fresh)
	now := time.Now()
	e.sink.Emit(domain.Event{
		Type:  domain.EventTradeSettled,
		At:    now,
		Trade: &result,
	})

	if result.Success && !result.Indeterminate {
		if realized := e.realizedProfit(opp, prev, fresh); realized > 0 {
			e.ledger.Record(ctx, realized, now)
		}
	}

	if e.sweeper != nil && result.OutputAsset != e.cfg.BaseAsset {
		recovered, err := e.sweeper.Sweep(ctx, e.session.Balances())
		if err != nil {
			e.logger.Warn("consolidation sweep aborted", slog.String("error", err.Error()))
		} else if recovered > 0 {
			e.ledger.Record(ctx, recovered, now)
			e.refreshBalances(ctx)
		}
	}

	e.ledger.Adapt(ctx, now)
}

// realizedProfit values the settlement's balance delta in base-asset terms.
// When the executor could not re-read balances, or the pair does not price
// either asset against the base, the detection-time estimate stands in.
func (e *Engine) realizedProfit(opp domain.Opportunity, prev, fresh map[string]float64) float64 {
	if fresh == nil {
		return opp.PotentialProfit
	}
	var realized float64
	for _, asset := range []string{opp.InputAsset, opp.OutputAsset} {
		value, ok := e.valueInBase(opp.Pair, asset, opp.ObservedPrice)
		if !ok {
			return opp.PotentialProfit
		}
		realized += (fresh[asset] - prev[asset]) * value
	}
	return realized
}

// valueInBase returns the base-asset value of one unit of asset at the pair's
// observed price. price is quoted as pair.Quote units per pair.Base unit.
func (e *Engine) valueInBase(pair domain.TradingPair, asset string, price float64) (float64, bool) {
	switch {
	case asset == e.cfg.BaseAsset:
		return 1, true
	case asset == pair.Base && pair.Quote == e.cfg.BaseAsset && price > 0:
		return price, true
	case asset == pair.Quote && pair.Base == e.cfg.BaseAsset && price > 0:
		return 1 / price, true
	default:
		return 0, false
	}
}

// refreshBalances re-reads the authoritative balance map into the session.
func (e *Engine) refreshBalances(ctx context.Context) {
	if e.balances == nil {
		return
	}
	fresh, err := e.balances.GetBalances(ctx, e.session.Account())
	if err != nil {
		e.logger.Warn("balance refresh failed", slog.String("error", err.Error()))
		return
	}
	e.session.SetBalances(fresh)
}
