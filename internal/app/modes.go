package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/solsweep/sweepbot/internal/consolidate"
	"github.com/solsweep/sweepbot/internal/engine"
	"github.com/solsweep/sweepbot/internal/executor"
)

// TradeMode runs the full detect, validate, execute, consolidate loop with a
// live wallet.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	exec := executor.New(
		deps.Venue, deps.Venue, deps.Chain, deps.Signer,
		a.cfg.Engine.Account, a.cfg.Executor,
		a.cfg.Engine.MaxActiveTrades, a.cfg.Engine.MinTradeInterval.Duration,
		a.logger,
	)
	sweeper := consolidate.New(
		deps.Venue, deps.Venue, deps.Signer,
		a.cfg.Consolidate, a.cfg.Engine.BaseAsset, a.cfg.Risk.BaseSlippageBps,
		deps.Sink, a.logger,
	)

	session := engine.NewSession(a.cfg.Engine.Account, true)
	eng := engine.New(
		a.cfg.Engine, session, deps.Feed, deps.Tracker, deps.Detector, deps.Risk,
		exec, sweeper, deps.Ledger, deps.Chain, deps.Sink, a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return deps.Feed.Run(ctx) })
	g.Go(func() error { return eng.Run(ctx) })
	return g.Wait()
}

// MonitorMode runs detection and logging only: no wallet, no execution. When
// no account is configured, nominal balances let the sizing step produce
// realistic suggested amounts.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	session := engine.NewSession(a.cfg.Engine.Account, false)

	var eng *engine.Engine
	if a.cfg.Engine.Account != "" {
		eng = engine.New(
			a.cfg.Engine, session, deps.Feed, deps.Tracker, deps.Detector, deps.Risk,
			nil, nil, deps.Ledger, deps.Chain, deps.Sink, a.logger,
		)
	} else {
		nominal := make(map[string]float64)
		for _, pair := range deps.Pairs {
			nominal[pair.Base] = 1
			nominal[pair.Quote] = 1
		}
		session.SetBalances(nominal)
		eng = engine.New(
			a.cfg.Engine, session, deps.Feed, deps.Tracker, deps.Detector, deps.Risk,
			nil, nil, deps.Ledger, nil, deps.Sink, a.logger,
		)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return deps.Feed.Run(ctx) })
	g.Go(func() error { return eng.Run(ctx) })
	return g.Wait()
}
