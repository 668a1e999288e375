// Package consolidate sweeps stray non-base balances back into the base asset
// after trades settle, so capital is never stranded in intermediate assets.
package consolidate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/solsweep/sweepbot/internal/config"
	"github.com/solsweep/sweepbot/internal/domain"
	"github.com/solsweep/sweepbot/internal/retry"
)

// Manager executes consolidation sweeps. Attempt exhaustion is deliberately
// non-fatal: the stranded balance stays in the account and is picked up by a
// later sweep.
type Manager struct {
	quotes    domain.QuoteService
	venue     domain.ExecutionVenue
	signer    domain.Signer
	cfg       config.ConsolidateConfig
	baseAsset string
	baseBps   int
	sink      domain.EventSink
	logger    *slog.Logger
}

// New creates a Manager. baseBps is the starting slippage tolerance; each
// retry widens it by cfg.SlippageStepBps.
func New(
	quotes domain.QuoteService,
	venue domain.ExecutionVenue,
	signer domain.Signer,
	cfg config.ConsolidateConfig,
	baseAsset string,
	baseBps int,
	sink domain.EventSink,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		quotes:    quotes,
		venue:     venue,
		signer:    signer,
		cfg:       cfg,
		baseAsset: baseAsset,
		baseBps:   baseBps,
		sink:      sink,
		logger:    logger.With(slog.String("component", "consolidate")),
	}
}

// Tasks derives the pending sweeps from a balance snapshot: every non-base
// asset above the dust floor becomes one task sized at the configured fraction
// of its balance.
func (m *Manager) Tasks(balances map[string]float64) []domain.ConsolidationTask {
	var tasks []domain.ConsolidationTask
	for asset, balance := range balances {
		if asset == m.baseAsset || balance <= m.cfg.DustFloor {
			continue
		}
		tasks = append(tasks, domain.ConsolidationTask{
			Asset:             asset,
			Amount:            balance * m.cfg.BalanceUseFraction,
			AttemptsRemaining: m.cfg.MaxAttempts,
		})
	}
	return tasks
}

// Sweep runs every task derived from the balance snapshot and returns the
// total net value recovered into the base asset, after transaction fees.
// Individual task failures are logged and skipped; only context cancellation
// aborts the sweep.
func (m *Manager) Sweep(ctx context.Context, balances map[string]float64) (float64, error) {
	var recovered float64
	for _, task := range m.Tasks(balances) {
		got, err := m.Consolidate(ctx, task)
		if err != nil {
			return recovered, err
		}
		recovered += got
	}
	return recovered, nil
}

// Consolidate attempts one sweep, widening the slippage tolerance on each
// retry. It returns the recovered base amount net of the sweep transaction's
// fee, or 0 when all attempts are exhausted. Exhaustion is not an error.
func (m *Manager) Consolidate(ctx context.Context, task domain.ConsolidationTask) (float64, error) {
	log := m.logger.With(
		slog.String("asset", task.Asset),
		slog.Float64("amount", task.Amount),
	)

	var attempt int
	var out float64
	err := retry.Do(ctx, retry.Policy{
		MaxAttempts: task.AttemptsRemaining,
		BaseDelay:   m.cfg.RetryBaseDelay.Duration,
	}, func(ctx context.Context) error {
		bps := m.baseBps + attempt*m.cfg.SlippageStepBps
		attempt++

		got, err := m.attempt(ctx, task, bps)
		if err != nil {
			log.Warn("consolidation attempt failed",
				slog.Int("attempt", attempt),
				slog.Int("slippage_bps", bps),
				slog.String("error", err.Error()),
			)
			return err
		}
		out = got
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		// The balance is still in the account; a later sweep will retry it.
		log.Warn("consolidation attempts exhausted, balance remains",
			slog.Int("attempts", task.AttemptsRemaining),
		)
		return 0, nil
	}

	net := out - m.cfg.NetworkFee
	if net < 0 {
		net = 0
	}
	log.Info("consolidation completed",
		slog.Int("attempt", attempt),
		slog.Float64("recovered", out),
		slog.Float64("net", net),
	)
	m.sink.Emit(domain.Event{
		Type:          domain.EventConsolidationCompleted,
		At:            time.Now(),
		Consolidation: &task,
	})
	return net, nil
}

// attempt performs a single quote-submit-confirm cycle at the given tolerance.
func (m *Manager) attempt(ctx context.Context, task domain.ConsolidationTask, bps int) (float64, error) {
	quote, err := m.quotes.GetQuote(ctx, task.Asset, m.baseAsset, task.Amount, bps)
	if err != nil {
		return 0, fmt.Errorf("quote: %w", err)
	}
	if quote.OutAmount <= 0 {
		return 0, domain.ErrNoQuote
	}

	txID, err := m.venue.Submit(ctx, quote, m.signer)
	if err != nil {
		return 0, fmt.Errorf("submit: %w", err)
	}
	if err := m.venue.WaitConfirmation(ctx, txID); err != nil {
		return 0, fmt.Errorf("confirm %s: %w", txID, err)
	}
	return quote.OutAmount, nil
}
