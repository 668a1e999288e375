// Package executor drives a validated opportunity through quote, submission,
// and confirmation against the execution venue, with bounded retries at each
// sub-step.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/solsweep/sweepbot/internal/config"
	"github.com/solsweep/sweepbot/internal/domain"
	"github.com/solsweep/sweepbot/internal/retry"
)

// Executor executes single swaps as an atomic unit: either the trade settles
// (possibly indeterminately) or it fails with no partial effects. It also
// enforces the active-trade cap and the minimum inter-trade interval.
type Executor struct {
	quotes   domain.QuoteService
	venue    domain.ExecutionVenue
	balances domain.BalanceSource
	signer   domain.Signer
	account  string
	cfg      config.ExecutorConfig
	logger   *slog.Logger

	mu          sync.Mutex
	active      int
	maxActive   int
	minInterval time.Duration
	lastTradeAt time.Time
}

// New creates an Executor. maxActive caps concurrently in-flight trades;
// minInterval is the hard floor between trade starts.
func New(
	quotes domain.QuoteService,
	venue domain.ExecutionVenue,
	balances domain.BalanceSource,
	signer domain.Signer,
	account string,
	cfg config.ExecutorConfig,
	maxActive int,
	minInterval time.Duration,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		quotes:      quotes,
		venue:       venue,
		balances:    balances,
		signer:      signer,
		account:     account,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "executor")),
		maxActive:   maxActive,
		minInterval: minInterval,
	}
}

// ActiveTrades returns the number of currently in-flight trades.
func (e *Executor) ActiveTrades() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// begin claims an execution slot or reports why none is available.
func (e *Executor) begin(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active >= e.maxActive {
		return domain.ErrTradeLimit
	}
	if !e.lastTradeAt.IsZero() && now.Sub(e.lastTradeAt) < e.minInterval {
		return domain.ErrTradeTooSoon
	}
	e.active++
	e.lastTradeAt = now
	return nil
}

// end releases an execution slot. Deferred on every exit path.
func (e *Executor) end() {
	e.mu.Lock()
	e.active--
	e.mu.Unlock()
}

// Execute runs one trade attempt through the state machine
// QUOTE_REQUESTED -> QUOTE_VALIDATED -> SUBMITTED -> CONFIRMING ->
// SETTLED | FAILED. On settlement (including indeterminate settlement) the
// returned balance map is freshly read from the authoritative source; callers
// must use it rather than deriving balances from the result.
func (e *Executor) Execute(ctx context.Context, opp domain.Opportunity, toleranceBps int) (domain.TradeResult, map[string]float64, error) {
	if err := e.begin(time.Now()); err != nil {
		return domain.TradeResult{}, nil, err
	}
	defer e.end()

	log := e.logger.With(
		slog.String("opportunity_id", opp.ID),
		slog.String("pair", opp.Pair.Symbol()),
		slog.String("input", opp.InputAsset),
		slog.String("output", opp.OutputAsset),
	)

	failed := domain.TradeResult{
		InputAsset:  opp.InputAsset,
		OutputAsset: opp.OutputAsset,
		InputAmount: opp.SuggestedAmount,
	}

	// QUOTE_REQUESTED
	log.Debug("requesting quote", slog.String("state", string(domain.TradeStateQuoteRequested)))
	quote, err := e.fetchQuote(ctx, opp, toleranceBps)
	if err != nil {
		return failed, nil, fmt.Errorf("executor: quote: %w", err)
	}

	// QUOTE_VALIDATED
	if err := e.validateQuote(opp, quote); err != nil {
		log.Warn("quote rejected", slog.String("error", err.Error()))
		return failed, nil, fmt.Errorf("executor: validate quote: %w", err)
	}
	log.Debug("quote validated",
		slog.String("state", string(domain.TradeStateQuoteValidated)),
		slog.Float64("out_amount", quote.OutAmount),
	)

	// SUBMITTED
	txID, err := e.submit(ctx, quote, log)
	if err != nil {
		return failed, nil, fmt.Errorf("executor: submit: %w", err)
	}
	log.Info("trade submitted",
		slog.String("state", string(domain.TradeStateSubmitted)),
		slog.String("tx_id", txID),
	)

	// CONFIRMING
	result := domain.TradeResult{
		TxID:         txID,
		InputAsset:   opp.InputAsset,
		OutputAsset:  opp.OutputAsset,
		InputAmount:  quote.InAmount,
		OutputAmount: quote.OutAmount,
	}
	status, err := e.confirm(ctx, txID, log)
	switch {
	case err == nil && status == domain.TxStatusConfirmed:
		result.Success = true
	case err == nil && status == domain.TxStatusFailed:
		log.Warn("trade failed on chain", slog.String("tx_id", txID))
		return failed, nil, fmt.Errorf("executor: trade %s failed on chain", txID)
	default:
		// The ledger, not this process, is authoritative: treat the trade as
		// indeterminate-success and let the balance re-read settle the truth.
		log.Warn("confirmation inconclusive, treating as indeterminate",
			slog.String("tx_id", txID),
		)
		result.Success = true
		result.Indeterminate = true
	}

	// SETTLED: refresh balances before any dependent logic runs.
	fresh, balErr := e.balances.GetBalances(ctx, e.account)
	if balErr != nil {
		log.Warn("balance refresh failed after settlement",
			slog.String("error", balErr.Error()),
		)
	}
	log.Info("trade settled",
		slog.String("state", string(domain.TradeStateSettled)),
		slog.String("tx_id", txID),
		slog.Bool("indeterminate", result.Indeterminate),
	)
	return result, fresh, nil
}

// fetchQuote requests a quote with bounded exponential backoff.
func (e *Executor) fetchQuote(ctx context.Context, opp domain.Opportunity, toleranceBps int) (domain.Quote, error) {
	var quote domain.Quote
	err := retry.Do(ctx, retry.Policy{
		MaxAttempts: e.cfg.QuoteAttempts,
		BaseDelay:   e.cfg.RetryBaseDelay.Duration,
	}, func(ctx context.Context) error {
		q, err := e.quotes.GetQuote(ctx, opp.InputAsset, opp.OutputAsset, opp.SuggestedAmount, toleranceBps)
		if err != nil {
			return err
		}
		quote = q
		return nil
	})
	return quote, err
}

// validateQuote checks the quote is usable: a positive output and an implied
// execution price within the configured deviation of the observed price.
func (e *Executor) validateQuote(opp domain.Opportunity, quote domain.Quote) error {
	if quote.OutAmount <= 0 {
		return domain.ErrNoQuote
	}
	if e.cfg.IgnoreDeviation {
		return nil
	}

	expected := expectedExecutionPrice(opp)
	if expected <= 0 {
		return nil
	}
	implied := quote.Price()
	deviation := math.Abs(implied-expected) / expected * 100
	if deviation > e.cfg.MaxPriceDeviationPct {
		return fmt.Errorf("%w: implied %.8f vs expected %.8f (%.2f%%)",
			domain.ErrQuoteDeviation, implied, expected, deviation)
	}
	return nil
}

// expectedExecutionPrice converts the observed pair price into the expected
// output-per-input rate for the direction being traded.
func expectedExecutionPrice(opp domain.Opportunity) float64 {
	price := opp.ObservedPrice
	if price <= 0 {
		return 0
	}
	if opp.InputAsset == opp.Pair.Base {
		// Selling the pair base: quoted price is already output per input.
		return price
	}
	return 1 / price
}

// submit sends the signed intent, retrying transient failures. The same quote
// payload is used for every attempt.
func (e *Executor) submit(ctx context.Context, quote domain.Quote, log *slog.Logger) (string, error) {
	var txID string
	attempt := 0
	err := retry.Do(ctx, retry.Policy{
		MaxAttempts: e.cfg.SubmitAttempts,
		BaseDelay:   e.cfg.RetryBaseDelay.Duration,
		IsRetryable: func(err error) bool {
			return !errors.Is(err, domain.ErrSigningFailed)
		},
	}, func(ctx context.Context) error {
		attempt++
		id, err := e.venue.Submit(ctx, quote, e.signer)
		if err != nil {
			log.Warn("submission attempt failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return err
		}
		txID = id
		return nil
	})
	return txID, err
}

// confirm waits for venue-native confirmation, falling back to bounded status
// polling on timeout. Returns ErrStatusUnknown when the budget is exhausted
// without a definitive answer.
func (e *Executor) confirm(ctx context.Context, txID string, log *slog.Logger) (domain.TxStatus, error) {
	log.Debug("awaiting confirmation", slog.String("state", string(domain.TradeStateConfirming)))

	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.ConfirmTimeout.Duration)
	err := e.venue.WaitConfirmation(waitCtx, txID)
	cancel()
	if err == nil {
		return domain.TxStatusConfirmed, nil
	}
	if ctx.Err() != nil {
		return domain.TxStatusPending, ctx.Err()
	}
	log.Debug("native confirmation timed out, polling status",
		slog.String("error", err.Error()),
	)

	for i := 0; i < e.cfg.ConfirmPollAttempts; i++ {
		status, err := e.venue.GetStatus(ctx, txID)
		if err == nil {
			switch status {
			case domain.TxStatusConfirmed, domain.TxStatusFailed:
				return status, nil
			}
		}
		select {
		case <-ctx.Done():
			return domain.TxStatusPending, ctx.Err()
		case <-time.After(e.cfg.ConfirmPollInterval.Duration):
		}
	}
	return domain.TxStatusPending, domain.ErrStatusUnknown
}
