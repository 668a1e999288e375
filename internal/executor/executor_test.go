package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solsweep/sweepbot/internal/config"
	"github.com/solsweep/sweepbot/internal/domain"
)

type stubQuotes struct {
	getQuote func(ctx context.Context, in, out string, amount float64, bps int) (domain.Quote, error)
}

func (s stubQuotes) GetQuote(ctx context.Context, in, out string, amount float64, bps int) (domain.Quote, error) {
	return s.getQuote(ctx, in, out, amount, bps)
}

type stubVenue struct {
	submit func(ctx context.Context, quote domain.Quote, signer domain.Signer) (string, error)
	wait   func(ctx context.Context, txID string) error
	status func(ctx context.Context, txID string) (domain.TxStatus, error)
}

func (s stubVenue) Submit(ctx context.Context, quote domain.Quote, signer domain.Signer) (string, error) {
	return s.submit(ctx, quote, signer)
}

func (s stubVenue) WaitConfirmation(ctx context.Context, txID string) error {
	return s.wait(ctx, txID)
}

func (s stubVenue) GetStatus(ctx context.Context, txID string) (domain.TxStatus, error) {
	return s.status(ctx, txID)
}

type stubBalances struct {
	balances map[string]float64
	err      error
}

func (s stubBalances) GetBalances(ctx context.Context, account string) (map[string]float64, error) {
	return s.balances, s.err
}

type stubSigner struct{}

func (stubSigner) Sign(payload []byte) ([]byte, error) { return payload, nil }
func (stubSigner) Address() string                     { return "test-account" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() config.ExecutorConfig {
	cfg := config.Defaults().Executor
	cfg.RetryBaseDelay = config.Duration{Duration: time.Millisecond}
	cfg.ConfirmTimeout = config.Duration{Duration: 20 * time.Millisecond}
	cfg.ConfirmPollAttempts = 2
	cfg.ConfirmPollInterval = config.Duration{Duration: time.Millisecond}
	return cfg
}

func testOpportunity() domain.Opportunity {
	pair, _ := domain.ParsePair("RAY/SOL")
	return domain.Opportunity{
		ID:              "opp-1",
		Pair:            pair,
		InputAsset:      "SOL",
		OutputAsset:     "RAY",
		ObservedPrice:   0.02, // SOL per RAY
		PercentChange:   0.4,
		SuggestedAmount: 1.0,
		Confidence:      80,
	}
}

// goodQuote returns a quote whose implied price matches the observed price for
// the SOL -> RAY direction (1/0.02 = 50 RAY per SOL).
func goodQuote() domain.Quote {
	return domain.Quote{
		InputAsset:  "SOL",
		OutputAsset: "RAY",
		InAmount:    1.0,
		OutAmount:   50.0,
		SlippageBps: 50,
	}
}

func newTestExecutor(quotes domain.QuoteService, venue domain.ExecutionVenue, balances domain.BalanceSource, cfg config.ExecutorConfig) *Executor {
	return New(quotes, venue, balances, stubSigner{}, "test-account", cfg, 3, 0, testLogger())
}

func TestExecute_QuoteFailsTwiceThenSucceeds(t *testing.T) {
	calls := 0
	quotes := stubQuotes{getQuote: func(ctx context.Context, in, out string, amount float64, bps int) (domain.Quote, error) {
		calls++
		if calls < 3 {
			return domain.Quote{}, domain.ErrRateLimited
		}
		return goodQuote(), nil
	}}
	venue := stubVenue{
		submit: func(ctx context.Context, q domain.Quote, s domain.Signer) (string, error) { return "tx-1", nil },
		wait:   func(ctx context.Context, txID string) error { return nil },
		status: func(ctx context.Context, txID string) (domain.TxStatus, error) { return domain.TxStatusConfirmed, nil },
	}
	balances := stubBalances{balances: map[string]float64{"SOL": 9.0, "RAY": 50.0}}

	exec := newTestExecutor(quotes, venue, balances, fastConfig())
	result, fresh, err := exec.Execute(context.Background(), testOpportunity(), 50)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, result.Success)
	assert.False(t, result.Indeterminate)
	assert.Equal(t, "tx-1", result.TxID)
	assert.Equal(t, 50.0, result.OutputAmount)
	assert.Equal(t, 9.0, fresh["SOL"])
}

func TestExecute_QuoteBudgetExhausted(t *testing.T) {
	calls := 0
	quotes := stubQuotes{getQuote: func(ctx context.Context, in, out string, amount float64, bps int) (domain.Quote, error) {
		calls++
		return domain.Quote{}, domain.ErrRateLimited
	}}
	venue := stubVenue{
		submit: func(ctx context.Context, q domain.Quote, s domain.Signer) (string, error) {
			t.Fatal("submit must not be reached when quoting fails")
			return "", nil
		},
	}

	exec := newTestExecutor(quotes, venue, stubBalances{}, fastConfig())
	result, _, err := exec.Execute(context.Background(), testOpportunity(), 50)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 3, calls)
	assert.False(t, result.Success)
}

func TestExecute_RejectsDeviantQuote(t *testing.T) {
	quotes := stubQuotes{getQuote: func(ctx context.Context, in, out string, amount float64, bps int) (domain.Quote, error) {
		// Implied price 30 RAY/SOL vs expected 50: a 40% deviation.
		return domain.Quote{InputAsset: in, OutputAsset: out, InAmount: 1.0, OutAmount: 30.0}, nil
	}}
	venue := stubVenue{
		submit: func(ctx context.Context, q domain.Quote, s domain.Signer) (string, error) {
			t.Fatal("deviant quote must not be submitted")
			return "", nil
		},
	}

	exec := newTestExecutor(quotes, venue, stubBalances{}, fastConfig())
	_, _, err := exec.Execute(context.Background(), testOpportunity(), 50)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQuoteDeviation)
}

func TestExecute_IndeterminateWhenConfirmationInconclusive(t *testing.T) {
	quotes := stubQuotes{getQuote: func(ctx context.Context, in, out string, amount float64, bps int) (domain.Quote, error) {
		return goodQuote(), nil
	}}
	venue := stubVenue{
		submit: func(ctx context.Context, q domain.Quote, s domain.Signer) (string, error) { return "tx-2", nil },
		wait:   func(ctx context.Context, txID string) error { return context.DeadlineExceeded },
		status: func(ctx context.Context, txID string) (domain.TxStatus, error) { return domain.TxStatusPending, nil },
	}
	balances := stubBalances{balances: map[string]float64{"SOL": 8.0}}

	exec := newTestExecutor(quotes, venue, balances, fastConfig())
	result, fresh, err := exec.Execute(context.Background(), testOpportunity(), 50)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Indeterminate)
	assert.Equal(t, 8.0, fresh["SOL"])
}

func TestExecute_FailsWhenTradeFailsOnChain(t *testing.T) {
	quotes := stubQuotes{getQuote: func(ctx context.Context, in, out string, amount float64, bps int) (domain.Quote, error) {
		return goodQuote(), nil
	}}
	venue := stubVenue{
		submit: func(ctx context.Context, q domain.Quote, s domain.Signer) (string, error) { return "tx-3", nil },
		wait:   func(ctx context.Context, txID string) error { return errors.New("confirmation stream closed") },
		status: func(ctx context.Context, txID string) (domain.TxStatus, error) { return domain.TxStatusFailed, nil },
	}

	exec := newTestExecutor(quotes, venue, stubBalances{}, fastConfig())
	result, _, err := exec.Execute(context.Background(), testOpportunity(), 50)

	require.Error(t, err)
	assert.False(t, result.Success)
}

func TestExecute_SigningFailureIsNotRetried(t *testing.T) {
	quotes := stubQuotes{getQuote: func(ctx context.Context, in, out string, amount float64, bps int) (domain.Quote, error) {
		return goodQuote(), nil
	}}
	submits := 0
	venue := stubVenue{
		submit: func(ctx context.Context, q domain.Quote, s domain.Signer) (string, error) {
			submits++
			return "", domain.ErrSigningFailed
		},
	}

	exec := newTestExecutor(quotes, venue, stubBalances{}, fastConfig())
	_, _, err := exec.Execute(context.Background(), testOpportunity(), 50)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSigningFailed)
	assert.Equal(t, 1, submits)
}

func TestExecute_EnforcesMinTradeInterval(t *testing.T) {
	quotes := stubQuotes{getQuote: func(ctx context.Context, in, out string, amount float64, bps int) (domain.Quote, error) {
		return goodQuote(), nil
	}}
	venue := stubVenue{
		submit: func(ctx context.Context, q domain.Quote, s domain.Signer) (string, error) { return "tx-4", nil },
		wait:   func(ctx context.Context, txID string) error { return nil },
	}
	balances := stubBalances{balances: map[string]float64{}}

	exec := New(quotes, venue, balances, stubSigner{}, "test-account", fastConfig(), 3, time.Hour, testLogger())

	_, _, err := exec.Execute(context.Background(), testOpportunity(), 50)
	require.NoError(t, err)

	_, _, err = exec.Execute(context.Background(), testOpportunity(), 50)
	assert.ErrorIs(t, err, domain.ErrTradeTooSoon)
	assert.Equal(t, 0, exec.ActiveTrades())
}
